package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mwaldrop/hearth/internal/schema"
)

// Snapshot is a full copy of the replicated table set. It backs both a
// sync download (clear-then-bulk-insert) and the backup/restore
// collaborator, which consume the same shape.
type Snapshot struct {
	Members               []*schema.Member
	AssetCategories       []*schema.AssetCategory
	AssetItems            []*schema.AssetItem
	DailyValues           []*schema.DailyValue
	TransactionCategories []*schema.TransactionCategory
	Transactions          []*schema.Transaction
}

// Snapshot reads the replicated tables in full.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	var err error
	if snap.Members, err = s.ListMembers(ctx); err != nil {
		return nil, err
	}
	if snap.AssetCategories, err = s.ListAssetCategories(ctx); err != nil {
		return nil, err
	}
	if snap.AssetItems, err = s.ListAssetItems(ctx); err != nil {
		return nil, err
	}
	if snap.DailyValues, err = s.ListDailyValues(ctx); err != nil {
		return nil, err
	}
	if snap.TransactionCategories, err = s.ListTransactionCategories(ctx); err != nil {
		return nil, err
	}
	if snap.Transactions, err = s.ListTransactions(ctx); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Restore replaces the replicated tables with the snapshot's contents.
// Clear and bulk insert run inside one transaction: if anything fails the
// local tables are left exactly as they were. Rows are inserted with their
// snapshot local ids, so references between them stay intact.
func (s *Store) Restore(ctx context.Context, snap *Snapshot) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{
		"daily_values", "asset_items", "transactions",
		"members", "asset_categories", "transaction_categories",
	} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, storageErr(err))
		}
	}

	now := formatTime(time.Now())

	for _, m := range snap.Members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO members (id, sync_id, name, color, is_default, sort_order, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.SyncID, m.Name, m.Color, m.IsDefault, m.SortOrder,
			orNow(m.CreatedAt, now), orNow(m.UpdatedAt, now)); err != nil {
			return fmt.Errorf("failed to restore member %q: %w", m.Name, storageErr(err))
		}
	}
	for _, c := range snap.AssetCategories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO asset_categories (id, sync_id, name, kind, color, icon, sort_order, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.SyncID, c.Name, string(c.Kind), c.Color, c.Icon, c.SortOrder,
			orNow(c.CreatedAt, now), orNow(c.UpdatedAt, now)); err != nil {
			return fmt.Errorf("failed to restore asset category %q: %w", c.Name, storageErr(err))
		}
	}
	for _, a := range snap.AssetItems {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO asset_items (id, sync_id, name, member_id, category_id, is_active, sort_order, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.SyncID, a.Name, idToNull(a.MemberID), idToNull(a.CategoryID), a.IsActive, a.SortOrder,
			orNow(a.CreatedAt, now), orNow(a.UpdatedAt, now)); err != nil {
			return fmt.Errorf("failed to restore asset item %q: %w", a.Name, storageErr(err))
		}
	}
	for _, v := range snap.DailyValues {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO daily_values (id, sync_id, asset_item_id, date, value, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			v.ID, v.SyncID, v.AssetItemID, formatDate(v.Date), v.Value.String(),
			orNow(v.CreatedAt, now), orNow(v.UpdatedAt, now)); err != nil {
			return fmt.Errorf("failed to restore daily value for item %d on %v: %w", v.AssetItemID, v.Date, storageErr(err))
		}
	}
	for _, c := range snap.TransactionCategories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transaction_categories (id, sync_id, name, kind, color, icon, sort_order, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.SyncID, c.Name, string(c.Kind), c.Color, c.Icon, c.SortOrder,
			orNow(c.CreatedAt, now), orNow(c.UpdatedAt, now)); err != nil {
			return fmt.Errorf("failed to restore transaction category %q: %w", c.Name, storageErr(err))
		}
	}
	for _, t := range snap.Transactions {
		pattern, err := marshalPattern(t.RecurPattern)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (id, sync_id, type, amount, date, memo,
				category_id, member_id, payment_method_id, linked_asset_item_id,
				payment_note, is_recurring, recur_pattern, recur_source_id, subscription_id,
				created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.SyncID, string(t.Type), t.Amount.String(), formatDate(t.Date), t.Memo,
			idToNull(t.CategoryID), idToNull(t.MemberID), idToNull(t.PaymentMethodID),
			idToNull(t.LinkedAssetItemID), t.PaymentNote, t.IsRecurring, pattern,
			idToNull(t.RecurSourceID), idToNull(t.SubscriptionID),
			orNow(t.CreatedAt, now), orNow(t.UpdatedAt, now)); err != nil {
			return fmt.Errorf("failed to restore transaction %s: %w", t.SyncID, storageErr(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit restore: %w", storageErr(err))
	}
	return nil
}

func orNow(t time.Time, now string) string {
	if t.IsZero() {
		return now
	}
	return formatTime(t)
}

// AssignMissingSyncIDs assigns a fresh sync id to every row in the
// replicated tables that lacks one, and returns how many were assigned.
// Rows written by current code always carry a sync id; this covers data
// imported from older stores.
func (s *Store) AssignMissingSyncIDs(ctx context.Context) (int, error) {
	tables := []string{
		"members", "asset_categories", "asset_items", "daily_values",
		"transaction_categories", "transactions",
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	assigned := 0
	for _, table := range tables {
		rows, err := tx.QueryContext(ctx, "SELECT id FROM "+table+" WHERE sync_id = ''")
		if err != nil {
			return 0, fmt.Errorf("failed to find unsynced rows in %s: %w", table, storageErr(err))
		}
		var ids []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return 0, fmt.Errorf("failed to scan id from %s: %w", table, storageErr(err))
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return 0, fmt.Errorf("error iterating %s: %w", table, storageErr(err))
		}
		rows.Close()

		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				"UPDATE "+table+" SET sync_id = ? WHERE id = ?", schema.NewSyncID(), id); err != nil {
				return 0, fmt.Errorf("failed to assign sync id in %s: %w", table, storageErr(err))
			}
			assigned++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sync id assignment: %w", storageErr(err))
	}
	return assigned, nil
}
