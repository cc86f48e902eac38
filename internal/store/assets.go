package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/mwaldrop/hearth/internal/schema"
)

// ----- asset categories -----

// AddAssetCategory inserts an asset category and returns its local id.
func (s *Store) AddAssetCategory(ctx context.Context, c *schema.AssetCategory) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, fmt.Errorf("invalid asset category: %w", err)
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO asset_categories (sync_id, name, kind, color, icon, sort_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.SyncID, c.Name, string(c.Kind), c.Color, c.Icon, c.SortOrder,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert asset category: %w", storageErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read asset category id: %w", storageErr(err))
	}
	c.ID = id
	return id, nil
}

// AssetCategoryPatch is a partial update for an asset category.
type AssetCategoryPatch struct {
	Name      *string
	Color     *string
	Icon      *string
	SortOrder *int
}

// UpdateAssetCategory merges the patch into the category row.
func (s *Store) UpdateAssetCategory(ctx context.Context, id int64, p AssetCategoryPatch) error {
	var sets []string
	var args []interface{}
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.Color != nil {
		sets = append(sets, "color = ?")
		args = append(args, *p.Color)
	}
	if p.Icon != nil {
		sets = append(sets, "icon = ?")
		args = append(args, *p.Icon)
	}
	if p.SortOrder != nil {
		sets = append(sets, "sort_order = ?")
		args = append(args, *p.SortOrder)
	}
	return s.updateRow(ctx, "asset_categories", id, sets, args)
}

// DeleteAssetCategory removes a category and cascades to its asset items
// and their daily values, all in one transaction.
func (s *Store) DeleteAssetCategory(ctx context.Context, id int64) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM daily_values
		 WHERE asset_item_id IN (SELECT id FROM asset_items WHERE category_id = ?)`, id); err != nil {
		return fmt.Errorf("failed to delete daily values for asset category %d: %w", id, storageErr(err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM asset_items WHERE category_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete asset items for category %d: %w", id, storageErr(err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM asset_categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete asset category %d: %w", id, storageErr(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit asset category delete: %w", storageErr(err))
	}
	return nil
}

// ListAssetCategories returns all asset categories ordered by sort order.
func (s *Store) ListAssetCategories(ctx context.Context) ([]*schema.AssetCategory, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, sync_id, name, kind, color, icon, sort_order, created_at, updated_at
		 FROM asset_categories ORDER BY sort_order ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list asset categories: %w", storageErr(err))
	}
	defer rows.Close()

	var out []*schema.AssetCategory
	for rows.Next() {
		var c schema.AssetCategory
		var kind, createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.SyncID, &c.Name, &kind, &c.Color, &c.Icon, &c.SortOrder, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan asset category: %w", storageErr(err))
		}
		c.Kind = schema.AssetKind(kind)
		c.CreatedAt = parseTime(createdAt)
		c.UpdatedAt = parseTime(updatedAt)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset categories: %w", storageErr(err))
	}
	return out, nil
}

// ----- asset items -----

// AddAssetItem inserts an asset item and returns its local id.
func (s *Store) AddAssetItem(ctx context.Context, a *schema.AssetItem) (int64, error) {
	if err := a.Validate(); err != nil {
		return 0, fmt.Errorf("invalid asset item: %w", err)
	}
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO asset_items (sync_id, name, member_id, category_id, is_active, sort_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.SyncID, a.Name, idToNull(a.MemberID), idToNull(a.CategoryID), a.IsActive, a.SortOrder,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert asset item: %w", storageErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read asset item id: %w", storageErr(err))
	}
	a.ID = id
	return id, nil
}

// AssetItemPatch is a partial update for an asset item. Nullable
// references use sql.NullInt64 so a patch can distinguish "leave as is"
// (nil) from "set to NULL" (invalid NullInt64).
type AssetItemPatch struct {
	Name       *string
	MemberID   *sql.NullInt64
	CategoryID *sql.NullInt64
	IsActive   *bool
	SortOrder  *int
}

// UpdateAssetItem merges the patch into the asset item row.
func (s *Store) UpdateAssetItem(ctx context.Context, id int64, p AssetItemPatch) error {
	var sets []string
	var args []interface{}
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.MemberID != nil {
		sets = append(sets, "member_id = ?")
		args = append(args, *p.MemberID)
	}
	if p.CategoryID != nil {
		sets = append(sets, "category_id = ?")
		args = append(args, *p.CategoryID)
	}
	if p.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *p.IsActive)
	}
	if p.SortOrder != nil {
		sets = append(sets, "sort_order = ?")
		args = append(args, *p.SortOrder)
	}
	return s.updateRow(ctx, "asset_items", id, sets, args)
}

// DeleteAssetItem removes an item and its daily values in one transaction.
func (s *Store) DeleteAssetItem(ctx context.Context, id int64) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM daily_values WHERE asset_item_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete daily values for asset item %d: %w", id, storageErr(err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM asset_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete asset item %d: %w", id, storageErr(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit asset item delete: %w", storageErr(err))
	}
	return nil
}

// ListAssetItems returns all asset items ordered by sort order.
func (s *Store) ListAssetItems(ctx context.Context) ([]*schema.AssetItem, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, sync_id, name, member_id, category_id, is_active, sort_order, created_at, updated_at
		 FROM asset_items ORDER BY sort_order ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list asset items: %w", storageErr(err))
	}
	defer rows.Close()

	var out []*schema.AssetItem
	for rows.Next() {
		var a schema.AssetItem
		var memberID, categoryID sql.NullInt64
		var createdAt, updatedAt string
		if err := rows.Scan(&a.ID, &a.SyncID, &a.Name, &memberID, &categoryID, &a.IsActive, &a.SortOrder, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan asset item: %w", storageErr(err))
		}
		a.MemberID = nullToID(memberID)
		a.CategoryID = nullToID(categoryID)
		a.CreatedAt = parseTime(createdAt)
		a.UpdatedAt = parseTime(updatedAt)
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset items: %w", storageErr(err))
	}
	return out, nil
}

// ----- daily values -----

// SetDailyValue upserts the value for one asset item on one date. The
// (asset_item_id, date) pair is compound-unique: a second write for the
// same key overwrites the value in place and never surfaces a conflict.
func (s *Store) SetDailyValue(ctx context.Context, v *schema.DailyValue) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("invalid daily value: %w", err)
	}
	now := time.Now()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO daily_values (sync_id, asset_item_id, date, value, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(asset_item_id, date) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		v.SyncID, v.AssetItemID, formatDate(v.Date), v.Value.String(),
		formatTime(v.CreatedAt), formatTime(v.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert daily value: %w", storageErr(err))
	}
	return nil
}

// DailyValuesForItem returns all values for one asset item ordered by date.
func (s *Store) DailyValuesForItem(ctx context.Context, assetItemID int64) ([]*schema.DailyValue, error) {
	return s.queryDailyValues(ctx,
		`SELECT id, sync_id, asset_item_id, date, value, created_at, updated_at
		 FROM daily_values WHERE asset_item_id = ? ORDER BY date ASC`, assetItemID)
}

// DailyValuesByDateRange returns all values with from <= date <= to,
// ordered by date, served from the date index.
func (s *Store) DailyValuesByDateRange(ctx context.Context, from, to civil.Date) ([]*schema.DailyValue, error) {
	return s.queryDailyValues(ctx,
		`SELECT id, sync_id, asset_item_id, date, value, created_at, updated_at
		 FROM daily_values WHERE date >= ? AND date <= ? ORDER BY date ASC, asset_item_id ASC`,
		formatDate(from), formatDate(to))
}

// ListDailyValues returns every daily value, ordered by item then date.
func (s *Store) ListDailyValues(ctx context.Context) ([]*schema.DailyValue, error) {
	return s.queryDailyValues(ctx,
		`SELECT id, sync_id, asset_item_id, date, value, created_at, updated_at
		 FROM daily_values ORDER BY asset_item_id ASC, date ASC`)
}

func (s *Store) queryDailyValues(ctx context.Context, query string, args ...interface{}) ([]*schema.DailyValue, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily values: %w", storageErr(err))
	}
	defer rows.Close()

	var out []*schema.DailyValue
	for rows.Next() {
		var v schema.DailyValue
		var date, value, createdAt, updatedAt string
		if err := rows.Scan(&v.ID, &v.SyncID, &v.AssetItemID, &date, &value, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan daily value: %w", storageErr(err))
		}
		if v.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		if v.Value, err = parseAmount(value); err != nil {
			return nil, err
		}
		v.CreatedAt = parseTime(createdAt)
		v.UpdatedAt = parseTime(updatedAt)
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily values: %w", storageErr(err))
	}
	return out, nil
}

// LatestValueForItem returns the most recent daily value for an item, or
// ErrNotFound when the item has no values.
func (s *Store) LatestValueForItem(ctx context.Context, assetItemID int64) (*schema.DailyValue, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, sync_id, asset_item_id, date, value, created_at, updated_at
		 FROM daily_values WHERE asset_item_id = ? ORDER BY date DESC LIMIT 1`, assetItemID)

	var v schema.DailyValue
	var date, value, createdAt, updatedAt string
	err := row.Scan(&v.ID, &v.SyncID, &v.AssetItemID, &date, &value, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("daily value for item %d: %w", assetItemID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan daily value: %w", storageErr(err))
	}
	if v.Date, err = parseDate(date); err != nil {
		return nil, err
	}
	if v.Value, err = parseAmount(value); err != nil {
		return nil, err
	}
	v.CreatedAt = parseTime(createdAt)
	v.UpdatedAt = parseTime(updatedAt)
	return &v, nil
}
