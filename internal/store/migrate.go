package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mwaldrop/hearth/internal/schema"
)

// migration is one schema version step. Every step runs inside a single
// write transaction together with its version bump, so a crash mid-step
// never leaves the store between versions.
type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sql.Tx) error
}

// migrations is the ordered list of schema migrations. Versions are
// strictly increasing starting from 1 and are applied exactly once per
// store; re-running Migrate against a fully migrated store is a no-op.
var migrations = []migration{
	{version: 1, name: "base tables", apply: applyV1},
	{version: 2, name: "payment methods + backfill", apply: applyV2},
	{version: 3, name: "subscriptions", apply: applyV3},
}

// SchemaVersion returns the store's current schema version (0 for a fresh
// database).
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	if _, err := s.conn.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return 0, fmt.Errorf("failed to ensure schema_version table: %w", storageErr(err))
	}
	var v int
	err := s.conn.QueryRowContext(ctx, `SELECT version FROM schema_version`).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", storageErr(err))
	}
	return v, nil
}

// Migrate applies all pending migrations in strictly increasing order.
func (s *Store) Migrate(ctx context.Context) error {
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := s.begin(ctx)
		if err != nil {
			return err
		}

		if err := m.apply(ctx, tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration v%d (%s) failed: %w", m.version, m.name, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration v%d: failed to clear version: %w", m.version, storageErr(err))
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration v%d: failed to record version: %w", m.version, storageErr(err))
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration v%d: failed to commit: %w", m.version, storageErr(err))
		}
		current = m.version
	}

	return nil
}

const schemaV1 = `
CREATE TABLE members (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	sync_id    TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL,
	color      TEXT NOT NULL DEFAULT '',
	is_default INTEGER NOT NULL DEFAULT 0,
	sort_order INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE asset_categories (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	sync_id    TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL,
	kind       TEXT NOT NULL,
	color      TEXT NOT NULL DEFAULT '',
	icon       TEXT NOT NULL DEFAULT '',
	sort_order INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE asset_items (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	sync_id     TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL,
	member_id   INTEGER,
	category_id INTEGER,
	is_active   INTEGER NOT NULL DEFAULT 1,
	sort_order  INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE daily_values (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	sync_id       TEXT NOT NULL DEFAULT '',
	asset_item_id INTEGER NOT NULL,
	date          TEXT NOT NULL,
	value         TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE TABLE transaction_categories (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	sync_id    TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL,
	kind       TEXT NOT NULL,
	color      TEXT NOT NULL DEFAULT '',
	icon       TEXT NOT NULL DEFAULT '',
	sort_order INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE transactions (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	sync_id              TEXT NOT NULL DEFAULT '',
	type                 TEXT NOT NULL,
	amount               TEXT NOT NULL,
	date                 TEXT NOT NULL,
	memo                 TEXT NOT NULL DEFAULT '',
	category_id          INTEGER,
	member_id            INTEGER,
	linked_asset_item_id INTEGER,
	payment_note         TEXT NOT NULL DEFAULT '',
	is_recurring         INTEGER NOT NULL DEFAULT 0,
	recur_pattern        TEXT,
	recur_source_id      INTEGER,
	created_at           TEXT NOT NULL,
	updated_at           TEXT NOT NULL
);

CREATE TABLE budgets (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	sync_id     TEXT NOT NULL DEFAULT '',
	category_id INTEGER NOT NULL,
	month       TEXT NOT NULL,
	amount      TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE financial_goals (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	sync_id        TEXT NOT NULL DEFAULT '',
	name           TEXT NOT NULL,
	target_amount  TEXT NOT NULL,
	current_amount TEXT NOT NULL DEFAULT '0',
	deadline       TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);

-- Compound-unique upsert keys
CREATE UNIQUE INDEX idx_daily_values_item_date ON daily_values(asset_item_id, date);
CREATE UNIQUE INDEX idx_budgets_category_month ON budgets(category_id, month);

-- Secondary indexes for range queries and cascades
CREATE INDEX idx_daily_values_date ON daily_values(date);
CREATE INDEX idx_asset_items_member ON asset_items(member_id);
CREATE INDEX idx_asset_items_category ON asset_items(category_id);
CREATE INDEX idx_transactions_date ON transactions(date);
CREATE INDEX idx_transactions_category ON transactions(category_id);
CREATE INDEX idx_transactions_member ON transactions(member_id);
CREATE INDEX idx_transactions_recur_source ON transactions(recur_source_id);
`

func applyV1(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return storageErr(err)
	}
	return nil
}

const schemaV2 = `
CREATE TABLE payment_methods (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	sync_id    TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL,
	icon       TEXT NOT NULL DEFAULT '',
	sort_order INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

ALTER TABLE transactions ADD COLUMN payment_method_id INTEGER;
CREATE INDEX idx_transactions_payment_method ON transactions(payment_method_id);
`

// paymentLink records which derived payment method a historical
// transaction should be linked to.
type paymentLink struct {
	transactionID   int64
	paymentMethodID int64
}

// legacyPaymentRow is the slice of a pre-v2 transaction the backfill
// cares about.
type legacyPaymentRow struct {
	transactionID int64
	paymentNote   string
}

// derivePaymentMethods derives PaymentMethodItem rows from historical
// free-text payment notes: one method per distinct trimmed note, in first
// appearance order, plus the link updates pointing each historical
// transaction at its derived method.
//
// The function is pure so the backfill is reproducible; it runs exactly
// once, inside the v2 migration transaction, and is never invoked outside
// the migration runner. Method ids are assigned by the caller after
// insertion; here they are 1-based positions in the returned slice.
func derivePaymentMethods(rows []legacyPaymentRow) ([]schema.PaymentMethodItem, []paymentLink) {
	var methods []schema.PaymentMethodItem
	index := make(map[string]int64) // note -> 1-based position
	var links []paymentLink

	for _, row := range rows {
		note := strings.TrimSpace(row.paymentNote)
		if note == "" {
			continue
		}
		pos, ok := index[note]
		if !ok {
			pos = int64(len(methods) + 1)
			index[note] = pos
			methods = append(methods, schema.PaymentMethodItem{
				SyncID:    schema.NewSyncID(),
				Name:      note,
				SortOrder: int(pos) - 1,
			})
		}
		links = append(links, paymentLink{transactionID: row.transactionID, paymentMethodID: pos})
	}

	return methods, links
}

func applyV2(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, schemaV2); err != nil {
		return storageErr(err)
	}

	// Collect legacy payment notes, oldest first so derived sort order
	// follows first use.
	rows, err := tx.QueryContext(ctx,
		`SELECT id, payment_note FROM transactions WHERE payment_note != '' ORDER BY id ASC`)
	if err != nil {
		return fmt.Errorf("failed to read legacy payment notes: %w", storageErr(err))
	}
	var legacy []legacyPaymentRow
	for rows.Next() {
		var r legacyPaymentRow
		if err := rows.Scan(&r.transactionID, &r.paymentNote); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan legacy payment note: %w", storageErr(err))
		}
		legacy = append(legacy, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to iterate legacy payment notes: %w", storageErr(err))
	}
	rows.Close()

	methods, links := derivePaymentMethods(legacy)

	// Insert derived methods and map their backfill positions to the real
	// local ids the store assigned.
	now := formatTime(time.Now())
	realID := make(map[int64]int64, len(methods))
	for i, m := range methods {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO payment_methods (sync_id, name, icon, sort_order, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			m.SyncID, m.Name, m.Icon, m.SortOrder, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert derived payment method %q: %w", m.Name, storageErr(err))
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read payment method id: %w", storageErr(err))
		}
		realID[int64(i+1)] = id
	}

	for _, l := range links {
		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET payment_method_id = ? WHERE id = ?`,
			realID[l.paymentMethodID], l.transactionID); err != nil {
			return fmt.Errorf("failed to link transaction %d to payment method: %w", l.transactionID, storageErr(err))
		}
	}

	return nil
}

const schemaV3 = `
CREATE TABLE subscriptions (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	sync_id           TEXT NOT NULL DEFAULT '',
	name              TEXT NOT NULL,
	currency          TEXT NOT NULL,
	amount            TEXT NOT NULL,
	cycle             TEXT NOT NULL,
	custom_days       INTEGER NOT NULL DEFAULT 0,
	billing_day       INTEGER NOT NULL DEFAULT 0,
	billing_month     INTEGER NOT NULL DEFAULT 0,
	status            TEXT NOT NULL DEFAULT 'active',
	start_date        TEXT NOT NULL,
	end_date          TEXT,
	pause_history     TEXT NOT NULL DEFAULT '[]',
	category_id       INTEGER,
	payment_method_id INTEGER,
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL
);

ALTER TABLE transactions ADD COLUMN subscription_id INTEGER;
CREATE INDEX idx_transactions_subscription ON transactions(subscription_id);
CREATE INDEX idx_subscriptions_status ON subscriptions(status);
`

func applyV3(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, schemaV3); err != nil {
		return storageErr(err)
	}
	return nil
}
