// Package store implements the record store: durable, indexed, transactional
// storage for every hearth entity on top of embedded SQLite.
//
// The store owns local id assignment (AUTOINCREMENT), the cascade/nullify
// rules that run on delete, the compound-unique upsert keys (daily values,
// budgets), and the versioned migration runner. It performs no retries:
// database faults are tagged ErrStorage and surfaced to the caller.
//
// The database runs in WAL mode with a busy timeout, the same configuration
// the rest of the tooling expects, so concurrent readers stay cheap while
// writes remain strictly serialized.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNotFound is returned when an update or lookup names a local id that
// does not exist. Updates against a missing id are surfaced as this error
// rather than silently ignored.
var ErrNotFound = errors.New("record not found")

// ErrStorage marks faults from the underlying database file or driver, as
// distinct from validation failures and ErrNotFound. Callers classify with
// errors.Is; the driver's error stays in the chain.
var ErrStorage = errors.New("storage fault")

func storageErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

// Store wraps the SQLite connection holding all entity tables.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a new store at the specified path, creating the file and
// parent directory if needed. The caller MUST call Close when done, and
// should call Migrate before using the store.
//
// Example:
//
//	st, err := store.Open(filepath.Join(dir, "hearth.db"))
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//	if err := st.Migrate(ctx); err != nil {
//	    return err
//	}
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", storageErr(err))
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", storageErr(err))
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", storageErr(err))
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	st := &Store{conn: conn, path: path}

	// WAL for concurrent reads during writes
	if _, err := st.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", storageErr(err))
	}
	if _, err := st.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", storageErr(err))
	}
	if _, err := st.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", storageErr(err))
	}

	return st, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection, checkpointing the WAL first so all
// changes land in the main file.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", storageErr(err))
	}
	s.conn = nil
	return nil
}

// begin starts a write transaction. All multi-row mutations (cascades,
// migrations, restores) run inside one transaction so a crash mid-operation
// never leaves them partially applied.
func (s *Store) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", storageErr(err))
	}
	return tx, nil
}

// updateRow applies a partial update to one row, stamping updated_at.
// Returns ErrNotFound when no row has the given id.
func (s *Store) updateRow(ctx context.Context, table string, id int64, sets []string, args []interface{}) error {
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(time.Now()))
	args = append(args, id)

	query := "UPDATE " + table + " SET " + joinSets(sets) + " WHERE id = ?"
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s %d: %w", table, id, storageErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of %s %d: %w", table, id, storageErr(err))
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", table, id, ErrNotFound)
	}
	return nil
}

func joinSets(sets []string) string {
	out := ""
	for i, s := range sets {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

// count returns the number of rows in a table.
func (s *Store) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, storageErr(err))
	}
	return n, nil
}

// TableCounts returns the row count for every entity table, keyed by table
// name. Used by status reporting.
func (s *Store) TableCounts(ctx context.Context) (map[string]int, error) {
	tables := []string{
		"members", "asset_categories", "asset_items", "daily_values",
		"transaction_categories", "payment_methods", "transactions",
		"budgets", "financial_goals", "subscriptions",
	}
	counts := make(map[string]int, len(tables))
	for _, t := range tables {
		n, err := s.count(ctx, t)
		if err != nil {
			return nil, err
		}
		counts[t] = n
	}
	return counts, nil
}

// ----- scan/format helpers -----

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatDate(d civil.Date) string {
	return d.String()
}

func parseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

func dateToNull(d *civil.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullToDate(ns sql.NullString) (*civil.Date, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := parseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func idToNull(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func nullToID(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
