package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mwaldrop/hearth/internal/schema"
)

func TestMigrateFreshStore(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "fresh.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	v, err := st.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("Failed to read version: %v", err)
	}
	if v != 0 {
		t.Errorf("Fresh store version = %d, want 0", v)
	}

	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	v, err = st.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("Failed to re-read version: %v", err)
	}
	if want := migrations[len(migrations)-1].version; v != want {
		t.Errorf("Migrated version = %d, want %d", v, want)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	before, err := st.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("Failed to read version: %v", err)
	}
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("Second migrate failed: %v", err)
	}
	after, err := st.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("Failed to re-read version: %v", err)
	}
	if after != before {
		t.Errorf("Version changed across no-op migrate: %d -> %d", before, after)
	}
}

// migrateUpTo applies migrations only through the given version, leaving
// the store mid-history so later tests can seed legacy data.
func migrateUpTo(t *testing.T, st *Store, version int) {
	t.Helper()
	ctx := context.Background()
	if _, err := st.SchemaVersion(ctx); err != nil {
		t.Fatalf("Failed to ensure version table: %v", err)
	}
	for _, m := range migrations {
		if m.version > version {
			break
		}
		tx, err := st.begin(ctx)
		if err != nil {
			t.Fatalf("Failed to begin migration v%d: %v", m.version, err)
		}
		if err := m.apply(ctx, tx); err != nil {
			t.Fatalf("Failed to apply migration v%d: %v", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
			t.Fatalf("Failed to clear version: %v", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, m.version); err != nil {
			t.Fatalf("Failed to record version: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Failed to commit migration v%d: %v", m.version, err)
		}
	}
}

func TestMigrateBackfillsLegacyPaymentNotes(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "legacy.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	// A v1 store holds free-text payment notes and no payment_methods
	// table yet.
	migrateUpTo(t, st, 1)
	for _, row := range []struct {
		date, note string
	}{
		{"2024-01-05", "Visa"},
		{"2024-01-10", "Cash"},
		{"2024-01-15", "Visa"},
	} {
		if _, err := st.conn.ExecContext(ctx,
			`INSERT INTO transactions (sync_id, type, amount, date, payment_note, created_at, updated_at)
			 VALUES (?, 'expense', '25', ?, ?, '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z')`,
			schema.NewSyncID(), row.date, row.note); err != nil {
			t.Fatalf("Failed to seed legacy transaction: %v", err)
		}
	}

	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	methods, err := st.ListPaymentMethods(ctx)
	if err != nil {
		t.Fatalf("Failed to list payment methods: %v", err)
	}
	if len(methods) != 2 {
		t.Fatalf("Expected 2 derived methods, got %d", len(methods))
	}
	if methods[0].Name != "Visa" || methods[1].Name != "Cash" {
		t.Errorf("Methods in wrong order: %q, %q", methods[0].Name, methods[1].Name)
	}
	byName := map[string]int64{}
	for _, m := range methods {
		byName[m.Name] = m.ID
	}

	// Every historical transaction links to the method derived from its
	// note, with positions remapped to the real inserted ids.
	txns, err := st.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("Failed to list transactions: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("Expected 3 transactions, got %d", len(txns))
	}
	for _, txn := range txns {
		if txn.PaymentMethodID == nil {
			t.Errorf("Transaction on %v not linked to a payment method", txn.Date)
			continue
		}
		if want := byName[txn.PaymentNote]; *txn.PaymentMethodID != want {
			t.Errorf("Transaction noted %q linked to method %d, want %d",
				txn.PaymentNote, *txn.PaymentMethodID, want)
		}
	}
}

func TestDerivePaymentMethods(t *testing.T) {
	rows := []legacyPaymentRow{
		{transactionID: 1, paymentNote: "Visa"},
		{transactionID: 2, paymentNote: "  Visa  "},
		{transactionID: 3, paymentNote: "Cash"},
		{transactionID: 4, paymentNote: ""},
		{transactionID: 5, paymentNote: "   "},
		{transactionID: 6, paymentNote: "Visa"},
	}

	methods, links := derivePaymentMethods(rows)

	if len(methods) != 2 {
		t.Fatalf("Expected 2 derived methods, got %d", len(methods))
	}
	if methods[0].Name != "Visa" || methods[1].Name != "Cash" {
		t.Errorf("Methods in wrong order: %q, %q", methods[0].Name, methods[1].Name)
	}
	if methods[0].SortOrder != 0 || methods[1].SortOrder != 1 {
		t.Errorf("Sort orders = %d, %d, want first-appearance order", methods[0].SortOrder, methods[1].SortOrder)
	}
	for i, m := range methods {
		if m.SyncID == "" {
			t.Errorf("Method %d has no sync id", i)
		}
	}

	// Blank notes produce no links; duplicates link to the same method.
	want := []paymentLink{
		{transactionID: 1, paymentMethodID: 1},
		{transactionID: 2, paymentMethodID: 1},
		{transactionID: 3, paymentMethodID: 2},
		{transactionID: 6, paymentMethodID: 1},
	}
	if len(links) != len(want) {
		t.Fatalf("Expected %d links, got %d", len(want), len(links))
	}
	for i, l := range links {
		if l != want[i] {
			t.Errorf("Link %d = %+v, want %+v", i, l, want[i])
		}
	}
}

func TestDerivePaymentMethodsEmpty(t *testing.T) {
	methods, links := derivePaymentMethods(nil)
	if len(methods) != 0 || len(links) != 0 {
		t.Errorf("Expected no output for no input, got %d methods, %d links", len(methods), len(links))
	}
}
