package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/mwaldrop/hearth/internal/schema"
)

// newTestStore opens a migrated store in a temp directory.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate store: %v", err)
	}
	return st
}

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func amount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("Bad amount %q: %v", s, err)
	}
	return d
}

func addMember(t *testing.T, st *Store, name string) int64 {
	t.Helper()
	id, err := st.AddMember(context.Background(), &schema.Member{
		SyncID: schema.NewSyncID(),
		Name:   name,
	})
	if err != nil {
		t.Fatalf("Failed to add member %q: %v", name, err)
	}
	return id
}

func addAssetCategory(t *testing.T, st *Store, name string) int64 {
	t.Helper()
	id, err := st.AddAssetCategory(context.Background(), &schema.AssetCategory{
		SyncID: schema.NewSyncID(),
		Name:   name,
		Kind:   schema.AssetKindAsset,
	})
	if err != nil {
		t.Fatalf("Failed to add asset category %q: %v", name, err)
	}
	return id
}

func addAssetItem(t *testing.T, st *Store, name string, memberID, categoryID *int64) int64 {
	t.Helper()
	id, err := st.AddAssetItem(context.Background(), &schema.AssetItem{
		SyncID:     schema.NewSyncID(),
		Name:       name,
		MemberID:   memberID,
		CategoryID: categoryID,
		IsActive:   true,
	})
	if err != nil {
		t.Fatalf("Failed to add asset item %q: %v", name, err)
	}
	return id
}

func addTransactionCategory(t *testing.T, st *Store, name string) int64 {
	t.Helper()
	id, err := st.AddTransactionCategory(context.Background(), &schema.TransactionCategory{
		SyncID: schema.NewSyncID(),
		Name:   name,
		Kind:   schema.TransactionExpense,
	})
	if err != nil {
		t.Fatalf("Failed to add transaction category %q: %v", name, err)
	}
	return id
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open store at %s: %v", path, err)
	}
	defer st.Close()
	if st.Path() != path {
		t.Errorf("Path() = %q, want %q", st.Path(), path)
	}
}

func TestMemberCRUD(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id := addMember(t, st, "Alice")

	got, err := st.GetMember(ctx, id)
	if err != nil {
		t.Fatalf("Failed to get member: %v", err)
	}
	if got.Name != "Alice" {
		t.Errorf("Name = %q, want %q", got.Name, "Alice")
	}
	if got.SyncID == "" {
		t.Error("Expected a sync id on the stored member")
	}

	newName := "Alicia"
	if err := st.UpdateMember(ctx, id, MemberPatch{Name: &newName}); err != nil {
		t.Fatalf("Failed to update member: %v", err)
	}
	got, err = st.GetMember(ctx, id)
	if err != nil {
		t.Fatalf("Failed to re-get member: %v", err)
	}
	if got.Name != "Alicia" {
		t.Errorf("Name after update = %q, want %q", got.Name, "Alicia")
	}

	if err := st.DeleteMember(ctx, id); err != nil {
		t.Fatalf("Failed to delete member: %v", err)
	}
	if _, err := st.GetMember(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestUpdateMissingRowReturnsNotFound(t *testing.T) {
	st := newTestStore(t)
	name := "ghost"
	err := st.UpdateMember(context.Background(), 9999, MemberPatch{Name: &name})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update of missing member = %v, want ErrNotFound", err)
	}
}

func TestAddMemberRejectsMissingSyncID(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.AddMember(context.Background(), &schema.Member{Name: "NoSync"}); err == nil {
		t.Error("Expected error for member without sync id")
	}
}

func TestDeleteMemberCascade(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	memberID := addMember(t, st, "Bob")
	catID := addAssetCategory(t, st, "Savings")
	itemID := addAssetItem(t, st, "Bob's account", &memberID, &catID)

	if err := st.SetDailyValue(ctx, &schema.DailyValue{
		SyncID:      schema.NewSyncID(),
		AssetItemID: itemID,
		Date:        date(2025, time.June, 1),
		Value:       amount(t, "1000"),
	}); err != nil {
		t.Fatalf("Failed to set daily value: %v", err)
	}

	txnID, err := st.AddTransaction(ctx, &schema.Transaction{
		SyncID:   schema.NewSyncID(),
		Type:     schema.TransactionExpense,
		Amount:   amount(t, "25.50"),
		Date:     date(2025, time.June, 2),
		MemberID: &memberID,
	})
	if err != nil {
		t.Fatalf("Failed to add transaction: %v", err)
	}

	if err := st.DeleteMember(ctx, memberID); err != nil {
		t.Fatalf("Failed to delete member: %v", err)
	}

	// Owned asset items and their values are gone.
	items, err := st.ListAssetItems(ctx)
	if err != nil {
		t.Fatalf("Failed to list asset items: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected 0 asset items after member delete, got %d", len(items))
	}
	values, err := st.ListDailyValues(ctx)
	if err != nil {
		t.Fatalf("Failed to list daily values: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("Expected 0 daily values after member delete, got %d", len(values))
	}

	// Financial history survives with the reference nulled.
	txn, err := st.GetTransaction(ctx, txnID)
	if err != nil {
		t.Fatalf("Transaction should survive member delete: %v", err)
	}
	if txn.MemberID != nil {
		t.Errorf("Expected nulled memberId, got %d", *txn.MemberID)
	}
}

func TestDeleteAssetCategoryCascade(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	catID := addAssetCategory(t, st, "Investments")
	otherCatID := addAssetCategory(t, st, "Cash")
	itemID := addAssetItem(t, st, "Brokerage", nil, &catID)
	otherItemID := addAssetItem(t, st, "Wallet", nil, &otherCatID)

	for _, id := range []int64{itemID, otherItemID} {
		if err := st.SetDailyValue(ctx, &schema.DailyValue{
			SyncID:      schema.NewSyncID(),
			AssetItemID: id,
			Date:        date(2025, time.June, 1),
			Value:       amount(t, "500"),
		}); err != nil {
			t.Fatalf("Failed to set daily value: %v", err)
		}
	}

	if err := st.DeleteAssetCategory(ctx, catID); err != nil {
		t.Fatalf("Failed to delete asset category: %v", err)
	}

	items, err := st.ListAssetItems(ctx)
	if err != nil {
		t.Fatalf("Failed to list asset items: %v", err)
	}
	if len(items) != 1 || items[0].ID != otherItemID {
		t.Errorf("Expected only the other category's item to survive, got %d items", len(items))
	}
	values, err := st.ListDailyValues(ctx)
	if err != nil {
		t.Fatalf("Failed to list daily values: %v", err)
	}
	if len(values) != 1 || values[0].AssetItemID != otherItemID {
		t.Errorf("Expected only the surviving item's value, got %d values", len(values))
	}
}

func TestDailyValueUpsert(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	catID := addAssetCategory(t, st, "Cash")
	itemID := addAssetItem(t, st, "Checking", nil, &catID)
	day := date(2025, time.July, 4)

	for _, v := range []string{"100", "250.75"} {
		if err := st.SetDailyValue(ctx, &schema.DailyValue{
			SyncID:      schema.NewSyncID(),
			AssetItemID: itemID,
			Date:        day,
			Value:       amount(t, v),
		}); err != nil {
			t.Fatalf("Failed to set daily value %s: %v", v, err)
		}
	}

	values, err := st.DailyValuesForItem(ctx, itemID)
	if err != nil {
		t.Fatalf("Failed to list daily values: %v", err)
	}
	if len(values) != 1 {
		t.Fatalf("Expected 1 value after upsert, got %d", len(values))
	}
	if !values[0].Value.Equal(amount(t, "250.75")) {
		t.Errorf("Value = %s, want 250.75", values[0].Value)
	}

	latest, err := st.LatestValueForItem(ctx, itemID)
	if err != nil {
		t.Fatalf("Failed to get latest value: %v", err)
	}
	if latest.Date != day {
		t.Errorf("Latest date = %v, want %v", latest.Date, day)
	}
}

func TestDailyValuesByDateRange(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	catID := addAssetCategory(t, st, "Cash")
	itemID := addAssetItem(t, st, "Checking", nil, &catID)

	days := []civil.Date{
		date(2025, time.January, 1),
		date(2025, time.January, 15),
		date(2025, time.February, 1),
	}
	for _, d := range days {
		if err := st.SetDailyValue(ctx, &schema.DailyValue{
			SyncID:      schema.NewSyncID(),
			AssetItemID: itemID,
			Date:        d,
			Value:       amount(t, "1"),
		}); err != nil {
			t.Fatalf("Failed to set daily value on %v: %v", d, err)
		}
	}

	got, err := st.DailyValuesByDateRange(ctx, date(2025, time.January, 2), date(2025, time.January, 31))
	if err != nil {
		t.Fatalf("Failed to query range: %v", err)
	}
	if len(got) != 1 || got[0].Date != days[1] {
		t.Errorf("Range query returned %d values, want exactly the Jan 15 row", len(got))
	}
}

func TestDeleteTransactionCategory(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	catID := addTransactionCategory(t, st, "Groceries")

	txnID, err := st.AddTransaction(ctx, &schema.Transaction{
		SyncID:     schema.NewSyncID(),
		Type:       schema.TransactionExpense,
		Amount:     amount(t, "42"),
		Date:       date(2025, time.May, 1),
		CategoryID: &catID,
	})
	if err != nil {
		t.Fatalf("Failed to add transaction: %v", err)
	}
	if err := st.SetBudget(ctx, &schema.Budget{
		SyncID:     schema.NewSyncID(),
		CategoryID: catID,
		Month:      "2025-05",
		Amount:     amount(t, "300"),
	}); err != nil {
		t.Fatalf("Failed to set budget: %v", err)
	}

	if err := st.DeleteTransactionCategory(ctx, catID); err != nil {
		t.Fatalf("Failed to delete transaction category: %v", err)
	}

	txn, err := st.GetTransaction(ctx, txnID)
	if err != nil {
		t.Fatalf("Transaction should survive category delete: %v", err)
	}
	if txn.CategoryID != nil {
		t.Errorf("Expected nulled categoryId, got %d", *txn.CategoryID)
	}

	budgets, err := st.ListBudgets(ctx)
	if err != nil {
		t.Fatalf("Failed to list budgets: %v", err)
	}
	if len(budgets) != 0 {
		t.Errorf("Expected the category's budgets to be removed, got %d", len(budgets))
	}
}

func TestDeletePaymentMethodNullsReferences(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	pmID, err := st.AddPaymentMethod(ctx, &schema.PaymentMethodItem{
		SyncID: schema.NewSyncID(),
		Name:   "Credit card",
	})
	if err != nil {
		t.Fatalf("Failed to add payment method: %v", err)
	}

	txnID, err := st.AddTransaction(ctx, &schema.Transaction{
		SyncID:          schema.NewSyncID(),
		Type:            schema.TransactionExpense,
		Amount:          amount(t, "9.99"),
		Date:            date(2025, time.May, 1),
		PaymentMethodID: &pmID,
	})
	if err != nil {
		t.Fatalf("Failed to add transaction: %v", err)
	}

	subID, err := st.AddSubscription(ctx, &schema.Subscription{
		SyncID:          schema.NewSyncID(),
		Name:            "Streaming",
		Currency:        "USD",
		Amount:          amount(t, "9.99"),
		Cycle:           schema.CycleMonthly,
		BillingDay:      15,
		Status:          schema.SubscriptionActive,
		StartDate:       date(2025, time.January, 1),
		PaymentMethodID: &pmID,
	})
	if err != nil {
		t.Fatalf("Failed to add subscription: %v", err)
	}

	if err := st.DeletePaymentMethod(ctx, pmID); err != nil {
		t.Fatalf("Failed to delete payment method: %v", err)
	}

	txn, err := st.GetTransaction(ctx, txnID)
	if err != nil {
		t.Fatalf("Failed to get transaction: %v", err)
	}
	if txn.PaymentMethodID != nil {
		t.Errorf("Expected nulled paymentMethodId on transaction, got %d", *txn.PaymentMethodID)
	}
	sub, err := st.GetSubscription(ctx, subID)
	if err != nil {
		t.Fatalf("Failed to get subscription: %v", err)
	}
	if sub.PaymentMethodID != nil {
		t.Errorf("Expected nulled paymentMethodId on subscription, got %d", *sub.PaymentMethodID)
	}
}

func TestBudgetUpsert(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	catID := addTransactionCategory(t, st, "Dining")

	for _, v := range []string{"200", "350"} {
		if err := st.SetBudget(ctx, &schema.Budget{
			SyncID:     schema.NewSyncID(),
			CategoryID: catID,
			Month:      "2025-06",
			Amount:     amount(t, v),
		}); err != nil {
			t.Fatalf("Failed to set budget %s: %v", v, err)
		}
	}

	budgets, err := st.BudgetsForMonth(ctx, "2025-06")
	if err != nil {
		t.Fatalf("Failed to list budgets: %v", err)
	}
	if len(budgets) != 1 {
		t.Fatalf("Expected 1 budget after upsert, got %d", len(budgets))
	}
	if !budgets[0].Amount.Equal(amount(t, "350")) {
		t.Errorf("Amount = %s, want 350", budgets[0].Amount)
	}
}

func TestBudgetRejectsBadMonth(t *testing.T) {
	st := newTestStore(t)
	catID := addTransactionCategory(t, st, "Dining")

	for _, month := range []string{"2025-13", "202506", "2025-6", "June 2025"} {
		err := st.SetBudget(context.Background(), &schema.Budget{
			SyncID:     schema.NewSyncID(),
			CategoryID: catID,
			Month:      month,
			Amount:     amount(t, "100"),
		})
		if err == nil {
			t.Errorf("Expected error for month %q", month)
		}
	}
}

func TestTransactionRecurPatternRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	end := date(2025, time.December, 31)
	id, err := st.AddTransaction(ctx, &schema.Transaction{
		SyncID:      schema.NewSyncID(),
		Type:        schema.TransactionExpense,
		Amount:      amount(t, "1200"),
		Date:        date(2025, time.January, 31),
		Memo:        "Rent",
		IsRecurring: true,
		RecurPattern: &schema.RecurPattern{
			Unit:     schema.RecurMonthly,
			Interval: 1,
			EndDate:  &end,
		},
	})
	if err != nil {
		t.Fatalf("Failed to add recurring transaction: %v", err)
	}

	got, err := st.GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("Failed to get transaction: %v", err)
	}
	if !got.IsRecurring || got.RecurPattern == nil {
		t.Fatal("Expected recurring flag and pattern to survive")
	}
	if got.RecurPattern.Unit != schema.RecurMonthly || got.RecurPattern.Interval != 1 {
		t.Errorf("Pattern = %+v, want monthly interval 1", got.RecurPattern)
	}
	if got.RecurPattern.EndDate == nil || *got.RecurPattern.EndDate != end {
		t.Errorf("EndDate = %v, want %v", got.RecurPattern.EndDate, end)
	}

	templates, err := st.RecurringTemplates(ctx)
	if err != nil {
		t.Fatalf("Failed to list templates: %v", err)
	}
	if len(templates) != 1 || templates[0].ID != id {
		t.Errorf("Expected the template in RecurringTemplates, got %d rows", len(templates))
	}
}

func TestFinancialGoalCRUD(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.AddFinancialGoal(ctx, &schema.FinancialGoal{
		SyncID:       schema.NewSyncID(),
		Name:         "Emergency fund",
		TargetAmount: amount(t, "10000"),
	})
	if err != nil {
		t.Fatalf("Failed to add goal: %v", err)
	}

	current := "2500.50"
	if err := st.UpdateFinancialGoal(ctx, id, FinancialGoalPatch{CurrentAmount: &current}); err != nil {
		t.Fatalf("Failed to update goal: %v", err)
	}

	goals, err := st.ListFinancialGoals(ctx)
	if err != nil {
		t.Fatalf("Failed to list goals: %v", err)
	}
	if len(goals) != 1 {
		t.Fatalf("Expected 1 goal, got %d", len(goals))
	}
	if !goals[0].CurrentAmount.Equal(amount(t, "2500.50")) {
		t.Errorf("CurrentAmount = %s, want 2500.50", goals[0].CurrentAmount)
	}

	if err := st.DeleteFinancialGoal(ctx, id); err != nil {
		t.Fatalf("Failed to delete goal: %v", err)
	}
}

func TestSubscriptionSaveRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sub := &schema.Subscription{
		SyncID:     schema.NewSyncID(),
		Name:       "Music",
		Currency:   "USD",
		Amount:     amount(t, "5.99"),
		Cycle:      schema.CycleMonthly,
		BillingDay: 10,
		Status:     schema.SubscriptionActive,
		StartDate:  date(2025, time.January, 10),
	}
	id, err := st.AddSubscription(ctx, sub)
	if err != nil {
		t.Fatalf("Failed to add subscription: %v", err)
	}

	if err := sub.Pause(date(2025, time.March, 1)); err != nil {
		t.Fatalf("Failed to pause: %v", err)
	}
	if err := st.SaveSubscription(ctx, sub); err != nil {
		t.Fatalf("Failed to save paused subscription: %v", err)
	}

	got, err := st.GetSubscription(ctx, id)
	if err != nil {
		t.Fatalf("Failed to get subscription: %v", err)
	}
	if got.Status != schema.SubscriptionPaused {
		t.Errorf("Status = %q, want paused", got.Status)
	}
	if len(got.PauseHistory) != 1 || got.PauseHistory[0].ResumedAt != nil {
		t.Errorf("Expected one open pause entry, got %+v", got.PauseHistory)
	}

	active, err := st.ActiveSubscriptions(ctx)
	if err != nil {
		t.Fatalf("Failed to list active subscriptions: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("Paused subscription should not be active, got %d", len(active))
	}
}

func TestWriteFaultReportsErrStorage(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Losing a table makes the next write fail inside the driver.
	if _, err := st.conn.ExecContext(ctx, `DROP TABLE members`); err != nil {
		t.Fatalf("Failed to drop table: %v", err)
	}

	_, err := st.AddMember(ctx, &schema.Member{SyncID: schema.NewSyncID(), Name: "Frank"})
	if err == nil {
		t.Fatal("Expected write against missing table to fail")
	}
	if !errors.Is(err, ErrStorage) {
		t.Errorf("Expected storage fault, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("Storage fault misreported as not-found: %v", err)
	}

	// Validation failures carry no storage tag.
	_, err = st.AddTransaction(ctx, &schema.Transaction{SyncID: schema.NewSyncID()})
	if err == nil {
		t.Fatal("Expected invalid transaction to be rejected")
	}
	if errors.Is(err, ErrStorage) {
		t.Errorf("Validation failure reported as storage fault: %v", err)
	}
}

func TestTableCounts(t *testing.T) {
	st := newTestStore(t)
	addMember(t, st, "Solo")

	counts, err := st.TableCounts(context.Background())
	if err != nil {
		t.Fatalf("Failed to count tables: %v", err)
	}
	if counts["members"] != 1 {
		t.Errorf("members count = %d, want 1", counts["members"])
	}
	if counts["transactions"] != 0 {
		t.Errorf("transactions count = %d, want 0", counts["transactions"])
	}
}
