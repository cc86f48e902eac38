package schema

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a transaction.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// IsValid reports whether the type is one of the known values.
func (t TransactionType) IsValid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

// TransactionCategory classifies Transactions. Deleting a category never
// deletes transactions; their categoryId is nulled instead.
type TransactionCategory struct {
	ID        int64           `json:"-"`
	SyncID    string          `json:"syncId"`
	Name      string          `json:"name"`
	Kind      TransactionType `json:"type"`
	Color     string          `json:"color,omitempty"`
	Icon      string          `json:"icon,omitempty"`
	SortOrder int             `json:"sortOrder"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Validate checks that the category is storable.
func (c *TransactionCategory) Validate() error {
	if c.SyncID == "" {
		return fmt.Errorf("syncId is required")
	}
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !c.Kind.IsValid() {
		return fmt.Errorf("type must be %q or %q (got %q)", TransactionIncome, TransactionExpense, c.Kind)
	}
	return nil
}

// PaymentMethodItem is a lookup entity for how a transaction was paid.
// Rows may originate from user entry or from the v2 migration backfill
// that derives them from historical free-text payment notes.
type PaymentMethodItem struct {
	ID        int64     `json:"-"`
	SyncID    string    `json:"syncId"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon,omitempty"`
	SortOrder int       `json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks that the payment method is storable.
func (p *PaymentMethodItem) Validate() error {
	if p.SyncID == "" {
		return fmt.Errorf("syncId is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// RecurUnit is the base interval of a recurrence pattern.
type RecurUnit string

const (
	RecurDaily   RecurUnit = "daily"
	RecurWeekly  RecurUnit = "weekly"
	RecurMonthly RecurUnit = "monthly"
	RecurYearly  RecurUnit = "yearly"
)

// IsValid reports whether the unit is one of the known values.
func (u RecurUnit) IsValid() bool {
	switch u {
	case RecurDaily, RecurWeekly, RecurMonthly, RecurYearly:
		return true
	}
	return false
}

// RecurPattern describes how a recurring transaction template repeats:
// every Interval units starting from the template's own date, optionally
// stopping at EndDate (inclusive).
type RecurPattern struct {
	Unit     RecurUnit   `json:"unit"`
	Interval int         `json:"interval"`
	EndDate  *civil.Date `json:"endDate,omitempty"`
}

// Validate checks the pattern fields.
func (p *RecurPattern) Validate() error {
	if !p.Unit.IsValid() {
		return fmt.Errorf("unit must be daily, weekly, monthly or yearly (got %q)", p.Unit)
	}
	if p.Interval < 1 {
		return fmt.Errorf("interval must be at least 1 (got %d)", p.Interval)
	}
	if p.EndDate != nil && !p.EndDate.IsValid() {
		return fmt.Errorf("endDate is invalid: %v", *p.EndDate)
	}
	return nil
}

// Transaction is a single income or expense event.
//
// RecurSourceID and SubscriptionID are weak back-references from a
// generated transaction to the template or subscription that produced it.
// They are lookup-only: the schedule engines use them as idempotency keys,
// and no cascade ever follows them.
type Transaction struct {
	ID                int64           `json:"-"`
	SyncID            string          `json:"syncId"`
	Type              TransactionType `json:"type"`
	Amount            decimal.Decimal `json:"amount"`
	Date              civil.Date      `json:"date"`
	Memo              string          `json:"memo,omitempty"`
	CategoryID        *int64          `json:"categoryId,omitempty"`
	MemberID          *int64          `json:"memberId,omitempty"`
	PaymentMethodID   *int64          `json:"paymentMethodId,omitempty"`
	LinkedAssetItemID *int64          `json:"linkedAssetItemId,omitempty"`

	// PaymentNote is the legacy free-text payment field that predates
	// PaymentMethodItem. Kept for rows written before the v2 migration.
	PaymentNote string `json:"paymentNote,omitempty"`

	IsRecurring    bool          `json:"isRecurring,omitempty"`
	RecurPattern   *RecurPattern `json:"recurPattern,omitempty"`
	RecurSourceID  *int64        `json:"recurSourceId,omitempty"`
	SubscriptionID *int64        `json:"subscriptionId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks that the transaction is storable.
func (t *Transaction) Validate() error {
	if t.SyncID == "" {
		return fmt.Errorf("syncId is required")
	}
	if !t.Type.IsValid() {
		return fmt.Errorf("type must be %q or %q (got %q)", TransactionIncome, TransactionExpense, t.Type)
	}
	if !t.Date.IsValid() {
		return fmt.Errorf("date is invalid: %v", t.Date)
	}
	if t.IsRecurring {
		if t.RecurPattern == nil {
			return fmt.Errorf("recurring transaction requires a recurPattern")
		}
		if err := t.RecurPattern.Validate(); err != nil {
			return fmt.Errorf("invalid recurPattern: %w", err)
		}
	}
	return nil
}
