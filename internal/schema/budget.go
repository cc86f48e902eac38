package schema

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

var monthRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Budget is an amount ceiling for one category in one month.
// At most one row may exist per (categoryId, month); writes upsert on
// that key. Month is formatted "YYYY-MM".
type Budget struct {
	ID         int64           `json:"-"`
	SyncID     string          `json:"syncId"`
	CategoryID int64           `json:"categoryId"`
	Month      string          `json:"month"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Validate checks that the budget is storable.
func (b *Budget) Validate() error {
	if b.SyncID == "" {
		return fmt.Errorf("syncId is required")
	}
	if b.CategoryID == 0 {
		return fmt.Errorf("categoryId is required")
	}
	if !monthRe.MatchString(b.Month) {
		return fmt.Errorf("month must be formatted YYYY-MM (got %q)", b.Month)
	}
	return nil
}

// FinancialGoal tracks progress toward a savings target. Goals reference
// no other entity and nothing references them.
type FinancialGoal struct {
	ID            int64           `json:"-"`
	SyncID        string          `json:"syncId"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	Deadline      string          `json:"deadline,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Validate checks that the goal is storable.
func (g *FinancialGoal) Validate() error {
	if g.SyncID == "" {
		return fmt.Errorf("syncId is required")
	}
	if g.Name == "" {
		return fmt.Errorf("name is required")
	}
	if g.TargetAmount.Sign() <= 0 {
		return fmt.Errorf("targetAmount must be positive (got %s)", g.TargetAmount)
	}
	return nil
}
