package schema

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// BillingCycle is how often a subscription bills.
type BillingCycle string

const (
	CycleWeekly     BillingCycle = "weekly"
	CycleBiweekly   BillingCycle = "biweekly"
	CycleMonthly    BillingCycle = "monthly"
	CycleQuarterly  BillingCycle = "quarterly"
	CycleSemiAnnual BillingCycle = "semiannual"
	CycleYearly     BillingCycle = "yearly"
	CycleCustom     BillingCycle = "custom"
)

// IsValid reports whether the cycle is one of the known values.
func (c BillingCycle) IsValid() bool {
	switch c {
	case CycleWeekly, CycleBiweekly, CycleMonthly, CycleQuarterly,
		CycleSemiAnnual, CycleYearly, CycleCustom:
		return true
	}
	return false
}

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPaused    SubscriptionStatus = "paused"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// IsValid reports whether the status is one of the known values.
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionActive, SubscriptionPaused, SubscriptionCancelled:
		return true
	}
	return false
}

// PauseInterval is one entry in a subscription's pause history. The
// interval is half-open: a billing date d is covered when
// pausedAt <= d < resumedAt. A nil ResumedAt means the pause is still
// open and covers every date from PausedAt on.
type PauseInterval struct {
	PausedAt  civil.Date  `json:"pausedAt"`
	ResumedAt *civil.Date `json:"resumedAt,omitempty"`
}

// Contains reports whether d falls inside the interval.
func (p PauseInterval) Contains(d civil.Date) bool {
	if d.Before(p.PausedAt) {
		return false
	}
	return p.ResumedAt == nil || d.Before(*p.ResumedAt)
}

// Subscription is a recurring billing definition. The billing engine
// materializes one expense transaction per due billing date.
//
// BillingDay is restricted to 1-28 at validation so that a user-chosen
// day never silently shifts under the month-length clamp; the clamp is
// still applied when generating dates, for legacy rows outside that range.
type Subscription struct {
	ID     int64  `json:"-"`
	SyncID string `json:"syncId"`
	Name   string `json:"name"`

	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`

	Cycle BillingCycle `json:"cycle"`
	// CustomDays is the day interval for CycleCustom, clamped to [1, 365]
	// when generating dates.
	CustomDays int `json:"customDays,omitempty"`
	// BillingDay is the day of month for month-based cycles (1-28).
	BillingDay int `json:"billingDay,omitempty"`
	// BillingMonth is the month (1-12) for CycleYearly.
	BillingMonth int `json:"billingMonth,omitempty"`

	Status    SubscriptionStatus `json:"status"`
	StartDate civil.Date         `json:"startDate"`
	EndDate   *civil.Date        `json:"endDate,omitempty"`

	// PauseHistory is ordered and non-overlapping; at most the last entry
	// may be open (missing resumedAt).
	PauseHistory []PauseInterval `json:"pauseHistory,omitempty"`

	CategoryID      *int64 `json:"categoryId,omitempty"`
	PaymentMethodID *int64 `json:"paymentMethodId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks that the subscription is storable.
func (s *Subscription) Validate() error {
	if s.SyncID == "" {
		return fmt.Errorf("syncId is required")
	}
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Currency == "" {
		return fmt.Errorf("currency is required")
	}
	if s.Amount.Sign() <= 0 {
		return fmt.Errorf("amount must be positive (got %s)", s.Amount)
	}
	if !s.Cycle.IsValid() {
		return fmt.Errorf("invalid cycle %q", s.Cycle)
	}
	if !s.Status.IsValid() {
		return fmt.Errorf("invalid status %q", s.Status)
	}
	if !s.StartDate.IsValid() {
		return fmt.Errorf("startDate is invalid: %v", s.StartDate)
	}
	if s.EndDate != nil && s.EndDate.Before(s.StartDate) {
		return fmt.Errorf("endDate %v is before startDate %v", *s.EndDate, s.StartDate)
	}
	switch s.Cycle {
	case CycleCustom:
		if s.CustomDays < 1 {
			return fmt.Errorf("custom cycle requires customDays >= 1 (got %d)", s.CustomDays)
		}
	case CycleMonthly, CycleQuarterly, CycleSemiAnnual:
		if s.BillingDay < 1 || s.BillingDay > 28 {
			return fmt.Errorf("billingDay must be between 1 and 28 (got %d)", s.BillingDay)
		}
	case CycleYearly:
		if s.BillingDay < 1 || s.BillingDay > 28 {
			return fmt.Errorf("billingDay must be between 1 and 28 (got %d)", s.BillingDay)
		}
		if s.BillingMonth < 1 || s.BillingMonth > 12 {
			return fmt.Errorf("billingMonth must be between 1 and 12 (got %d)", s.BillingMonth)
		}
	}
	return s.validatePauseHistory()
}

// validatePauseHistory checks ordering, non-overlap, and that only the
// last entry may be open.
func (s *Subscription) validatePauseHistory() error {
	for i, p := range s.PauseHistory {
		if !p.PausedAt.IsValid() {
			return fmt.Errorf("pauseHistory[%d].pausedAt is invalid", i)
		}
		if p.ResumedAt != nil && p.ResumedAt.Before(p.PausedAt) {
			return fmt.Errorf("pauseHistory[%d] resumes before it pauses", i)
		}
		if p.ResumedAt == nil && i != len(s.PauseHistory)-1 {
			return fmt.Errorf("pauseHistory[%d] is open but not the last entry", i)
		}
		if i > 0 {
			prev := s.PauseHistory[i-1]
			if prev.ResumedAt == nil || p.PausedAt.Before(*prev.ResumedAt) {
				return fmt.Errorf("pauseHistory[%d] overlaps the previous entry", i)
			}
		}
	}
	return nil
}

// PausedOn reports whether d falls inside any pause window.
func (s *Subscription) PausedOn(d civil.Date) bool {
	for _, p := range s.PauseHistory {
		if p.Contains(d) {
			return true
		}
	}
	return false
}

// openPause returns the index of the currently open pause entry, or -1.
func (s *Subscription) openPause() int {
	n := len(s.PauseHistory)
	if n > 0 && s.PauseHistory[n-1].ResumedAt == nil {
		return n - 1
	}
	return -1
}

// Pause transitions the subscription to paused, appending an open pause
// entry starting at the given date.
func (s *Subscription) Pause(at civil.Date) error {
	if s.Status != SubscriptionActive {
		return fmt.Errorf("cannot pause a %s subscription", s.Status)
	}
	s.PauseHistory = append(s.PauseHistory, PauseInterval{PausedAt: at})
	s.Status = SubscriptionPaused
	return nil
}

// Resume transitions the subscription back to active, closing the open
// pause entry at the given date.
func (s *Subscription) Resume(at civil.Date) error {
	if s.Status != SubscriptionPaused {
		return fmt.Errorf("cannot resume a %s subscription", s.Status)
	}
	i := s.openPause()
	if i < 0 {
		return fmt.Errorf("paused subscription has no open pause entry")
	}
	if at.Before(s.PauseHistory[i].PausedAt) {
		return fmt.Errorf("resume date %v is before pause date %v", at, s.PauseHistory[i].PausedAt)
	}
	resumed := at
	s.PauseHistory[i].ResumedAt = &resumed
	s.Status = SubscriptionActive
	return nil
}

// Cancel transitions the subscription to cancelled. A still-open pause
// entry is closed at the cancellation date first, then endDate is stamped,
// so a cancelled subscription never carries a dangling open pause.
func (s *Subscription) Cancel(at civil.Date) error {
	if s.Status == SubscriptionCancelled {
		return fmt.Errorf("subscription is already cancelled")
	}
	if i := s.openPause(); i >= 0 {
		if at.Before(s.PauseHistory[i].PausedAt) {
			return fmt.Errorf("cancel date %v is before open pause date %v", at, s.PauseHistory[i].PausedAt)
		}
		resumed := at
		s.PauseHistory[i].ResumedAt = &resumed
	}
	end := at
	s.EndDate = &end
	s.Status = SubscriptionCancelled
	return nil
}
