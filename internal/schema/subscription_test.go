package schema

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func validSubscription() *Subscription {
	return &Subscription{
		SyncID:     NewSyncID(),
		Name:       "Streaming",
		Currency:   "USD",
		Amount:     decimal.NewFromInt(10),
		Cycle:      CycleMonthly,
		BillingDay: 15,
		Status:     SubscriptionActive,
		StartDate:  date(2025, time.January, 1),
	}
}

func TestSubscriptionValidateBillingDay(t *testing.T) {
	for _, day := range []int{1, 15, 28} {
		sub := validSubscription()
		sub.BillingDay = day
		if err := sub.Validate(); err != nil {
			t.Errorf("billingDay %d should be valid: %v", day, err)
		}
	}
	for _, day := range []int{0, 29, 31, -1} {
		sub := validSubscription()
		sub.BillingDay = day
		if err := sub.Validate(); err == nil {
			t.Errorf("billingDay %d should be rejected", day)
		}
	}
}

func TestSubscriptionValidateYearly(t *testing.T) {
	sub := validSubscription()
	sub.Cycle = CycleYearly
	sub.BillingMonth = 6
	if err := sub.Validate(); err != nil {
		t.Errorf("Valid yearly subscription rejected: %v", err)
	}
	sub.BillingMonth = 13
	if err := sub.Validate(); err == nil {
		t.Error("billingMonth 13 should be rejected")
	}
}

func TestSubscriptionValidateCustomDays(t *testing.T) {
	sub := validSubscription()
	sub.Cycle = CycleCustom
	sub.CustomDays = 0
	if err := sub.Validate(); err == nil {
		t.Error("custom cycle without customDays should be rejected")
	}
	sub.CustomDays = 10
	if err := sub.Validate(); err != nil {
		t.Errorf("Valid custom subscription rejected: %v", err)
	}
}

func TestSubscriptionValidateEndBeforeStart(t *testing.T) {
	sub := validSubscription()
	end := date(2024, time.December, 31)
	sub.EndDate = &end
	if err := sub.Validate(); err == nil {
		t.Error("endDate before startDate should be rejected")
	}
}

func TestPauseResumeCycle(t *testing.T) {
	sub := validSubscription()

	if err := sub.Pause(date(2025, time.March, 1)); err != nil {
		t.Fatalf("Failed to pause: %v", err)
	}
	if sub.Status != SubscriptionPaused {
		t.Errorf("Status = %q, want paused", sub.Status)
	}
	if err := sub.Pause(date(2025, time.March, 2)); err == nil {
		t.Error("Pausing a paused subscription should fail")
	}

	if err := sub.Resume(date(2025, time.April, 1)); err != nil {
		t.Fatalf("Failed to resume: %v", err)
	}
	if sub.Status != SubscriptionActive {
		t.Errorf("Status = %q, want active", sub.Status)
	}
	if err := sub.Resume(date(2025, time.April, 2)); err == nil {
		t.Error("Resuming an active subscription should fail")
	}

	if len(sub.PauseHistory) != 1 {
		t.Fatalf("Expected 1 pause entry, got %d", len(sub.PauseHistory))
	}
	p := sub.PauseHistory[0]
	if p.PausedAt != date(2025, time.March, 1) || p.ResumedAt == nil || *p.ResumedAt != date(2025, time.April, 1) {
		t.Errorf("Pause entry = %+v, want Mar 1 - Apr 1", p)
	}
	if err := sub.Validate(); err != nil {
		t.Errorf("Subscription invalid after pause/resume: %v", err)
	}
}

func TestResumeBeforePauseRejected(t *testing.T) {
	sub := validSubscription()
	if err := sub.Pause(date(2025, time.March, 10)); err != nil {
		t.Fatalf("Failed to pause: %v", err)
	}
	if err := sub.Resume(date(2025, time.March, 5)); err == nil {
		t.Error("Resume before pause date should fail")
	}
}

func TestCancelClosesOpenPause(t *testing.T) {
	sub := validSubscription()
	if err := sub.Pause(date(2025, time.March, 1)); err != nil {
		t.Fatalf("Failed to pause: %v", err)
	}
	if err := sub.Cancel(date(2025, time.May, 1)); err != nil {
		t.Fatalf("Failed to cancel: %v", err)
	}

	if sub.Status != SubscriptionCancelled {
		t.Errorf("Status = %q, want cancelled", sub.Status)
	}
	if sub.EndDate == nil || *sub.EndDate != date(2025, time.May, 1) {
		t.Errorf("EndDate = %v, want May 1", sub.EndDate)
	}
	if len(sub.PauseHistory) != 1 || sub.PauseHistory[0].ResumedAt == nil {
		t.Fatalf("Expected the open pause to be closed, got %+v", sub.PauseHistory)
	}
	if *sub.PauseHistory[0].ResumedAt != date(2025, time.May, 1) {
		t.Errorf("Pause closed at %v, want the cancel date", *sub.PauseHistory[0].ResumedAt)
	}

	if err := sub.Cancel(date(2025, time.June, 1)); err == nil {
		t.Error("Cancelling a cancelled subscription should fail")
	}
}

func TestPausedOnHalfOpen(t *testing.T) {
	resumed := date(2025, time.April, 1)
	sub := validSubscription()
	sub.PauseHistory = []PauseInterval{{PausedAt: date(2025, time.March, 1), ResumedAt: &resumed}}

	tests := []struct {
		d    civil.Date
		want bool
	}{
		{date(2025, time.February, 28), false},
		{date(2025, time.March, 1), true},  // pause start is covered
		{date(2025, time.March, 15), true},
		{date(2025, time.April, 1), false}, // resume date is not covered
		{date(2025, time.April, 2), false},
	}
	for _, tt := range tests {
		if got := sub.PausedOn(tt.d); got != tt.want {
			t.Errorf("PausedOn(%v) = %v, want %v", tt.d, got, tt.want)
		}
	}
}

func TestPausedOnOpenPause(t *testing.T) {
	sub := validSubscription()
	sub.PauseHistory = []PauseInterval{{PausedAt: date(2025, time.March, 1)}}

	if sub.PausedOn(date(2025, time.February, 1)) {
		t.Error("Date before open pause should not be covered")
	}
	if !sub.PausedOn(date(2030, time.January, 1)) {
		t.Error("Open pause should cover every later date")
	}
}

func TestValidatePauseHistory(t *testing.T) {
	apr := date(2025, time.April, 1)
	may := date(2025, time.May, 1)

	sub := validSubscription()
	sub.PauseHistory = []PauseInterval{
		{PausedAt: date(2025, time.March, 1)}, // open but not last
		{PausedAt: may},
	}
	if err := sub.Validate(); err == nil {
		t.Error("Open pause before the last entry should be rejected")
	}

	sub = validSubscription()
	sub.PauseHistory = []PauseInterval{
		{PausedAt: date(2025, time.March, 1), ResumedAt: &may},
		{PausedAt: apr}, // starts inside the previous window
	}
	if err := sub.Validate(); err == nil {
		t.Error("Overlapping pause entries should be rejected")
	}

	sub = validSubscription()
	sub.PauseHistory = []PauseInterval{
		{PausedAt: date(2025, time.March, 1), ResumedAt: &apr},
		{PausedAt: may},
	}
	if err := sub.Validate(); err != nil {
		t.Errorf("Ordered history with trailing open pause should be valid: %v", err)
	}
}
