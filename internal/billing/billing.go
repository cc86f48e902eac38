// Package billing materializes expense transactions from subscriptions.
//
// Each active subscription yields one billing date per cycle step; the
// engine inserts one expense transaction per due date that has no
// existing transaction with the same subscriptionId and date. Like the
// recurring engine, repeated runs for the same day converge on the same
// row set.
package billing

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"cloud.google.com/go/civil"

	"github.com/mwaldrop/hearth/internal/dates"
	"github.com/mwaldrop/hearth/internal/schema"
	"github.com/mwaldrop/hearth/internal/store"
)

// Engine generates billing transactions from subscriptions.
type Engine struct {
	store  *store.Store
	logger *log.Logger
}

// New creates a subscription-billing engine. If logger is nil, a default
// logger writing to stderr is used.
func New(st *store.Store, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[billing] ", log.LstdFlags)
	}
	return &Engine{store: st, logger: logger}
}

// BillingDates returns every date the subscription bills on, from its
// start date through upTo inclusive. Pause windows are not applied here;
// DueDates layers them on top.
//
// Validation restricts billingDay to 1-28, but the clamp to the month's
// last day still runs for any legacy value outside that range so a stored
// 31 bills on Feb 28 rather than skipping or overflowing the month.
func BillingDates(sub *schema.Subscription, upTo civil.Date) []civil.Date {
	stop := upTo
	if sub.EndDate != nil {
		stop = dates.Min(stop, *sub.EndDate)
	}
	if stop.Before(sub.StartDate) {
		return nil
	}

	switch sub.Cycle {
	case schema.CycleWeekly:
		return everyNDays(sub.StartDate, 7, stop)
	case schema.CycleBiweekly:
		return everyNDays(sub.StartDate, 14, stop)
	case schema.CycleCustom:
		n := sub.CustomDays
		if n < 1 {
			n = 1
		}
		if n > 365 {
			n = 365
		}
		return everyNDays(sub.StartDate, n, stop)
	case schema.CycleMonthly:
		return everyNMonths(sub, 1, stop)
	case schema.CycleQuarterly:
		return everyNMonths(sub, 3, stop)
	case schema.CycleSemiAnnual:
		return everyNMonths(sub, 6, stop)
	case schema.CycleYearly:
		return yearlyDates(sub, stop)
	}
	return nil
}

// everyNDays walks fixed-length steps from the start date.
func everyNDays(start civil.Date, n int, stop civil.Date) []civil.Date {
	var out []civil.Date
	for d := start; !stop.Before(d); d = d.AddDays(n) {
		out = append(out, d)
	}
	return out
}

// everyNMonths yields one occurrence every n months on the subscription's
// billing day, clamped to each month's length. The first candidate month
// is the start month; a billing day earlier in that month than the start
// date falls before the subscription exists and is dropped.
func everyNMonths(sub *schema.Subscription, n int, stop civil.Date) []civil.Date {
	var out []civil.Date
	for i := 0; ; i++ {
		y, m := dates.AddMonths(sub.StartDate.Year, sub.StartDate.Month, i*n)
		d := dates.ClampedDate(y, m, sub.BillingDay)
		if stop.Before(d) {
			break
		}
		if d.Before(sub.StartDate) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// yearlyDates yields one occurrence per year on (billingMonth,
// billingDay), clamped to the month's length, so February 29 is never
// produced. The first occurrence is the earliest such date not before
// the start date.
func yearlyDates(sub *schema.Subscription, stop civil.Date) []civil.Date {
	month := time.Month(sub.BillingMonth)
	year := sub.StartDate.Year
	if dates.ClampedDate(year, month, sub.BillingDay).Before(sub.StartDate) {
		year++
	}

	var out []civil.Date
	for ; ; year++ {
		d := dates.ClampedDate(year, month, sub.BillingDay)
		if stop.Before(d) {
			break
		}
		out = append(out, d)
	}
	return out
}

// DueDates returns the billing dates through upTo that fall outside every
// pause window.
func DueDates(sub *schema.Subscription, upTo civil.Date) []civil.Date {
	var out []civil.Date
	for _, d := range BillingDates(sub, upTo) {
		if sub.PausedOn(d) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Run materializes due billing transactions for every active subscription
// up to today and returns the number created. A failed insert is logged
// and skipped without aborting the remaining dates or subscriptions.
func (e *Engine) Run(ctx context.Context, today civil.Date) (int, error) {
	subs, err := e.store.ActiveSubscriptions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load active subscriptions: %w", err)
	}

	created := 0
	for _, sub := range subs {
		n, err := e.runSubscription(ctx, sub, today)
		if err != nil {
			e.logger.Printf("WARNING: subscription %d (%s): %v", sub.ID, sub.Name, err)
			continue
		}
		created += n
	}

	if created > 0 {
		e.logger.Printf("Generated %d billing transactions from %d subscriptions", created, len(subs))
	}
	return created, nil
}

func (e *Engine) runSubscription(ctx context.Context, sub *schema.Subscription, today civil.Date) (int, error) {
	existing, err := e.store.TransactionsBySubscription(ctx, sub.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load billed transactions: %w", err)
	}
	billed := make(map[civil.Date]bool, len(existing))
	for _, t := range existing {
		billed[t.Date] = true
	}

	created := 0
	for _, d := range DueDates(sub, today) {
		if billed[d] {
			continue
		}

		txn := &schema.Transaction{
			SyncID:          schema.NewSyncID(),
			Type:            schema.TransactionExpense,
			Amount:          sub.Amount,
			Date:            d,
			Memo:            sub.Name,
			CategoryID:      sub.CategoryID,
			PaymentMethodID: sub.PaymentMethodID,
			SubscriptionID:  &sub.ID,
		}
		if _, err := e.store.AddTransaction(ctx, txn); err != nil {
			e.logger.Printf("WARNING: failed to bill %s on %v: %v", sub.Name, d, err)
			continue
		}
		created++
	}
	return created, nil
}
