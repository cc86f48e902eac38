// Package recur materializes transactions from recurring templates.
//
// A template is a transaction flagged isRecurring whose pattern describes
// a fixed repetition from the template's own date. The engine computes
// every occurrence due up to "today" and inserts a transaction for each
// one that does not already exist, using the recurSourceId back-reference
// as the sole idempotency key. Running the engine any number of times for
// the same day converges on the same set of rows: it only ever adds
// missing occurrences, never duplicates or deletes.
package recur

import (
	"context"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/civil"

	"github.com/mwaldrop/hearth/internal/dates"
	"github.com/mwaldrop/hearth/internal/schema"
	"github.com/mwaldrop/hearth/internal/store"
)

// Engine generates transactions from recurring templates.
type Engine struct {
	store  *store.Store
	logger *log.Logger
}

// New creates a recurring-transaction engine. If logger is nil, a default
// logger writing to stderr is used.
func New(st *store.Store, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[recur] ", log.LstdFlags)
	}
	return &Engine{store: st, logger: logger}
}

// Occurrences returns the dates a template repeats on, starting at the
// template's own date and stopping at min(upTo, pattern end date),
// inclusive. The template date itself is the first element. Month and
// year steps clamp to the target month's length.
func Occurrences(start civil.Date, p schema.RecurPattern, upTo civil.Date) []civil.Date {
	if p.Interval < 1 {
		return nil
	}
	stop := upTo
	if p.EndDate != nil {
		stop = dates.Min(stop, *p.EndDate)
	}
	if stop.Before(start) {
		return nil
	}

	var out []civil.Date
	switch p.Unit {
	case schema.RecurDaily, schema.RecurWeekly:
		step := p.Interval
		if p.Unit == schema.RecurWeekly {
			step *= 7
		}
		for d := start; !stop.Before(d); d = d.AddDays(step) {
			out = append(out, d)
		}
	case schema.RecurMonthly:
		for i := 0; ; i++ {
			y, m := dates.AddMonths(start.Year, start.Month, i*p.Interval)
			d := dates.ClampedDate(y, m, start.Day)
			if stop.Before(d) {
				break
			}
			out = append(out, d)
		}
	case schema.RecurYearly:
		for y := start.Year; ; y += p.Interval {
			d := dates.ClampedDate(y, start.Month, start.Day)
			if stop.Before(d) {
				break
			}
			out = append(out, d)
		}
	}
	return out
}

// Run materializes all occurrences due up to today for every template and
// returns the number of transactions created, so callers can decide
// whether to reload. A failed insert is logged and skipped; it never
// aborts the remaining occurrences or templates.
func (e *Engine) Run(ctx context.Context, today civil.Date) (int, error) {
	templates, err := e.store.RecurringTemplates(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load recurring templates: %w", err)
	}

	created := 0
	for _, tmpl := range templates {
		n, err := e.runTemplate(ctx, tmpl, today)
		if err != nil {
			e.logger.Printf("WARNING: template %d: %v", tmpl.ID, err)
			continue
		}
		created += n
	}

	if created > 0 {
		e.logger.Printf("Generated %d transactions from %d templates", created, len(templates))
	}
	return created, nil
}

func (e *Engine) runTemplate(ctx context.Context, tmpl *schema.Transaction, today civil.Date) (int, error) {
	if tmpl.RecurPattern == nil {
		return 0, fmt.Errorf("template has no pattern")
	}

	existing, err := e.store.TransactionsByRecurSource(ctx, tmpl.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load generated transactions: %w", err)
	}
	have := make(map[civil.Date]bool, len(existing))
	for _, t := range existing {
		have[t.Date] = true
	}

	created := 0
	for _, d := range Occurrences(tmpl.Date, *tmpl.RecurPattern, today) {
		// The template's own date is the template itself, not an
		// occurrence to generate.
		if d == tmpl.Date || have[d] {
			continue
		}

		gen := &schema.Transaction{
			SyncID:          schema.NewSyncID(),
			Type:            tmpl.Type,
			Amount:          tmpl.Amount,
			Date:            d,
			Memo:            tmpl.Memo,
			CategoryID:      tmpl.CategoryID,
			MemberID:        tmpl.MemberID,
			PaymentMethodID: tmpl.PaymentMethodID,
			RecurSourceID:   &tmpl.ID,
		}
		if _, err := e.store.AddTransaction(ctx, gen); err != nil {
			e.logger.Printf("WARNING: failed to generate occurrence %v for template %d: %v", d, tmpl.ID, err)
			continue
		}
		created++
	}
	return created, nil
}
