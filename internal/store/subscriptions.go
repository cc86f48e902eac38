package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mwaldrop/hearth/internal/schema"
)

const subscriptionColumns = `id, sync_id, name, currency, amount, cycle,
	custom_days, billing_day, billing_month, status, start_date, end_date,
	pause_history, category_id, payment_method_id, created_at, updated_at`

// AddSubscription inserts a subscription and returns its local id.
func (s *Store) AddSubscription(ctx context.Context, sub *schema.Subscription) (int64, error) {
	if err := sub.Validate(); err != nil {
		return 0, fmt.Errorf("invalid subscription: %w", err)
	}
	now := time.Now()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	history, err := marshalPauseHistory(sub.PauseHistory)
	if err != nil {
		return 0, err
	}

	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO subscriptions (sync_id, name, currency, amount, cycle,
			custom_days, billing_day, billing_month, status, start_date, end_date,
			pause_history, category_id, payment_method_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.SyncID, sub.Name, sub.Currency, sub.Amount.String(), string(sub.Cycle),
		sub.CustomDays, sub.BillingDay, sub.BillingMonth, string(sub.Status),
		formatDate(sub.StartDate), dateToNull(sub.EndDate), history,
		idToNull(sub.CategoryID), idToNull(sub.PaymentMethodID),
		formatTime(sub.CreatedAt), formatTime(sub.UpdatedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert subscription: %w", storageErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read subscription id: %w", storageErr(err))
	}
	sub.ID = id
	return id, nil
}

// SaveSubscription writes the full subscription row back by local id,
// stamping updated_at. Status transitions (Pause/Resume/Cancel) mutate the
// struct in memory; this persists the result. Returns ErrNotFound if the
// id does not exist.
func (s *Store) SaveSubscription(ctx context.Context, sub *schema.Subscription) error {
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("invalid subscription: %w", err)
	}
	sub.UpdatedAt = time.Now()

	history, err := marshalPauseHistory(sub.PauseHistory)
	if err != nil {
		return err
	}

	res, err := s.conn.ExecContext(ctx,
		`UPDATE subscriptions SET name = ?, currency = ?, amount = ?, cycle = ?,
			custom_days = ?, billing_day = ?, billing_month = ?, status = ?,
			start_date = ?, end_date = ?, pause_history = ?,
			category_id = ?, payment_method_id = ?, updated_at = ?
		 WHERE id = ?`,
		sub.Name, sub.Currency, sub.Amount.String(), string(sub.Cycle),
		sub.CustomDays, sub.BillingDay, sub.BillingMonth, string(sub.Status),
		formatDate(sub.StartDate), dateToNull(sub.EndDate), history,
		idToNull(sub.CategoryID), idToNull(sub.PaymentMethodID),
		formatTime(sub.UpdatedAt), sub.ID)
	if err != nil {
		return fmt.Errorf("failed to update subscription %d: %w", sub.ID, storageErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check subscription update: %w", storageErr(err))
	}
	if n == 0 {
		return fmt.Errorf("subscription %d: %w", sub.ID, ErrNotFound)
	}
	return nil
}

// DeleteSubscription removes a subscription. Transactions generated from
// it keep their subscriptionId back-reference; it is lookup-only and never
// drives a cascade.
func (s *Store) DeleteSubscription(ctx context.Context, id int64) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete subscription %d: %w", id, storageErr(err))
	}
	return nil
}

// GetSubscription retrieves a subscription by local id.
func (s *Store) GetSubscription(ctx context.Context, id int64) (*schema.Subscription, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("subscription %d: %w", id, ErrNotFound)
	}
	return sub, err
}

// ListSubscriptions returns every subscription ordered by name.
func (s *Store) ListSubscriptions(ctx context.Context) ([]*schema.Subscription, error) {
	return s.querySubscriptions(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY name ASC`)
}

// ActiveSubscriptions returns the subscriptions eligible for billing,
// served from the status index.
func (s *Store) ActiveSubscriptions(ctx context.Context) ([]*schema.Subscription, error) {
	return s.querySubscriptions(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE status = ? ORDER BY name ASC`,
		string(schema.SubscriptionActive))
}

func (s *Store) querySubscriptions(ctx context.Context, query string, args ...interface{}) ([]*schema.Subscription, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", storageErr(err))
	}
	defer rows.Close()

	var out []*schema.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", storageErr(err))
	}
	return out, nil
}

func scanSubscription(r rowScanner) (*schema.Subscription, error) {
	var sub schema.Subscription
	var amount, cycle, status, startDate, history, createdAt, updatedAt string
	var endDate sql.NullString
	var categoryID, paymentMethodID sql.NullInt64

	err := r.Scan(&sub.ID, &sub.SyncID, &sub.Name, &sub.Currency, &amount, &cycle,
		&sub.CustomDays, &sub.BillingDay, &sub.BillingMonth, &status, &startDate, &endDate,
		&history, &categoryID, &paymentMethodID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", storageErr(err))
	}

	if sub.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	sub.Cycle = schema.BillingCycle(cycle)
	sub.Status = schema.SubscriptionStatus(status)
	if sub.StartDate, err = parseDate(startDate); err != nil {
		return nil, err
	}
	if sub.EndDate, err = nullToDate(endDate); err != nil {
		return nil, err
	}
	if history != "" && history != "[]" && history != "null" {
		if err := json.Unmarshal([]byte(history), &sub.PauseHistory); err != nil {
			return nil, fmt.Errorf("failed to parse pause history: %w", err)
		}
	}
	sub.CategoryID = nullToID(categoryID)
	sub.PaymentMethodID = nullToID(paymentMethodID)
	sub.CreatedAt = parseTime(createdAt)
	sub.UpdatedAt = parseTime(updatedAt)
	return &sub, nil
}

func marshalPauseHistory(history []schema.PauseInterval) (string, error) {
	if len(history) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(history)
	if err != nil {
		return "", fmt.Errorf("failed to marshal pause history: %w", err)
	}
	return string(data), nil
}
