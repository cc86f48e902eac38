package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/mwaldrop/hearth/internal/schema"
)

// ----- transaction categories -----

// AddTransactionCategory inserts a transaction category.
func (s *Store) AddTransactionCategory(ctx context.Context, c *schema.TransactionCategory) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, fmt.Errorf("invalid transaction category: %w", err)
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO transaction_categories (sync_id, name, kind, color, icon, sort_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.SyncID, c.Name, string(c.Kind), c.Color, c.Icon, c.SortOrder,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction category: %w", storageErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read transaction category id: %w", storageErr(err))
	}
	c.ID = id
	return id, nil
}

// TransactionCategoryPatch is a partial update for a transaction category.
type TransactionCategoryPatch struct {
	Name      *string
	Color     *string
	Icon      *string
	SortOrder *int
}

// UpdateTransactionCategory merges the patch into the category row.
func (s *Store) UpdateTransactionCategory(ctx context.Context, id int64, p TransactionCategoryPatch) error {
	var sets []string
	var args []interface{}
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.Color != nil {
		sets = append(sets, "color = ?")
		args = append(args, *p.Color)
	}
	if p.Icon != nil {
		sets = append(sets, "icon = ?")
		args = append(args, *p.Icon)
	}
	if p.SortOrder != nil {
		sets = append(sets, "sort_order = ?")
		args = append(args, *p.SortOrder)
	}
	return s.updateRow(ctx, "transaction_categories", id, sets, args)
}

// DeleteTransactionCategory removes a category. Transactions referencing
// it are kept and their categoryId is nulled; financial history is never
// deleted through a category. Budgets for the category lose their key and
// are removed. Runs in one transaction.
func (s *Store) DeleteTransactionCategory(ctx context.Context, id int64) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE transactions SET category_id = NULL, updated_at = ? WHERE category_id = ?`,
		formatTime(time.Now()), id); err != nil {
		return fmt.Errorf("failed to detach transactions from category %d: %w", id, storageErr(err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM budgets WHERE category_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete budgets for category %d: %w", id, storageErr(err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transaction_categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete transaction category %d: %w", id, storageErr(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction category delete: %w", storageErr(err))
	}
	return nil
}

// ListTransactionCategories returns all transaction categories ordered by
// sort order.
func (s *Store) ListTransactionCategories(ctx context.Context) ([]*schema.TransactionCategory, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, sync_id, name, kind, color, icon, sort_order, created_at, updated_at
		 FROM transaction_categories ORDER BY sort_order ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list transaction categories: %w", storageErr(err))
	}
	defer rows.Close()

	var out []*schema.TransactionCategory
	for rows.Next() {
		var c schema.TransactionCategory
		var kind, createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.SyncID, &c.Name, &kind, &c.Color, &c.Icon, &c.SortOrder, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction category: %w", storageErr(err))
		}
		c.Kind = schema.TransactionType(kind)
		c.CreatedAt = parseTime(createdAt)
		c.UpdatedAt = parseTime(updatedAt)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction categories: %w", storageErr(err))
	}
	return out, nil
}

// ----- payment methods -----

// AddPaymentMethod inserts a payment method.
func (s *Store) AddPaymentMethod(ctx context.Context, p *schema.PaymentMethodItem) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, fmt.Errorf("invalid payment method: %w", err)
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO payment_methods (sync_id, name, icon, sort_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.SyncID, p.Name, p.Icon, p.SortOrder, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert payment method: %w", storageErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read payment method id: %w", storageErr(err))
	}
	p.ID = id
	return id, nil
}

// PaymentMethodPatch is a partial update for a payment method.
type PaymentMethodPatch struct {
	Name      *string
	Icon      *string
	SortOrder *int
}

// UpdatePaymentMethod merges the patch into the payment method row.
func (s *Store) UpdatePaymentMethod(ctx context.Context, id int64, p PaymentMethodPatch) error {
	var sets []string
	var args []interface{}
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.Icon != nil {
		sets = append(sets, "icon = ?")
		args = append(args, *p.Icon)
	}
	if p.SortOrder != nil {
		sets = append(sets, "sort_order = ?")
		args = append(args, *p.SortOrder)
	}
	return s.updateRow(ctx, "payment_methods", id, sets, args)
}

// DeletePaymentMethod removes a payment method and nulls the reference on
// transactions and subscriptions, in one transaction.
func (s *Store) DeletePaymentMethod(ctx context.Context, id int64) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	if _, err := tx.ExecContext(ctx,
		`UPDATE transactions SET payment_method_id = NULL, updated_at = ? WHERE payment_method_id = ?`,
		now, id); err != nil {
		return fmt.Errorf("failed to detach transactions from payment method %d: %w", id, storageErr(err))
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE subscriptions SET payment_method_id = NULL, updated_at = ? WHERE payment_method_id = ?`,
		now, id); err != nil {
		return fmt.Errorf("failed to detach subscriptions from payment method %d: %w", id, storageErr(err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM payment_methods WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete payment method %d: %w", id, storageErr(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit payment method delete: %w", storageErr(err))
	}
	return nil
}

// ListPaymentMethods returns all payment methods ordered by sort order.
func (s *Store) ListPaymentMethods(ctx context.Context) ([]*schema.PaymentMethodItem, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, sync_id, name, icon, sort_order, created_at, updated_at
		 FROM payment_methods ORDER BY sort_order ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", storageErr(err))
	}
	defer rows.Close()

	var out []*schema.PaymentMethodItem
	for rows.Next() {
		var p schema.PaymentMethodItem
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.SyncID, &p.Name, &p.Icon, &p.SortOrder, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment method: %w", storageErr(err))
		}
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment methods: %w", storageErr(err))
	}
	return out, nil
}

// ----- transactions -----

const transactionColumns = `id, sync_id, type, amount, date, memo,
	category_id, member_id, payment_method_id, linked_asset_item_id,
	payment_note, is_recurring, recur_pattern, recur_source_id, subscription_id,
	created_at, updated_at`

// AddTransaction inserts a transaction and returns its local id.
func (s *Store) AddTransaction(ctx context.Context, t *schema.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("invalid transaction: %w", err)
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	pattern, err := marshalPattern(t.RecurPattern)
	if err != nil {
		return 0, err
	}

	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO transactions (sync_id, type, amount, date, memo,
			category_id, member_id, payment_method_id, linked_asset_item_id,
			payment_note, is_recurring, recur_pattern, recur_source_id, subscription_id,
			created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.SyncID, string(t.Type), t.Amount.String(), formatDate(t.Date), t.Memo,
		idToNull(t.CategoryID), idToNull(t.MemberID), idToNull(t.PaymentMethodID),
		idToNull(t.LinkedAssetItemID), t.PaymentNote, t.IsRecurring, pattern,
		idToNull(t.RecurSourceID), idToNull(t.SubscriptionID),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction: %w", storageErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read transaction id: %w", storageErr(err))
	}
	t.ID = id
	return id, nil
}

// TransactionPatch is a partial update for a transaction. Nullable
// references use sql.NullInt64 so a patch can set them to NULL.
type TransactionPatch struct {
	Amount          *string
	Date            *civil.Date
	Memo            *string
	CategoryID      *sql.NullInt64
	MemberID        *sql.NullInt64
	PaymentMethodID *sql.NullInt64
	RecurPattern    *schema.RecurPattern
}

// UpdateTransaction merges the patch into the transaction row.
func (s *Store) UpdateTransaction(ctx context.Context, id int64, p TransactionPatch) error {
	var sets []string
	var args []interface{}
	if p.Amount != nil {
		if _, err := parseAmount(*p.Amount); err != nil {
			return err
		}
		sets = append(sets, "amount = ?")
		args = append(args, *p.Amount)
	}
	if p.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, formatDate(*p.Date))
	}
	if p.Memo != nil {
		sets = append(sets, "memo = ?")
		args = append(args, *p.Memo)
	}
	if p.CategoryID != nil {
		sets = append(sets, "category_id = ?")
		args = append(args, *p.CategoryID)
	}
	if p.MemberID != nil {
		sets = append(sets, "member_id = ?")
		args = append(args, *p.MemberID)
	}
	if p.PaymentMethodID != nil {
		sets = append(sets, "payment_method_id = ?")
		args = append(args, *p.PaymentMethodID)
	}
	if p.RecurPattern != nil {
		pattern, err := marshalPattern(p.RecurPattern)
		if err != nil {
			return err
		}
		sets = append(sets, "recur_pattern = ?")
		args = append(args, pattern)
	}
	return s.updateRow(ctx, "transactions", id, sets, args)
}

// DeleteTransaction removes a single transaction. Back-references from
// generated transactions to a deleted template are lookup-only and are
// left in place.
func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete transaction %d: %w", id, storageErr(err))
	}
	return nil
}

// GetTransaction retrieves a transaction by local id.
func (s *Store) GetTransaction(ctx context.Context, id int64) (*schema.Transaction, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	return t, err
}

// ListTransactions returns every transaction ordered by date.
func (s *Store) ListTransactions(ctx context.Context) ([]*schema.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY date ASC, id ASC`)
}

// TransactionsByDateRange returns transactions with from <= date <= to,
// ordered by date, served from the date index.
func (s *Store) TransactionsByDateRange(ctx context.Context, from, to civil.Date) ([]*schema.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE date >= ? AND date <= ? ORDER BY date ASC, id ASC`,
		formatDate(from), formatDate(to))
}

// TransactionsByRecurSource returns the transactions generated from one
// recurring template.
func (s *Store) TransactionsByRecurSource(ctx context.Context, templateID int64) ([]*schema.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE recur_source_id = ? ORDER BY date ASC, id ASC`, templateID)
}

// TransactionsBySubscription returns the transactions generated from one
// subscription.
func (s *Store) TransactionsBySubscription(ctx context.Context, subscriptionID int64) ([]*schema.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE subscription_id = ? ORDER BY date ASC, id ASC`, subscriptionID)
}

// RecurringTemplates returns all transactions flagged as recurring
// templates.
func (s *Store) RecurringTemplates(ctx context.Context) ([]*schema.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE is_recurring = 1 ORDER BY date ASC, id ASC`)
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...interface{}) ([]*schema.Transaction, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", storageErr(err))
	}
	defer rows.Close()

	var out []*schema.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", storageErr(err))
	}
	return out, nil
}

func scanTransaction(r rowScanner) (*schema.Transaction, error) {
	var t schema.Transaction
	var typ, amount, date, createdAt, updatedAt string
	var pattern sql.NullString
	var categoryID, memberID, paymentMethodID, linkedAssetItemID, recurSourceID, subscriptionID sql.NullInt64

	err := r.Scan(&t.ID, &t.SyncID, &typ, &amount, &date, &t.Memo,
		&categoryID, &memberID, &paymentMethodID, &linkedAssetItemID,
		&t.PaymentNote, &t.IsRecurring, &pattern, &recurSourceID, &subscriptionID,
		&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", storageErr(err))
	}

	t.Type = schema.TransactionType(typ)
	if t.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	if t.Date, err = parseDate(date); err != nil {
		return nil, err
	}
	t.CategoryID = nullToID(categoryID)
	t.MemberID = nullToID(memberID)
	t.PaymentMethodID = nullToID(paymentMethodID)
	t.LinkedAssetItemID = nullToID(linkedAssetItemID)
	t.RecurSourceID = nullToID(recurSourceID)
	t.SubscriptionID = nullToID(subscriptionID)
	if pattern.Valid && pattern.String != "" {
		var p schema.RecurPattern
		if err := json.Unmarshal([]byte(pattern.String), &p); err != nil {
			return nil, fmt.Errorf("failed to parse recur pattern: %w", err)
		}
		t.RecurPattern = &p
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

func marshalPattern(p *schema.RecurPattern) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal recur pattern: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
