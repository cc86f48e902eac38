package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mwaldrop/hearth/internal/schema"
)

// SetBudget upserts the budget for one (category, month) pair. A second
// write for the same key overwrites the amount in place and never
// surfaces a conflict.
func (s *Store) SetBudget(ctx context.Context, b *schema.Budget) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("invalid budget: %w", err)
	}
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO budgets (sync_id, category_id, month, amount, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(category_id, month) DO UPDATE SET
			amount = excluded.amount,
			updated_at = excluded.updated_at`,
		b.SyncID, b.CategoryID, b.Month, b.Amount.String(),
		formatTime(b.CreatedAt), formatTime(b.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert budget: %w", storageErr(err))
	}
	return nil
}

// BudgetsForMonth returns all budgets for one "YYYY-MM" month.
func (s *Store) BudgetsForMonth(ctx context.Context, month string) ([]*schema.Budget, error) {
	return s.queryBudgets(ctx,
		`SELECT id, sync_id, category_id, month, amount, created_at, updated_at
		 FROM budgets WHERE month = ? ORDER BY category_id ASC`, month)
}

// ListBudgets returns every budget ordered by month then category.
func (s *Store) ListBudgets(ctx context.Context) ([]*schema.Budget, error) {
	return s.queryBudgets(ctx,
		`SELECT id, sync_id, category_id, month, amount, created_at, updated_at
		 FROM budgets ORDER BY month ASC, category_id ASC`)
}

func (s *Store) queryBudgets(ctx context.Context, query string, args ...interface{}) ([]*schema.Budget, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", storageErr(err))
	}
	defer rows.Close()

	var out []*schema.Budget
	for rows.Next() {
		var b schema.Budget
		var amount, createdAt, updatedAt string
		if err := rows.Scan(&b.ID, &b.SyncID, &b.CategoryID, &b.Month, &amount, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", storageErr(err))
		}
		if b.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		b.CreatedAt = parseTime(createdAt)
		b.UpdatedAt = parseTime(updatedAt)
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budgets: %w", storageErr(err))
	}
	return out, nil
}

// DeleteBudget removes one budget row.
func (s *Store) DeleteBudget(ctx context.Context, id int64) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete budget %d: %w", id, storageErr(err))
	}
	return nil
}

// ----- financial goals -----

// AddFinancialGoal inserts a financial goal.
func (s *Store) AddFinancialGoal(ctx context.Context, g *schema.FinancialGoal) (int64, error) {
	if err := g.Validate(); err != nil {
		return 0, fmt.Errorf("invalid financial goal: %w", err)
	}
	now := time.Now()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now

	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO financial_goals (sync_id, name, target_amount, current_amount, deadline, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.SyncID, g.Name, g.TargetAmount.String(), g.CurrentAmount.String(), g.Deadline,
		formatTime(g.CreatedAt), formatTime(g.UpdatedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert financial goal: %w", storageErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read financial goal id: %w", storageErr(err))
	}
	g.ID = id
	return id, nil
}

// FinancialGoalPatch is a partial update for a financial goal. Amounts are
// decimal strings.
type FinancialGoalPatch struct {
	Name          *string
	TargetAmount  *string
	CurrentAmount *string
	Deadline      *string
}

// UpdateFinancialGoal merges the patch into the goal row.
func (s *Store) UpdateFinancialGoal(ctx context.Context, id int64, p FinancialGoalPatch) error {
	var sets []string
	var args []interface{}
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.TargetAmount != nil {
		if _, err := parseAmount(*p.TargetAmount); err != nil {
			return err
		}
		sets = append(sets, "target_amount = ?")
		args = append(args, *p.TargetAmount)
	}
	if p.CurrentAmount != nil {
		if _, err := parseAmount(*p.CurrentAmount); err != nil {
			return err
		}
		sets = append(sets, "current_amount = ?")
		args = append(args, *p.CurrentAmount)
	}
	if p.Deadline != nil {
		sets = append(sets, "deadline = ?")
		args = append(args, *p.Deadline)
	}
	return s.updateRow(ctx, "financial_goals", id, sets, args)
}

// DeleteFinancialGoal removes a goal. Goals reference nothing and nothing
// references them, so no cascade runs.
func (s *Store) DeleteFinancialGoal(ctx context.Context, id int64) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM financial_goals WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete financial goal %d: %w", id, storageErr(err))
	}
	return nil
}

// ListFinancialGoals returns every goal ordered by name.
func (s *Store) ListFinancialGoals(ctx context.Context) ([]*schema.FinancialGoal, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, sync_id, name, target_amount, current_amount, deadline, created_at, updated_at
		 FROM financial_goals ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list financial goals: %w", storageErr(err))
	}
	defer rows.Close()

	var out []*schema.FinancialGoal
	for rows.Next() {
		var g schema.FinancialGoal
		var target, current, createdAt, updatedAt string
		if err := rows.Scan(&g.ID, &g.SyncID, &g.Name, &target, &current, &g.Deadline, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan financial goal: %w", storageErr(err))
		}
		if g.TargetAmount, err = parseAmount(target); err != nil {
			return nil, err
		}
		if g.CurrentAmount, err = parseAmount(current); err != nil {
			return nil, err
		}
		g.CreatedAt = parseTime(createdAt)
		g.UpdatedAt = parseTime(updatedAt)
		out = append(out, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating financial goals: %w", storageErr(err))
	}
	return out, nil
}
