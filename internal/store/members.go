package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mwaldrop/hearth/internal/schema"
)

// AddMember inserts a member and returns its local id. The sync id must
// already be set by the caller.
func (s *Store) AddMember(ctx context.Context, m *schema.Member) (int64, error) {
	if err := m.Validate(); err != nil {
		return 0, fmt.Errorf("invalid member: %w", err)
	}
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO members (sync_id, name, color, is_default, sort_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.SyncID, m.Name, m.Color, m.IsDefault, m.SortOrder,
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert member: %w", storageErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read member id: %w", storageErr(err))
	}
	m.ID = id
	return id, nil
}

// MemberPatch is a partial update for a member. Nil fields are left
// untouched.
type MemberPatch struct {
	Name      *string
	Color     *string
	IsDefault *bool
	SortOrder *int
}

// UpdateMember merges the patch into the member row and stamps updated_at.
// Returns ErrNotFound if the id does not exist.
func (s *Store) UpdateMember(ctx context.Context, id int64, p MemberPatch) error {
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
	if p.IsDefault != nil {
		sets = append(sets, "is_default = ?")
		args = append(args, *p.IsDefault)
	}
	if p.SortOrder != nil {
		sets = append(sets, "sort_order = ?")
		args = append(args, *p.SortOrder)
	}
	return s.updateRow(ctx, "members", id, sets, args)
}

// DeleteMember removes a member, deletes the member's asset items together
// with their daily values, and nulls the member reference on transactions.
// Financial history is never deleted through a member. The whole cascade
// runs in one transaction.
func (s *Store) DeleteMember(ctx context.Context, id int64) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM daily_values
		 WHERE asset_item_id IN (SELECT id FROM asset_items WHERE member_id = ?)`, id); err != nil {
		return fmt.Errorf("failed to delete daily values for member %d: %w", id, storageErr(err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM asset_items WHERE member_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete asset items for member %d: %w", id, storageErr(err))
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE transactions SET member_id = NULL, updated_at = ? WHERE member_id = ?`,
		formatTime(time.Now()), id); err != nil {
		return fmt.Errorf("failed to detach transactions from member %d: %w", id, storageErr(err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete member %d: %w", id, storageErr(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit member delete: %w", storageErr(err))
	}
	return nil
}

// GetMember retrieves a member by local id.
func (s *Store) GetMember(ctx context.Context, id int64) (*schema.Member, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, sync_id, name, color, is_default, sort_order, created_at, updated_at
		 FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	return m, err
}

// ListMembers returns all members ordered by sort order, then name.
func (s *Store) ListMembers(ctx context.Context) ([]*schema.Member, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, sync_id, name, color, is_default, sort_order, created_at, updated_at
		 FROM members ORDER BY sort_order ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", storageErr(err))
	}
	defer rows.Close()

	var out []*schema.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", storageErr(err))
	}
	return out, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMember(r rowScanner) (*schema.Member, error) {
	var m schema.Member
	var createdAt, updatedAt string
	err := r.Scan(&m.ID, &m.SyncID, &m.Name, &m.Color, &m.IsDefault, &m.SortOrder, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan member: %w", storageErr(err))
	}
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return &m, nil
}
