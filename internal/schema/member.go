package schema

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewSyncID returns a freshly generated sync id.
//
// Callers must assign a sync id before handing an entity to the record
// store; the store never generates one on its own.
func NewSyncID() string {
	return uuid.NewString()
}

// Member is a household participant. Members own AssetItems (deleting a
// member deletes its asset items) and are weakly referenced by Transactions
// (deleting a member nulls the reference, financial history is kept).
type Member struct {
	ID        int64     `json:"-"`
	SyncID    string    `json:"syncId"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	IsDefault bool      `json:"isDefault,omitempty"`
	SortOrder int       `json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks that the member is storable.
func (m *Member) Validate() error {
	if m.SyncID == "" {
		return fmt.Errorf("syncId is required")
	}
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}
