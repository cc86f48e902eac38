package schema

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// AssetKind distinguishes assets from liabilities.
type AssetKind string

const (
	AssetKindAsset     AssetKind = "asset"
	AssetKindLiability AssetKind = "liability"
)

// IsValid reports whether the kind is one of the known values.
func (k AssetKind) IsValid() bool {
	return k == AssetKindAsset || k == AssetKindLiability
}

// AssetCategory classifies AssetItems. Deleting a category deletes its
// items and their daily values.
type AssetCategory struct {
	ID        int64     `json:"-"`
	SyncID    string    `json:"syncId"`
	Name      string    `json:"name"`
	Kind      AssetKind `json:"type"`
	Color     string    `json:"color,omitempty"`
	Icon      string    `json:"icon,omitempty"`
	SortOrder int       `json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks that the category is storable.
func (c *AssetCategory) Validate() error {
	if c.SyncID == "" {
		return fmt.Errorf("syncId is required")
	}
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !c.Kind.IsValid() {
		return fmt.Errorf("type must be %q or %q (got %q)", AssetKindAsset, AssetKindLiability, c.Kind)
	}
	return nil
}

// AssetItem is a single trackable asset or liability position.
//
// MemberID and CategoryID are non-owning foreign references. IsActive is a
// soft flag used by list filtering only; it plays no part in cascades.
type AssetItem struct {
	ID         int64     `json:"-"`
	SyncID     string    `json:"syncId"`
	Name       string    `json:"name"`
	MemberID   *int64    `json:"memberId,omitempty"`
	CategoryID *int64    `json:"categoryId,omitempty"`
	IsActive   bool      `json:"isActive"`
	SortOrder  int       `json:"sortOrder"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Validate checks that the item is storable.
func (a *AssetItem) Validate() error {
	if a.SyncID == "" {
		return fmt.Errorf("syncId is required")
	}
	if a.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// DailyValue holds the value of one AssetItem on one calendar date.
// At most one row may exist per (assetItemId, date); writes upsert on
// that key.
type DailyValue struct {
	ID          int64           `json:"-"`
	SyncID      string          `json:"syncId"`
	AssetItemID int64           `json:"assetItemId"`
	Date        civil.Date      `json:"date"`
	Value       decimal.Decimal `json:"value"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Validate checks that the daily value is storable.
func (v *DailyValue) Validate() error {
	if v.SyncID == "" {
		return fmt.Errorf("syncId is required")
	}
	if v.AssetItemID == 0 {
		return fmt.Errorf("assetItemId is required")
	}
	if !v.Date.IsValid() {
		return fmt.Errorf("date is invalid: %v", v.Date)
	}
	return nil
}
