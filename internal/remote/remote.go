// Package remote defines the client surface of the per-user cloud document
// store the sync engine replicates against.
//
// The remote store holds one document per entity instance at
// users/{uid}/{table}/{docID}, where docID is the entity's sync id and the
// document fields mirror the entity shape minus the local id. Writes are
// merge-writes: fields present in the request overwrite the remote copy,
// absent fields are left untouched.
package remote

import "context"

// Tables is the replicated collection set, in dependency order: parents
// before the tables that reference them.
var Tables = []string{
	"members",
	"assetCategories",
	"assetItems",
	"dailyValues",
	"transactionCategories",
	"transactions",
}

// Document is one remote document's fields.
type Document map[string]interface{}

// ChangeKind classifies a remote change notification.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// ChangeEvent is a single remote change observed on a watched table.
type ChangeEvent struct {
	Table string     `json:"table"`
	DocID string     `json:"docId"`
	Kind  ChangeKind `json:"kind"`
}

// Client is the narrow interface the sync engine needs from the remote
// store. Implementations do not retry and carry no timeouts of their own;
// a stalled call blocks until the remote answers or ctx is cancelled by
// the surrounding application.
type Client interface {
	// ListCollection reads an entire collection, keyed by document id.
	// An absent collection is returned as an empty map, not an error.
	ListCollection(ctx context.Context, table string) (map[string]Document, error)

	// MergeSet writes one document with merge semantics.
	MergeSet(ctx context.Context, table, docID string, doc Document) error

	// Delete removes one document. Deleting an absent document is a no-op.
	Delete(ctx context.Context, table, docID string) error

	// Watch streams change notifications for one table until ctx is
	// cancelled. The returned channel is closed when the stream ends.
	Watch(ctx context.Context, table string) (<-chan ChangeEvent, error)
}
