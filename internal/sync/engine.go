package sync

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/mwaldrop/hearth/internal/remote"
	"github.com/mwaldrop/hearth/internal/store"
)

// Status is the sync engine's externally visible state. Transitions are
// idle -> syncing -> {synced | error}; a finished state returns to
// syncing only through a new operation. There is no automatic retry.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSynced  Status = "synced"
	StatusError   Status = "error"
)

// Engine replicates the record store against one user's remote
// collections. Construct with New and share a single instance; upload and
// download are one-shot operations also exposed to manual user triggers.
type Engine struct {
	store  *store.Store
	client remote.Client
	logger *log.Logger

	mu     sync.Mutex
	status Status

	watchCancel context.CancelFunc
	watchWG     sync.WaitGroup
}

// New creates a sync engine. The store must already be migrated. If
// logger is nil, a default logger writing to stderr is used.
func New(st *store.Store, client remote.Client, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Engine{
		store:  st,
		client: client,
		logger: logger,
		status: StatusIdle,
	}
}

// Status returns the engine's current status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Engine) setStatus(s Status) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
}

// Upload pushes every local row in the replicated table set to the remote
// store. Rows missing a sync id are assigned one first. Each document is
// merge-written; the remote copy of a record is fully overwritten field
// by field with the local values.
func (e *Engine) Upload(ctx context.Context) error {
	e.setStatus(StatusSyncing)

	if err := e.upload(ctx); err != nil {
		e.setStatus(StatusError)
		e.logger.Printf("Upload failed: %v", err)
		return err
	}

	e.setStatus(StatusSynced)
	return nil
}

func (e *Engine) upload(ctx context.Context) error {
	assigned, err := e.store.AssignMissingSyncIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to assign sync ids: %w", err)
	}
	if assigned > 0 {
		e.logger.Printf("Assigned %d missing sync ids", assigned)
	}

	snap, err := e.store.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to snapshot local tables: %w", err)
	}

	colls, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	written := 0
	for _, table := range remote.Tables {
		for docID, doc := range colls[table] {
			if err := e.client.MergeSet(ctx, table, docID, doc); err != nil {
				return fmt.Errorf("failed to upload %s/%s: %w", table, docID, err)
			}
			written++
		}
	}

	e.logger.Printf("Upload complete: %d documents across %d tables", written, len(remote.Tables))
	return nil
}

// Download reads every remote collection and replaces the local
// replicated tables with the cloud state. The clear and bulk insert run
// inside one store transaction, so a failed download leaves local data
// untouched. Local edits that were never uploaded are lost: cloud wins.
func (e *Engine) Download(ctx context.Context) error {
	e.setStatus(StatusSyncing)

	if err := e.download(ctx); err != nil {
		e.setStatus(StatusError)
		e.logger.Printf("Download failed: %v", err)
		return err
	}

	e.setStatus(StatusSynced)
	return nil
}

func (e *Engine) download(ctx context.Context) error {
	colls := make(map[string]map[string]remote.Document, len(remote.Tables))
	total := 0
	for _, table := range remote.Tables {
		coll, err := e.client.ListCollection(ctx, table)
		if err != nil {
			return fmt.Errorf("failed to download %s: %w", table, err)
		}
		colls[table] = coll
		total += len(coll)
	}

	snap, err := decodeSnapshot(colls)
	if err != nil {
		return fmt.Errorf("failed to decode remote snapshot: %w", err)
	}

	if err := e.store.Restore(ctx, snap); err != nil {
		return fmt.Errorf("failed to replace local tables: %w", err)
	}

	e.logger.Printf("Download complete: %d documents across %d tables", total, len(remote.Tables))
	return nil
}

// HandleSignIn runs the login reconciliation policy: an empty remote
// members collection means this account has never synced, so local state
// bootstraps the cloud (upload); otherwise the cloud is authoritative
// (download). A binary decision with no merge step. After reconciling,
// the realtime watch is attached.
func (e *Engine) HandleSignIn(ctx context.Context) error {
	members, err := e.client.ListCollection(ctx, "members")
	if err != nil {
		e.setStatus(StatusError)
		return fmt.Errorf("failed to probe remote members: %w", err)
	}

	if len(members) == 0 {
		e.logger.Printf("Remote is empty, bootstrapping cloud from local data")
		if err := e.Upload(ctx); err != nil {
			return err
		}
	} else {
		e.logger.Printf("Remote has data, treating cloud as authoritative")
		if err := e.Download(ctx); err != nil {
			return err
		}
	}

	e.StartWatch(ctx)
	return nil
}

// HandleSignOut tears down the realtime watch.
func (e *Engine) HandleSignOut() {
	e.StopWatch()
}

// StartWatch attaches a change listener to every replicated table.
// Incoming events are logged, not applied: the watch is a hook point for
// a future incremental merge, kept observe-only so remote changes can
// never race the clear-then-insert of a download.
func (e *Engine) StartWatch(ctx context.Context) {
	e.mu.Lock()
	if e.watchCancel != nil {
		e.mu.Unlock()
		return
	}
	watchCtx, cancel := context.WithCancel(ctx)
	e.watchCancel = cancel
	e.mu.Unlock()

	for _, table := range remote.Tables {
		events, err := e.client.Watch(watchCtx, table)
		if err != nil {
			e.logger.Printf("WARNING: failed to watch %s: %v", table, err)
			continue
		}
		e.watchWG.Add(1)
		go func(table string, events <-chan remote.ChangeEvent) {
			defer e.watchWG.Done()
			for ev := range events {
				e.logger.Printf("Remote change: %s/%s %s", ev.Table, ev.DocID, ev.Kind)
			}
		}(table, events)
	}
}

// StopWatch detaches all change listeners and waits for them to drain.
func (e *Engine) StopWatch() {
	e.mu.Lock()
	cancel := e.watchCancel
	e.watchCancel = nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	e.watchWG.Wait()
}
