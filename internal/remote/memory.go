package remote

import (
	"context"
	"sync"
)

// Memory is an in-memory Client for tests and offline use. It applies the
// same merge-write semantics the real document store does and fans change
// events out to watchers.
type Memory struct {
	mu       sync.Mutex
	tables   map[string]map[string]Document
	watchers map[string][]chan ChangeEvent
}

// NewMemory creates an empty in-memory document store.
func NewMemory() *Memory {
	return &Memory{
		tables:   make(map[string]map[string]Document),
		watchers: make(map[string][]chan ChangeEvent),
	}
}

// ListCollection implements Client.ListCollection.
func (m *Memory) ListCollection(_ context.Context, table string) (map[string]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Document, len(m.tables[table]))
	for id, doc := range m.tables[table] {
		copied := make(Document, len(doc))
		for k, v := range doc {
			copied[k] = v
		}
		out[id] = copied
	}
	return out, nil
}

// MergeSet implements Client.MergeSet: present fields overwrite, absent
// fields are untouched.
func (m *Memory) MergeSet(_ context.Context, table, docID string, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll := m.tables[table]
	if coll == nil {
		coll = make(map[string]Document)
		m.tables[table] = coll
	}

	kind := ChangeUpdated
	existing := coll[docID]
	if existing == nil {
		existing = make(Document, len(doc))
		coll[docID] = existing
		kind = ChangeCreated
	}
	for k, v := range doc {
		existing[k] = v
	}

	m.notifyLocked(table, ChangeEvent{Table: table, DocID: docID, Kind: kind})
	return nil
}

// Delete implements Client.Delete.
func (m *Memory) Delete(_ context.Context, table, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll := m.tables[table]
	if coll == nil {
		return nil
	}
	if _, ok := coll[docID]; !ok {
		return nil
	}
	delete(coll, docID)
	m.notifyLocked(table, ChangeEvent{Table: table, DocID: docID, Kind: ChangeDeleted})
	return nil
}

// Watch implements Client.Watch.
func (m *Memory) Watch(ctx context.Context, table string) (<-chan ChangeEvent, error) {
	ch := make(chan ChangeEvent, 16)

	m.mu.Lock()
	m.watchers[table] = append(m.watchers[table], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		ws := m.watchers[table]
		for i, w := range ws {
			if w == ch {
				m.watchers[table] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// notifyLocked fans an event out to watchers; slow watchers drop events
// rather than block writers.
func (m *Memory) notifyLocked(table string, ev ChangeEvent) {
	for _, ch := range m.watchers[table] {
		select {
		case ch <- ev:
		default:
		}
	}
}
