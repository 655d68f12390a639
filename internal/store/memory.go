package store

import (
	"context"
	"encoding/json"
	"sync"
)

// watchBuffer bounds each watcher channel. When a slow watcher falls behind,
// the oldest queued snapshot is dropped: only the freshest collection state
// matters to a terminal.
const watchBuffer = 16

// Memory is an in-process DocumentStore. It backs unit tests and
// single-terminal deployments; semantics match the remote store, including
// whole-collection snapshot delivery on every write.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]json.RawMessage
	watchers    map[string]map[int]chan Snapshot
	nextWatcher int
}

// NewMemory creates an empty in-memory document store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]json.RawMessage),
		watchers:    make(map[string]map[int]chan Snapshot),
	}
}

// Put upserts a whole document and notifies watchers with a fresh snapshot.
func (m *Memory) Put(ctx context.Context, collection, id string, doc any) error {
	raw, err := marshalClean(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	col := m.collections[collection]
	if col == nil {
		col = make(map[string]json.RawMessage)
		m.collections[collection] = col
	}
	col[id] = raw
	snap := m.snapshotLocked(collection)
	m.mu.Unlock()

	m.notify(collection, snap)
	return nil
}

// Get decodes the document under id into out, or returns ErrNotFound.
func (m *Memory) Get(ctx context.Context, collection, id string, out any) error {
	m.mu.RLock()
	raw, ok := m.collections[collection][id]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, out)
}

// Delete removes a document. Deleting a missing document is a no-op.
func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	col, ok := m.collections[collection]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	if _, exists := col[id]; !exists {
		m.mu.Unlock()
		return nil
	}
	delete(col, id)
	snap := m.snapshotLocked(collection)
	m.mu.Unlock()

	m.notify(collection, snap)
	return nil
}

// ListAll returns a copy of the whole collection.
func (m *Memory) ListAll(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked(collection).Docs, nil
}

// Watch subscribes to whole-collection snapshots. The returned cancel
// function must be called when the subscriber goes away.
func (m *Memory) Watch(collection string) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, watchBuffer)

	m.mu.Lock()
	if m.watchers[collection] == nil {
		m.watchers[collection] = make(map[int]chan Snapshot)
	}
	id := m.nextWatcher
	m.nextWatcher++
	m.watchers[collection][id] = ch
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if _, ok := m.watchers[collection][id]; ok {
			delete(m.watchers[collection], id)
			close(ch)
		}
		m.mu.Unlock()
	}
	return ch, cancel
}

func (m *Memory) snapshotLocked(collection string) Snapshot {
	docs := make(map[string]json.RawMessage, len(m.collections[collection]))
	for id, raw := range m.collections[collection] {
		docs[id] = raw
	}
	return Snapshot{Collection: collection, Docs: docs}
}

func (m *Memory) notify(collection string, snap Snapshot) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.watchers[collection] {
		select {
		case ch <- snap:
		default:
			// Full buffer: drop the oldest snapshot, keep the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
