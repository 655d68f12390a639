// Package store is the persistence adapter: a key-value document store with
// whole-document upserts and whole-collection change snapshots. There are no
// locks, no transactions and no server-computed diffs; consumers derive what
// changed by comparing snapshots themselves.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collection names shared by every terminal.
const (
	CollectionTables = "tables"
	CollectionOrders = "orders"
	CollectionKOTs   = "kots"
)

// ErrNotFound is returned by Get when no document exists under the id.
var ErrNotFound = errors.New("document not found")

// Snapshot is the full state of one collection at some point after a write.
// The store delivers snapshots, not diffs, on any remote change.
type Snapshot struct {
	Collection string
	Docs       map[string]json.RawMessage
}

// Decode unmarshals one document out of the snapshot into out.
func (s Snapshot) Decode(id string, out any) error {
	raw, ok := s.Docs[id]
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, out)
}

// DocumentStore is the narrow interface the engine consumes.
//
// Put overwrites the whole document, recursively dropping unset (null)
// fields first. Watch returns a channel of whole-collection snapshots plus a
// cancel function; the first snapshot arrives after the next write, not on
// subscription.
type DocumentStore interface {
	Put(ctx context.Context, collection, id string, doc any) error
	Get(ctx context.Context, collection, id string, out any) error
	Delete(ctx context.Context, collection, id string) error
	ListAll(ctx context.Context, collection string) (map[string]json.RawMessage, error)
	Watch(collection string) (<-chan Snapshot, func())
}

// marshalClean serializes doc and strips unset fields recursively, so a
// field cleared locally disappears from the remote document instead of
// lingering as null.
func marshalClean(doc any) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("reparse document: %w", err)
	}
	return json.Marshal(stripUnset(v))
}

func stripUnset(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if val == nil {
				delete(t, k)
				continue
			}
			t[k] = stripUnset(val)
		}
		return t
	case []any:
		for i := range t {
			t[i] = stripUnset(t[i])
		}
		return t
	}
	return v
}

// DecodeAll unmarshals every document of a listing into a slice of T.
func DecodeAll[T any](docs map[string]json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(docs))
	for id, raw := range docs {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", id, err)
		}
		out = append(out, v)
	}
	return out, nil
}
