package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// notifyChannel is the LISTEN/NOTIFY channel shared by all terminals.
// Payload is the collection name; listeners re-read the whole collection,
// so a lost or coalesced notification only delays, never corrupts.
const notifyChannel = "kiwari_documents"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
    collection  TEXT        NOT NULL,
    id          TEXT        NOT NULL,
    doc         JSONB       NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (collection, id)
)`

// Postgres is the shared remote DocumentStore, one jsonb row per document.
// Change notification rides LISTEN/NOTIFY: every write NOTIFYs the
// collection name and every listening terminal re-lists that collection.
type Postgres struct {
	pool *pgxpool.Pool
	log  *logrus.Entry

	mu          sync.RWMutex
	watchers    map[string]map[int]chan Snapshot
	nextWatcher int
}

// NewPostgres creates the documents table if needed and returns the store.
// Call Listen in a goroutine to receive remote change snapshots.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, log *logrus.Logger) (*Postgres, error) {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &Postgres{
		pool:     pool,
		log:      log.WithField("component", "store"),
		watchers: make(map[string]map[int]chan Snapshot),
	}, nil
}

// Put upserts the whole document and notifies every terminal.
func (p *Postgres) Put(ctx context.Context, collection, id string, doc any) error {
	raw, err := marshalClean(doc)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, doc, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, id)
		DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		collection, id, raw)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return p.notifyRemote(ctx, collection)
}

// Get decodes one document into out, or returns ErrNotFound.
func (p *Postgres) Get(ctx context.Context, collection, id string, out any) error {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return json.Unmarshal(raw, out)
}

// Delete removes a document and notifies. Missing documents are a no-op.
func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	return p.notifyRemote(ctx, collection)
}

// ListAll returns every document in the collection.
func (p *Postgres) ListAll(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, doc FROM documents WHERE collection = $1`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make(map[string]json.RawMessage)
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		docs[id] = json.RawMessage(raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return docs, nil
}

// Watch subscribes to whole-collection snapshots produced by Listen.
func (p *Postgres) Watch(collection string) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, watchBuffer)

	p.mu.Lock()
	if p.watchers[collection] == nil {
		p.watchers[collection] = make(map[int]chan Snapshot)
	}
	id := p.nextWatcher
	p.nextWatcher++
	p.watchers[collection][id] = ch
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		if _, ok := p.watchers[collection][id]; ok {
			delete(p.watchers[collection], id)
			close(ch)
		}
		p.mu.Unlock()
	}
	return ch, cancel
}

// Listen blocks on a dedicated connection waiting for change notifications
// and fans fresh snapshots out to watchers. Run as a goroutine; returns when
// ctx is cancelled.
func (p *Postgres) Listen(ctx context.Context) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("listen %s: %w", notifyChannel, err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		collection := n.Payload
		docs, err := p.ListAll(ctx, collection)
		if err != nil {
			p.log.WithError(err).WithField("collection", collection).
				Error("re-list after change notification failed")
			continue
		}
		p.fanOut(Snapshot{Collection: collection, Docs: docs})
	}
}

func (p *Postgres) notifyRemote(ctx context.Context, collection string) error {
	if _, err := p.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, collection); err != nil {
		return fmt.Errorf("notify %s: %w", collection, err)
	}
	return nil
}

func (p *Postgres) fanOut(snap Snapshot) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, ch := range p.watchers[snap.Collection] {
		select {
		case ch <- snap:
		default:
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
