//go:build integration

package store_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiwari-pos/terminal/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestPostgresStore exercises the shared document store against a real
// PostgreSQL instance: CRUD round trips and change notifications between
// two stores sharing one database, the way two terminals do.
func TestPostgresStore(t *testing.T) {
	ctx := context.Background()

	connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	log := logrus.New()
	log.SetOutput(io.Discard)

	st, err := store.NewPostgres(ctx, pool, log)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	// --- Put / Get round trip ---
	type doc struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	if err := st.Put(ctx, store.CollectionOrders, "o-1", doc{Name: "Paneer", Count: 2}); err != nil {
		t.Fatalf("put: %v", err)
	}
	var got doc
	if err := st.Get(ctx, store.CollectionOrders, "o-1", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Paneer" || got.Count != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	// --- Upsert overwrites in place ---
	if err := st.Put(ctx, store.CollectionOrders, "o-1", doc{Name: "Paneer", Count: 3}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	docs, err := st.ListAll(ctx, store.CollectionOrders)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document after upsert, got %d", len(docs))
	}

	// --- Get on a missing id ---
	if err := st.Get(ctx, store.CollectionOrders, "missing", &got); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// --- Remote change notification across two stores ---
	// A second store on the same database plays the role of another
	// terminal: a write by the first must reach the second's watchers.
	remote, err := store.NewPostgres(ctx, pool, log)
	if err != nil {
		t.Fatalf("create remote store: %v", err)
	}
	listenCtx, stopListen := context.WithCancel(ctx)
	defer stopListen()
	go remote.Listen(listenCtx)

	snaps, cancel := remote.Watch(store.CollectionOrders)
	defer cancel()
	time.Sleep(200 * time.Millisecond) // let LISTEN attach

	// Notifications coalesce; keep reading snapshots until one matches.
	waitSnap := func(msg string, match func(store.Snapshot) bool) {
		t.Helper()
		deadline := time.After(5 * time.Second)
		for {
			select {
			case snap := <-snaps:
				if snap.Collection != store.CollectionOrders {
					t.Fatalf("snapshot for wrong collection: %s", snap.Collection)
				}
				if match(snap) {
					return
				}
			case <-deadline:
				t.Fatal(msg)
			}
		}
	}

	if err := st.Put(ctx, store.CollectionOrders, "o-2", doc{Name: "Dosa", Count: 1}); err != nil {
		t.Fatalf("put o-2: %v", err)
	}
	waitSnap("no snapshot delivered after remote write", func(s store.Snapshot) bool {
		_, ok := s.Docs["o-2"]
		return ok
	})

	// --- Delete propagates too ---
	if err := st.Delete(ctx, store.CollectionOrders, "o-2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	waitSnap("no snapshot delivered after delete", func(s store.Snapshot) bool {
		_, ok := s.Docs["o-2"]
		return !ok
	})

	// Deleting a missing document is a quiet no-op.
	if err := st.Delete(ctx, store.CollectionOrders, "missing"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func setupPostgresContainer(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("terminal_test"),
		tcpostgres.WithUsername("terminal"),
		tcpostgres.WithPassword("terminal"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}
	return connStr, cleanup
}
