package ws

import (
	"context"

	"github.com/kiwari-pos/terminal/internal/store"
)

// Relay forwards whole-collection snapshots from the document store to the
// hub, one goroutine per collection, until ctx is cancelled. The UI gets
// the same thing the engine gets: full collection state, never diffs.
func Relay(ctx context.Context, st store.DocumentStore, hub *Hub, collections ...string) {
	for _, collection := range collections {
		go func(collection string) {
			snaps, cancel := st.Watch(collection)
			defer cancel()
			for {
				select {
				case <-ctx.Done():
					return
				case snap, ok := <-snaps:
					if !ok {
						return
					}
					hub.BroadcastJSON(collection, collection+".snapshot", snap.Docs) //nolint:errcheck
				}
			}
		}(collection)
	}
}
