package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kiwari-pos/terminal/internal/store"
)

func TestRelay_ForwardsCollectionSnapshots(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, TopicOrders)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	st := store.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	Relay(ctx, st, hub, store.CollectionOrders)
	time.Sleep(10 * time.Millisecond)

	if err := st.Put(ctx, store.CollectionOrders, "o1", map[string]string{"id": "o1"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	select {
	case msg := <-client.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if received.Type != "orders.snapshot" {
			t.Errorf("expected type 'orders.snapshot', got '%s'", received.Type)
		}
		var docs map[string]json.RawMessage
		if err := json.Unmarshal(received.Payload, &docs); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if _, ok := docs["o1"]; !ok {
			t.Fatalf("snapshot payload missing document: %s", received.Payload)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("relay did not forward the snapshot")
	}
}
