package ws

import (
	"encoding/json"
	"testing"
	"time"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, topics ...string) *Client {
	return &Client{
		hub:    hub,
		topics: topics,
		send:   make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, TopicOrders, TopicTables)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if !hub.rooms[TopicOrders][client] {
		t.Fatal("client not registered in orders room")
	}
	if !hub.rooms[TopicTables][client] {
		t.Fatal("client not registered in tables room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, TopicOrders)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	// Room should be cleaned up when empty
	if hub.rooms[TopicOrders] != nil {
		t.Fatal("orders room not cleaned up after last client unregistered")
	}
}

func TestBroadcastToSingleTopic(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	orderClient := mockClient(hub, TopicOrders)
	tableClient := mockClient(hub, TopicTables)

	hub.register <- orderClient
	hub.register <- tableClient
	time.Sleep(10 * time.Millisecond)

	testPayload := json.RawMessage(`{"order_id":"test-123"}`)
	hub.Broadcast(TopicOrders, Event{
		Type:    "orders.snapshot",
		Payload: testPayload,
	})

	// Orders subscriber receives the event
	select {
	case msg := <-orderClient.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != "orders.snapshot" {
			t.Errorf("expected type 'orders.snapshot', got '%s'", received.Type)
		}
		if string(received.Payload) != string(testPayload) {
			t.Errorf("expected payload '%s', got '%s'", testPayload, received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("orders subscriber did not receive message")
	}

	// Tables subscriber does NOT receive it
	select {
	case <-tableClient.send:
		t.Fatal("tables subscriber should not receive an orders event")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message received
	}
}

func TestBroadcastToMultipleClientsInSameTopic(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client1 := mockClient(hub, TopicKOTs)
	client2 := mockClient(hub, TopicKOTs)
	client3 := mockClient(hub, TopicKOTs)

	hub.register <- client1
	hub.register <- client2
	hub.register <- client3
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(TopicKOTs, Event{
		Type:    "kots.snapshot",
		Payload: json.RawMessage(`{"ticketNo":3}`),
	})

	clients := []*Client{client1, client2, client3}
	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != "kots.snapshot" {
				t.Errorf("client%d: expected type 'kots.snapshot', got '%s'", i+1, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestMultiTopicClientReceivesEach(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, TopicOrders, TopicErrors)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(TopicOrders, Event{Type: "orders.snapshot", Payload: json.RawMessage(`{}`)})
	hub.Broadcast(TopicErrors, Event{Type: "push.failed", Payload: json.RawMessage(`{"error":"connection refused"}`)})

	types := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			types[received.Type] = true
		case <-time.After(100 * time.Millisecond):
			t.Fatal("did not receive both events")
		}
	}
	if !types["orders.snapshot"] || !types["push.failed"] {
		t.Fatalf("expected one event per topic, got %v", types)
	}
}

func TestBroadcastJSON(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, TopicTables)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	if err := hub.BroadcastJSON(TopicTables, "table.created", map[string]int{"number": 5}); err != nil {
		t.Fatalf("broadcast json: %v", err)
	}

	select {
	case msg := <-client.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if received.Type != "table.created" {
			t.Errorf("expected type 'table.created', got '%s'", received.Type)
		}
		if string(received.Payload) != `{"number":5}` {
			t.Errorf("unexpected payload: %s", received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client did not receive message")
	}
}

func TestBroadcastToEmptyTopic(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, TopicTables)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	// Nobody subscribed to errors; nothing should reach the tables client.
	hub.Broadcast(TopicErrors, Event{
		Type:    "push.failed",
		Payload: json.RawMessage(`{"test":"data"}`),
	})

	select {
	case <-client.send:
		t.Fatal("client should not receive message for a different topic")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message
	}
}

func TestSlowClientDropped(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := &Client{
		hub:    hub,
		topics: []string{TopicOrders},
		send:   make(chan []byte), // unbuffered, nobody reading
	}
	hub.register <- slow
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(TopicOrders, Event{Type: "orders.snapshot", Payload: json.RawMessage(`{}`)})
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if hub.rooms[TopicOrders][slow] {
		t.Fatal("slow client should have been dropped")
	}
}
