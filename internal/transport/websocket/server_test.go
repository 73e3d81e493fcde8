package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, "alice")
	}))
	defer server.Close()

	wsURL := "ws" + server.URL[4:]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	time.Sleep(100 * time.Millisecond)

	hub.mu.RLock()
	connections, exists := hub.connections["alice"]
	hub.mu.RUnlock()

	if !exists {
		t.Fatal("connection should be registered")
	}
	if len(connections) != 1 {
		t.Fatalf("expected 1 connection, got %d", len(connections))
	}

	conn.Close()
	time.Sleep(100 * time.Millisecond)

	hub.mu.RLock()
	_, exists = hub.connections["alice"]
	hub.mu.RUnlock()

	if exists {
		t.Fatal("connection should be unregistered")
	}
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, "alice")
	}))
	defer server.Close()

	wsURL := "ws" + server.URL[4:]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	time.Sleep(100 * time.Millisecond)

	message := &Message{
		Type:    "payment_updated",
		Channel: "trip_payments#t1",
		Data:    map[string]any{"payment_id": "p1"},
	}
	hub.Broadcast("alice", message)

	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	var received Message
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("failed to read message: %v", err)
	}

	if received.Type != "payment_updated" {
		t.Errorf("expected type 'payment_updated', got %q", received.Type)
	}
	if received.Channel != "trip_payments#t1" {
		t.Errorf("expected channel 'trip_payments#t1', got %q", received.Channel)
	}
	if received.MemberID != "alice" {
		t.Errorf("expected member 'alice', got %q", received.MemberID)
	}
}

func TestHub_MultipleConnections(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, "alice")
	}))
	defer server.Close()

	var conns []*websocket.Conn
	for i := 0; i < 3; i++ {
		conn, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[4:], nil)
		if err != nil {
			t.Fatalf("failed to connect: %v", err)
		}
		conns = append(conns, conn)
		defer conn.Close()
	}

	time.Sleep(100 * time.Millisecond)

	hub.mu.RLock()
	connections, exists := hub.connections["alice"]
	hub.mu.RUnlock()

	if !exists {
		t.Fatal("connections should be registered")
	}
	if len(connections) != 3 {
		t.Fatalf("expected 3 connections, got %d", len(connections))
	}

	hub.Broadcast("alice", &Message{Type: "broadcast", Channel: "test"})

	var wg sync.WaitGroup
	for i, conn := range conns {
		wg.Add(1)
		go func(idx int, c *websocket.Conn) {
			defer wg.Done()
			c.SetReadDeadline(time.Now().Add(1 * time.Second))
			var received Message
			if err := c.ReadJSON(&received); err != nil {
				t.Errorf("connection %d failed to read message: %v", idx, err)
				return
			}
			if received.Type != "broadcast" {
				t.Errorf("connection %d: expected type 'broadcast', got %q", idx, received.Type)
			}
		}(i, conn)
	}

	wg.Wait()
}

func TestHub_DifferentMembers(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		memberID := r.URL.Query().Get("member_id")
		hub.HandleWebSocket(w, r, memberID)
	}))
	defer server.Close()

	conn1, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[4:]+"?member_id=alice", nil)
	if err != nil {
		t.Fatalf("failed to connect alice: %v", err)
	}
	defer conn1.Close()

	conn2, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[4:]+"?member_id=bob", nil)
	if err != nil {
		t.Fatalf("failed to connect bob: %v", err)
	}
	defer conn2.Close()

	time.Sleep(100 * time.Millisecond)

	hub.Broadcast("alice", &Message{Type: "private", Channel: "test"})

	conn1.SetReadDeadline(time.Now().Add(1 * time.Second))
	var received1 Message
	if err := conn1.ReadJSON(&received1); err != nil {
		t.Fatalf("alice failed to read message: %v", err)
	}
	if received1.Type != "private" {
		t.Errorf("alice: expected type 'private', got %q", received1.Type)
	}

	// bob must not receive alice's message
	conn2.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var received2 Message
	if err := conn2.ReadJSON(&received2); err == nil {
		t.Error("bob should not receive a message addressed to alice")
	}
}

func TestHub_BroadcastChannelFull(t *testing.T) {
	hub := NewHub()
	hub.broadcast = make(chan *Message, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	hub.broadcast <- &Message{Type: "fill"}
	hub.broadcast <- &Message{Type: "fill"}

	// a full channel drops the message instead of blocking
	hub.Broadcast("alice", &Message{Type: "dropped", Channel: "test"})

	select {
	case <-time.After(100 * time.Millisecond):
	case msg := <-hub.broadcast:
		if msg.Type == "dropped" {
			t.Error("message should be dropped when channel is full")
		}
	}
}

func TestHub_ShutdownClosesConnections(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, "alice")
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[4:], nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	cancel()
	time.Sleep(100 * time.Millisecond)

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection to be closed after hub shutdown")
	}

	conn.Close()
}
