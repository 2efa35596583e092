package inspector

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/selune/selune/internal/config"
	"github.com/selune/selune/internal/loader"
)

func TestBroadcastToClient(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Inspector.Addr = "127.0.0.1:0"

	ins := New(cfg)
	if err := ins.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer ins.Stop()

	url := "ws://" + ins.Addr() + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	// Give the server a moment to register the connection.
	deadline := time.Now().Add(2 * time.Second)
	for {
		ins.mu.Lock()
		connected := len(ins.connections) > 0
		ins.mu.Unlock()
		if connected {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	sent := loader.Event{
		Type:   loader.EventModuleLoaded,
		Name:   "RegularModule",
		Path:   "/mods/RegularModule.lua",
		Loader: "loader-1",
	}
	ins.Broadcast(sent)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	var got loader.Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Invalid JSON frame: %v", err)
	}
	if got != sent {
		t.Errorf("Expected %+v, got %+v", sent, got)
	}
}

func TestBroadcastWithoutClients(t *testing.T) {
	cfg := config.DefaultConfig()
	ins := New(cfg)

	// Must not panic or block with nobody connected.
	ins.Broadcast(loader.Event{Type: loader.EventRequireFailed, Name: "x"})
}
