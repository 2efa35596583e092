// Package inspector exposes a debug websocket endpoint that streams loader
// events (module loads, mock substitutions, failed requires) as JSON frames.
package inspector

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/selune/selune/internal/config"
	"github.com/selune/selune/internal/loader"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // debug endpoint, local use
	},
}

// Inspector broadcasts loader events to connected websocket clients.
type Inspector struct {
	config      *config.Config
	server      *http.Server
	listener    net.Listener
	connections map[*websocket.Conn]bool
	mu          sync.Mutex
}

// New creates an inspector listening on the configured address.
func New(cfg *config.Config) *Inspector {
	ins := &Inspector{
		config:      cfg,
		connections: make(map[*websocket.Conn]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/events", ins.handleEvents)
	ins.server = &http.Server{Addr: cfg.Inspector.Addr, Handler: mux}

	return ins
}

// Start binds the configured address and begins serving in the background.
func (ins *Inspector) Start() error {
	listener, err := net.Listen("tcp", ins.config.Inspector.Addr)
	if err != nil {
		return err
	}
	ins.listener = listener

	go func() {
		ins.config.Log(1, "inspector: listening on %s", listener.Addr())
		if err := ins.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			ins.config.Log(1, "inspector: server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound listen address. Valid after Start.
func (ins *Inspector) Addr() string {
	if ins.listener == nil {
		return ins.config.Inspector.Addr
	}
	return ins.listener.Addr().String()
}

// Stop shuts the server down and closes all connections.
func (ins *Inspector) Stop() error {
	ins.mu.Lock()
	for conn := range ins.connections {
		conn.Close()
	}
	ins.connections = make(map[*websocket.Conn]bool)
	ins.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return ins.server.Shutdown(ctx)
}

// Sink returns an event callback suitable for Loader.SetEventSink.
func (ins *Inspector) Sink() func(loader.Event) {
	return ins.Broadcast
}

// Broadcast sends an event to every connected client. Clients that fail to
// receive are dropped.
func (ins *Inspector) Broadcast(ev loader.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		ins.config.Log(1, "inspector: cannot marshal event: %v", err)
		return
	}

	ins.mu.Lock()
	defer ins.mu.Unlock()
	for conn := range ins.connections {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			ins.config.Log(2, "inspector: dropping client: %v", err)
			conn.Close()
			delete(ins.connections, conn)
		}
	}
}

// handleEvents upgrades a connection and registers it for broadcasts.
func (ins *Inspector) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ins.config.Log(1, "inspector: upgrade failed: %v", err)
		return
	}

	ins.mu.Lock()
	ins.connections[conn] = true
	ins.mu.Unlock()
	ins.config.Log(2, "inspector: client connected from %s", r.RemoteAddr)

	// Drain reads so pings and close frames are processed; unregister on
	// disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		ins.mu.Lock()
		delete(ins.connections, conn)
		ins.mu.Unlock()
		conn.Close()
	}()
}
