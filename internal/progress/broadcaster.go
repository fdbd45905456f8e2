// Package progress optionally exposes a running compose job's
// stats.ProcessorStats/AudioMixerStats snapshots over a websocket, for a
// dashboard to watch a long compose run in flight. Grounded on the
// teacher's internal/server/handlers websocket handlers (the
// package-level Upgrader with a permissive CheckOrigin, Upgrade then
// push-loop shape); there is no exact teacher analog for broadcasting
// periodic JSON snapshots, so the push loop itself is new.
package progress

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Source reports one processor's current state as a human-readable
// string, matching stats.Snapshot.Report()/AudioMixerSnapshot.Report().
type Source func() string

// Broadcaster serves a single /progress websocket endpoint that pushes
// every registered Source's latest report on a fixed tick, until the
// compose run finishes or the client disconnects.
type Broadcaster struct {
	addr string

	mu      sync.Mutex
	sources map[string]Source

	server *http.Server
	stop   chan struct{}
}

// NewBroadcaster creates a broadcaster bound to addr (e.g. "localhost:9191").
func NewBroadcaster(addr string) *Broadcaster {
	return &Broadcaster{addr: addr, sources: make(map[string]Source), stop: make(chan struct{})}
}

// Register adds a named progress source. Safe to call before or after Start.
func (b *Broadcaster) Register(name string, src Source) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources[name] = src
}

func (b *Broadcaster) snapshot() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.sources))
	for name, src := range b.sources {
		out[name] = src()
	}
	return out
}

func (b *Broadcaster) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			payload, err := json.Marshal(b.snapshot())
			if err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

// Start binds the listener and begins serving in the background. It
// returns once the listener is bound, so a caller can safely print the
// address it ended up on before continuing.
func (b *Broadcaster) Start() error {
	ln, err := net.Listen("tcp", b.addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/progress", b.handleWS)
	b.server = &http.Server{Handler: mux}

	go b.server.Serve(ln)
	return nil
}

// Close stops the server and disconnects every client.
func (b *Broadcaster) Close() error {
	close(b.stop)
	if b.server == nil {
		return nil
	}
	return b.server.Close()
}
