package realtime

import (
	"log"
	"sync"

	"github.com/orneryd/yggdrasil/internal/graph"
	"github.com/orneryd/yggdrasil/internal/physics"
	"github.com/orneryd/yggdrasil/internal/telemetry"
)

// outbound is a queued frame waiting to be written to a session's socket.
type outbound struct {
	binary bool
	data   []byte
}

// Hub maintains the registry of live sessions and fans out binary
// position frames and text broadcasts to all of them. Mirrors the
// teacher's client-registry-plus-broadcast shape, converted from a
// unidirectional SSE feed to a bidirectional websocket fan-out.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *log.Logger
}

// NewHub creates an empty session registry.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = telemetry.Discard()
	}
	return &Hub{sessions: make(map[string]*Session), logger: logger}
}

// Register adds a connected session to the registry.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.id] = s
}

// Unregister removes a session, e.g. on close.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}

// Count returns the number of registered sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// BroadcastBinary serializes nodes once and fans the same buffer out to
// every session. Sessions that are already closed fail the enqueue and
// are pruned lazily; a session whose bounded mailbox is full drops the
// frame (drop-newest) and stays registered.
func (h *Hub) BroadcastBinary(nodes []graph.Node) {
	records := make([]physics.BinaryNodeRecord, len(nodes))
	for i, n := range nodes {
		records[i] = n.Record
	}
	buf := physics.EncodeRecords(records)

	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	var dead []string
	for _, s := range targets {
		if !s.enqueue(outbound{binary: true, data: buf}) {
			dead = append(dead, s.id)
		}
	}
	h.pruneAll(dead)
}

// BroadcastText fans a single text frame out to every session.
func (h *Hub) BroadcastText(text string) {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	var dead []string
	for _, s := range targets {
		if !s.enqueue(outbound{binary: false, data: []byte(text)}) {
			dead = append(dead, s.id)
		}
	}
	h.pruneAll(dead)
}

func (h *Hub) pruneAll(ids []string) {
	if len(ids) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range ids {
		delete(h.sessions, id)
	}
}
