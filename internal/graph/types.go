// Package graph holds the authoritative graph state (C2) and the pure
// builder that turns ingested metadata into that state (C9).
package graph

import (
	"sync"
	"time"

	"github.com/orneryd/yggdrasil/internal/physics"
)

// MetadataEntry describes one ingested markdown file. Consumed only; the
// metadata-ingestion pipeline that produces these lives outside this
// module.
type MetadataEntry struct {
	FileName       string         `json:"file_name"`
	FileSize       int64          `json:"file_size"`
	NodeSize       float32        `json:"node_size"`
	HyperlinkCount int            `json:"hyperlink_count"`
	SHA1           string         `json:"sha1"`
	LastModified   time.Time      `json:"last_modified"`
	TopicCounts    map[string]int `json:"topic_counts"`
	NodeID         string         `json:"node_id,omitempty"`
}

// MetadataStore maps a filename (including ".md") to its entry.
type MetadataStore map[string]MetadataEntry

// Node is a graph vertex: one markdown file plus its live simulation
// state.
type Node struct {
	ID         string            `json:"id"`
	MetadataID string            `json:"metadataId"`
	Label      string            `json:"label"`
	Size       float32           `json:"size,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Record     physics.BinaryNodeRecord
}

// Edge connects two nodes by id with unordered semantics: at most one edge
// per unordered pair, no self-loops, weights accumulate.
type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float32 `json:"weight"`
}

// Data owns the authoritative node/edge sequences for one built graph.
// Node order fixes the index into the packed GPU buffer; only a rebuild
// may change it.
type Data struct {
	Nodes        []Node
	Edges        []Edge
	Metadata     MetadataStore
	IDToMetadata map[string]string
	indexByID    map[string]int
}

// NewData builds the id->index lookup used by IndexOf; callers that
// construct a Data directly (tests, the builder) must call this once
// after populating Nodes.
func NewData(nodes []Node, edges []Edge, metadata MetadataStore, idToMetadata map[string]string) *Data {
	d := &Data{Nodes: nodes, Edges: edges, Metadata: metadata, IDToMetadata: idToMetadata}
	d.reindex()
	return d
}

func (d *Data) reindex() {
	d.indexByID = make(map[string]int, len(d.Nodes))
	for i, n := range d.Nodes {
		d.indexByID[n.ID] = i
	}
}

// IndexOf returns the position of a node id in Nodes, or -1.
func (d *Data) IndexOf(id string) int {
	if d.indexByID == nil {
		d.reindex()
	}
	idx, ok := d.indexByID[id]
	if !ok {
		return -1
	}
	return idx
}

// Records returns the packed BinaryNodeRecord for every node, in node
// order - the exact layout the GPU buffer and the broadcast payload share.
func (d *Data) Records() []physics.BinaryNodeRecord {
	out := make([]physics.BinaryNodeRecord, len(d.Nodes))
	for i, n := range d.Nodes {
		out[i] = n.Record
	}
	return out
}

// SetRecords writes positions/velocities back into Nodes in order,
// preserving node identity.
func (d *Data) SetRecords(records []physics.BinaryNodeRecord) {
	for i := range records {
		if i >= len(d.Nodes) {
			break
		}
		d.Nodes[i].Record = records[i]
	}
}

// PositionCache holds a short-lived snapshot of node state. Age must be
// below 50ms when served; otherwise it is considered stale and must be
// refreshed.
type PositionCache struct {
	mu       sync.Mutex
	snapshot []Node
	takenAt  time.Time
}

// MaxAge is the freshness ceiling for a served cache read.
const MaxAge = 50 * time.Millisecond

// Get returns the cached snapshot if it is fresh enough, and whether it was
// usable.
func (c *PositionCache) Get() ([]Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil || time.Since(c.takenAt) >= MaxAge {
		return nil, false
	}
	return c.snapshot, true
}

// Store replaces the cached snapshot, stamping the current time.
func (c *PositionCache) Store(snapshot []Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = snapshot
	c.takenAt = time.Now()
}

// Invalidate drops the cached snapshot so the next Get reports a miss.
func (c *PositionCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = nil
}
