package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/orneryd/yggdrasil/internal/physics"
	"github.com/orneryd/yggdrasil/internal/yerrors"
)

// DecodeMetadataStore parses the JSON metadata file format into a
// MetadataStore. The default decode function passed to WaitAndBuild by the
// CLI.
func DecodeMetadataStore(data []byte) (MetadataStore, error) {
	var store MetadataStore
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, fmt.Errorf("graph: decoding metadata store: %w", err)
	}
	return store, nil
}

// goldenRatio is phi, used by the Fibonacci-sphere initial layout.
const goldenRatio = 1.6180339887498949

// sphereRadius is the radius of the Fibonacci sphere initial distribution.
const sphereRadius = 3.0

// rebuildInFlight is the process-wide single-flight guard for graph
// rebuilds, generalized from the teacher's atomic.Value executor-mode
// global into a plain atomic.Bool compare-and-swap.
var rebuildInFlight atomic.Bool

// pairKey is the unordered-pair key used for edge-weight aggregation.
type pairKey struct{ a, b string }

func makePairKey(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// Build is the single canonical MetadataStore -> Data builder. It is a
// pure, deterministic function of store and seed: the same inputs always
// produce the same nodes, edges, and initial positions. Every caller in
// this repo (the CLI build-graph subcommand and the layout service's
// rebuild path) goes through this one function.
func Build(store MetadataStore, seed int64) (*Data, error) {
	if !rebuildInFlight.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("graph: rebuild already in progress: %w", yerrors.ErrBusy)
	}
	defer rebuildInFlight.Store(false)
	return build(store, seed)
}

func build(store MetadataStore, seed int64) (*Data, error) {
	// Step 1+2: one Node per metadata id, reusing any stored node_id.
	metadataIDs := make([]string, 0, len(store))
	for fileName := range store {
		metadataIDs = append(metadataIDs, strings.TrimSuffix(fileName, ".md"))
	}
	// Stable ordering independent of Go's randomized map iteration, so the
	// function is deterministic for a given input.
	sort.Strings(metadataIDs)

	nodes := make([]Node, 0, len(metadataIDs))
	idToMetadata := make(map[string]string, len(metadataIDs))
	metadataIDToNodeID := make(map[string]string, len(metadataIDs))
	nextNumericID := 0

	for _, metadataID := range metadataIDs {
		fileName := metadataID + ".md"
		entry := store[fileName]

		nodeID := entry.NodeID
		if nodeID == "" {
			nodeID = fmt.Sprintf("%d", nextNumericID)
			nextNumericID++
		}

		mass := physics.MassFromFileSize(entry.FileSize)
		node := Node{
			ID:         nodeID,
			MetadataID: metadataID,
			Label:      metadataID,
			Size:       entry.NodeSize,
			Metadata: map[string]string{
				"fileName":       fileName,
				"name":           metadataID,
				"metadataId":     metadataID,
				"fileSize":       fmt.Sprintf("%d", entry.FileSize),
				"nodeSize":       fmt.Sprintf("%g", entry.NodeSize),
				"hyperlinkCount": fmt.Sprintf("%d", entry.HyperlinkCount),
				"sha1":           entry.SHA1,
				"lastModified":   entry.LastModified.Format(time.RFC3339),
			},
			Record: physics.BinaryNodeRecord{Mass: mass, Flags: physics.FlagActive},
		}
		nodes = append(nodes, node)
		idToMetadata[nodeID] = metadataID
		metadataIDToNodeID[metadataID] = nodeID
	}

	// Step 3+4: aggregate edge weights keyed by the unordered pair.
	weights := make(map[pairKey]float32)
	order := make([]pairKey, 0)
	for _, metadataID := range metadataIDs {
		fileName := metadataID + ".md"
		entry := store[fileName]
		sourceID, ok := metadataIDToNodeID[metadataID]
		if !ok {
			continue
		}
		for targetFile, count := range entry.TopicCounts {
			targetMetadataID := strings.TrimSuffix(targetFile, ".md")
			if targetMetadataID == metadataID {
				continue // self-reference forbidden
			}
			targetID, ok := metadataIDToNodeID[targetMetadataID]
			if !ok {
				continue // missing endpoint
			}
			key := makePairKey(sourceID, targetID)
			if _, exists := weights[key]; !exists {
				order = append(order, key)
			}
			weights[key] += float32(count)
		}
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].a != order[j].a {
			return order[i].a < order[j].a
		}
		return order[i].b < order[j].b
	})

	edges := make([]Edge, 0, len(order))
	for _, key := range order {
		edges = append(edges, Edge{Source: key.a, Target: key.b, Weight: weights[key]})
	}

	// Step 5: Fibonacci-sphere initial positions with deterministic jitter.
	rng := rand.New(rand.NewSource(seed))
	n := len(nodes)
	for i := range nodes {
		theta := 2 * math.Pi * float64(i) / goldenRatio
		phi := math.Acos(1 - 2*(float64(i)+0.5)/float64(n))
		jitter := 1.0 + (rng.Float64()*2-1)*0.10
		r := sphereRadius * jitter
		nodes[i].Record.Position = physics.Vec3{
			X: float32(r * math.Sin(phi) * math.Cos(theta)),
			Y: float32(r * math.Sin(phi) * math.Sin(theta)),
			Z: float32(r * math.Cos(phi)),
		}
	}

	return NewData(nodes, edges, store, idToMetadata), nil
}

// Overridable in tests to avoid a real 5s wait.
var (
	metadataWaitCeiling  = 5 * time.Second
	metadataPollInterval = 100 * time.Millisecond
)

// WaitAndBuild polls path for a metadata file every 100ms, up to a 5s
// ceiling, then decodes and builds it. Grounded on the original service's
// wait_for_metadata_file behavior.
func WaitAndBuild(ctx context.Context, path string, decode func([]byte) (MetadataStore, error), seed int64) (*Data, error) {
	deadline := time.Now().Add(metadataWaitCeiling)
	ticker := time.NewTicker(metadataPollInterval)
	defer ticker.Stop()

	for {
		if data, err := os.ReadFile(path); err == nil {
			store, err := decode(data)
			if err != nil {
				return nil, fmt.Errorf("graph: decoding metadata: %w", err)
			}
			return Build(store, seed)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("graph: metadata file %q did not appear: %w", path, yerrors.ErrTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
