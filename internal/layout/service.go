// Package layout implements the layout service (C6): it owns GraphData,
// selects an executor each tick, runs the fixed-cadence tick loop, and
// maintains the short-TTL position cache.
package layout

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/orneryd/yggdrasil/internal/graph"
	"github.com/orneryd/yggdrasil/internal/physics"
	"github.com/orneryd/yggdrasil/internal/physics/cpuexec"
	"github.com/orneryd/yggdrasil/internal/physics/gpuexec"
	"github.com/orneryd/yggdrasil/internal/telemetry"
	"github.com/orneryd/yggdrasil/internal/yerrors"
)

// TickInterval is the fixed physics cadence, approximately 60Hz.
const TickInterval = 16 * time.Millisecond

// Service owns the authoritative GraphData, the executors, and the
// position cache. Safe for concurrent use.
type Service struct {
	logger *log.Logger

	mu     sync.RWMutex // guards data; the tick loop holds the writer
	data   *graph.Data
	cache  graph.PositionCache
	params physics.Params

	gpuMu  sync.Mutex // guards gpu executor state; one step at a time
	gpu    *gpuexec.Executor
	gpuOK  bool
	cpu    *cpuexec.Executor
	seed   int64
	paused bool

	onTick func([]graph.Node)
}

// New creates a layout service over an already-built graph. onTick, if
// non-nil, is invoked after every successful tick with a position
// snapshot - the hook the broadcast hub uses to fan out positions from
// the one canonical tick loop, rather than each session scheduling its
// own ticker.
func New(data *graph.Data, params physics.Params, logger *log.Logger, onTick func([]graph.Node)) *Service {
	if logger == nil {
		logger = telemetry.Discard()
	}
	return &Service{
		logger: logger,
		data:   data,
		params: params,
		cpu:    cpuexec.New(),
		onTick: onTick,
	}
}

// EnableGPU attempts to bring up the GPU executor; on failure it logs and
// the service continues operating CPU-only, exactly as spec.md's
// InitializationFailed propagation policy requires.
func (s *Service) EnableGPU(ctx context.Context, cfg gpuexec.Config) {
	s.gpuMu.Lock()
	defer s.gpuMu.Unlock()

	exec := gpuexec.New(cfg, s.logger)
	if err := exec.Init(ctx); err != nil {
		s.logger.Printf("gpu unavailable, using cpu executor: %v", err)
		s.gpu = nil
		s.gpuOK = false
		return
	}
	s.gpu = exec
	s.gpuOK = true
}

// Run starts the tick loop and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Service) tick() {
	if s.paused {
		return
	}

	stepped := s.step()
	s.cache.Invalidate()
	if !stepped || s.onTick == nil {
		return
	}
	s.onTick(s.GetNodePositions())
}

func (s *Service) step() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.data
	params := s.params
	if data == nil {
		return false
	}

	return s.stepOnce(data, params)
}

// stepOnce advances data by a single step with the selected executor.
// Callers must hold s.mu.
func (s *Service) stepOnce(data *graph.Data, params physics.Params) bool {
	if s.gpuUsable(params) {
		s.gpuMu.Lock()
		err := s.gpu.Step(data, params)
		s.gpuMu.Unlock()
		if err != nil {
			// StepFailed: log and skip; the tick loop tries again on its next
			// tick, while RunIterations stops at the first failed step.
			s.logger.Printf("gpu step failed, skipping step: %v", err)
			return false
		}
		return true
	}

	s.cpu.Step(data, params)
	return true
}

// RunIterations synchronously advances the simulation by n steps using
// params, installing params as the service's current parameters, and
// returns the resulting node snapshot. This is the synchronous
// request/reply path a "layout" session request uses, as distinct from
// the background tick loop's own fixed-cadence stepping.
func (s *Service) RunIterations(params physics.Params, n uint32) []graph.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.params = params
	data := s.data
	if data == nil {
		return nil
	}

	for i := uint32(0); i < n; i++ {
		if !s.stepOnce(data, params) {
			break
		}
	}
	if n > 0 {
		s.cache.Invalidate()
	}

	return append([]graph.Node(nil), data.Nodes...)
}

func (s *Service) gpuUsable(params physics.Params) bool {
	s.gpuMu.Lock()
	defer s.gpuMu.Unlock()
	return params.Mode.UsesGPU() && s.gpuOK && s.gpu != nil && s.gpu.Available()
}

// SetParams installs new simulation parameters, taking effect on the next
// tick. Acquires the same write lock the tick loop uses, so an
// in-flight step always completes against a single parameter set.
func (s *Service) SetParams(params physics.Params) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = params
}

// Params returns the current simulation parameters.
func (s *Service) Params() physics.Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// Pause stops tick processing without stopping the loop goroutine.
func (s *Service) Pause()  { s.paused = true }
func (s *Service) Resume() { s.paused = false }

// GetNodePositions returns a cached snapshot if younger than
// graph.MaxAge; otherwise it takes a fresh snapshot under the read lock
// and caches it.
func (s *Service) GetNodePositions() []graph.Node {
	if snapshot, ok := s.cache.Get(); ok {
		return snapshot
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var snapshot []graph.Node
	if s.data != nil {
		snapshot = append([]graph.Node(nil), s.data.Nodes...)
	}
	s.cache.Store(snapshot)
	return snapshot
}

// Page is one paginated window of nodes plus all edges incident on it.
type Page struct {
	Nodes      []graph.Node
	Edges      []graph.Edge
	Page       int
	PageSize   int
	TotalPages int
}

// Paginate returns the node window [page*pageSize, (page+1)*pageSize) and
// every edge with at least one endpoint in that window.
func (s *Service) Paginate(page, pageSize int) Page {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data == nil || pageSize <= 0 {
		return Page{Page: page, PageSize: pageSize}
	}

	total := len(s.data.Nodes)
	totalPages := (total + pageSize - 1) / pageSize
	start := page * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	windowIDs := make(map[string]bool, end-start)
	nodes := make([]graph.Node, end-start)
	copy(nodes, s.data.Nodes[start:end])
	for _, n := range nodes {
		windowIDs[n.ID] = true
	}

	edges := make([]graph.Edge, 0)
	for _, e := range s.data.Edges {
		if windowIDs[e.Source] || windowIDs[e.Target] {
			edges = append(edges, e)
		}
	}

	return Page{Nodes: nodes, Edges: edges, Page: page, PageSize: pageSize, TotalPages: totalPages}
}

// PositionUpdate is an external override applied by index into the
// current node sequence.
type PositionUpdate struct {
	Index uint16
	Node  graph.Node
}

// UpdatePositions applies external position overrides, reconciling them
// back into the authoritative node sequence.
func (s *Service) UpdatePositions(updates []PositionUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		return
	}
	for _, u := range updates {
		if int(u.Index) >= len(s.data.Nodes) {
			continue
		}
		s.data.Nodes[u.Index].Record = u.Node.Record
	}
	s.cache.Invalidate()
}

// RebuildFromMetadata defers to graph.Build under the builder's own
// single-flight guard and, on success, swaps in the new GraphData
// atomically; any tick in flight completes against the previous instance.
func (s *Service) RebuildFromMetadata(store graph.MetadataStore) error {
	data, err := graph.Build(store, s.seed)
	if err != nil {
		return fmt.Errorf("layout: rebuild failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	s.cache.Invalidate()
	return nil
}

// ErrNotReady reports that no graph is loaded. No Service method returns
// it; with no graph loaded they return empty results instead.
var ErrNotReady = fmt.Errorf("layout: no graph loaded: %w", yerrors.ErrInvalidInput)
