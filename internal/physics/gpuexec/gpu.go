// Package gpuexec is the GPU-parallel force-directed layout executor (C4):
// a retry-initialized device handle wrapping a precompiled force kernel,
// with the same step contract as the CPU executor so the layout service
// can swap between them transparently.
package gpuexec

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/orneryd/yggdrasil/internal/graph"
	"github.com/orneryd/yggdrasil/internal/physics"
	"github.com/orneryd/yggdrasil/internal/telemetry"
	"github.com/orneryd/yggdrasil/internal/yerrors"
)

// Backend identifies which device probe produced a DeviceInfo.
type Backend string

const (
	BackendNone  Backend = "none"
	BackendCUDA  Backend = "cuda"
	BackendMetal Backend = "metal"
)

// ErrNoDevice is returned by the backend probes when no compatible GPU is
// present, or when the binary was built without the corresponding backend
// tag.
var ErrNoDevice = errors.New("gpuexec: no compatible GPU found")

const minThreadsPerBlock = 256

// DeviceInfo describes the selected GPU device.
type DeviceInfo struct {
	Backend             Backend
	Index               int
	Name                string
	MaxThreadsPerBlock  int
	MultiprocessorCount int
}

// Stats tracks executor usage, exposed for diagnostics. IterationCount is
// an opaque, monotonically increasing counter threaded through to the
// kernel call; it has no assumed physical effect on the simulation.
type Stats struct {
	IterationCount   uint64
	StepCount        uint64
	FallbackCount    uint64
	InitAttempts     uint64
	LastStepDuration time.Duration
}

// Config controls device selection and retry behavior.
type Config struct {
	DeviceIndex int
	RetryDelays []time.Duration
}

// DefaultConfig returns the retry schedule specified by the kernel
// contract: three attempts with 500ms/1000ms/2000ms backoff.
func DefaultConfig() Config {
	return Config{
		DeviceIndex: 0,
		RetryDelays: []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond, 2000 * time.Millisecond},
	}
}

// Executor owns the device handle and the packed device buffer binding.
// Initialization is idempotent per attempt and makes no partial mutations
// visible on failure. Every method takes the executor's own mutex; the
// layout service additionally serializes steps with its GPU write-mutex.
type Executor struct {
	cfg    Config
	logger *log.Logger

	mu        sync.Mutex
	device    *DeviceInfo
	nodeCount int
	stats     Stats
}

// New constructs an executor without attempting device initialization;
// call Init to bring up the device.
func New(cfg Config, logger *log.Logger) *Executor {
	if logger == nil {
		logger = telemetry.Discard()
	}
	return &Executor{cfg: cfg, logger: logger}
}

// Init probes for a device, making exactly len(cfg.RetryDelays) attempts
// total, backing off cfg.RetryDelays[attempt] between a failed attempt and
// the next one (no wait follows the final attempt). Each attempt is
// independent; on total failure the caller should demote to the CPU
// executor.
func (e *Executor) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < len(e.cfg.RetryDelays); attempt++ {
		e.stats.InitAttempts++
		device, err := probeDevice(e.cfg.DeviceIndex)
		if err == nil {
			if device.MaxThreadsPerBlock < minThreadsPerBlock {
				lastErr = fmt.Errorf("gpuexec: device reports %d threads/block, need >= %d", device.MaxThreadsPerBlock, minThreadsPerBlock)
			} else {
				e.device = device
				e.logger.Printf("gpu device initialized: backend=%s name=%s", device.Backend, device.Name)
				return nil
			}
		} else {
			lastErr = err
		}

		if attempt < len(e.cfg.RetryDelays)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.cfg.RetryDelays[attempt]):
			}
		}
	}

	e.logger.Printf("gpu initialization failed after %d attempts: %v", len(e.cfg.RetryDelays), lastErr)
	return fmt.Errorf("%w: %v", yerrors.ErrInitializationFailed, lastErr)
}

// Available reports whether Init has succeeded.
func (e *Executor) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.device != nil
}

// Device returns the selected device, or nil if uninitialized.
func (e *Executor) Device() *DeviceInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.device
}

// Stats returns a snapshot of executor statistics.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Step uploads the packed node buffer, launches the force kernel, and
// reads the result back in place. If the node count changed since the
// last step, the device buffer binding is conceptually reallocated and
// the iteration counter resets to 0.
func (e *Executor) Step(data *graph.Data, params physics.Params) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.device == nil {
		return fmt.Errorf("gpuexec: step called before successful init: %w", yerrors.ErrInitializationFailed)
	}

	n := len(data.Nodes)
	if n != e.nodeCount {
		e.nodeCount = n
		e.stats.IterationCount = 0
	}
	if n == 0 {
		return nil
	}

	start := time.Now()
	records := data.Records()
	buf := physics.EncodeRecords(records) // host-to-device upload payload
	ids := make([]string, n)
	for i, node := range data.Nodes {
		ids[i] = node.ID
	}

	// gridDim = ceil(n/256), blockDim = 256, shared mem = 256*28 bytes;
	// the kernel launch itself is backend-specific and lives behind
	// launchKernel, which this build's probe selected.
	if err := launchKernel(buf, n, params, e.stats.IterationCount, data.Edges, ids); err != nil {
		return fmt.Errorf("%w: %v", yerrors.ErrStepFailed, err)
	}

	out := make([]physics.BinaryNodeRecord, n)
	for i := 0; i < n; i++ {
		out[i] = physics.DecodeBinaryNodeRecord(buf[i*physics.RecordSize : (i+1)*physics.RecordSize])
	}
	data.SetRecords(out)

	e.stats.IterationCount++
	e.stats.StepCount++
	e.stats.LastStepDuration = time.Since(start)
	return nil
}

// probeDevice tries each compiled-in backend in turn. Backend probes are
// build-tag gated (see probe_cuda.go, probe_metal.go); a host without the
// matching toolchain compiled in always returns ErrNoDevice here, and the
// caller falls back to the CPU executor without needing to know which
// backend was attempted.
func probeDevice(index int) (*DeviceInfo, error) {
	for _, probe := range []func(int) (*DeviceInfo, error){probeCUDA, probeMetal} {
		if device, err := probe(index); err == nil {
			return device, nil
		}
	}
	return nil, ErrNoDevice
}
