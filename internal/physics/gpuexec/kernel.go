package gpuexec

import (
	"github.com/orneryd/yggdrasil/internal/graph"
	"github.com/orneryd/yggdrasil/internal/physics"
	"github.com/orneryd/yggdrasil/internal/physics/cpuexec"
)

// kernelBlockDim is the fixed CUDA/Metal block dimension the force kernel
// launches with; grid dimension is ceil(n/kernelBlockDim).
const kernelBlockDim = 256

// launchKernel dispatches one force-kernel step against the packed
// little-endian buffer. No cgo-backed backend is compiled into this
// build (see probe_cuda.go / probe_metal.go), so the actual force
// computation here reuses the CPU executor's math against the same node
// order and edge set - the same "kernel dispatch is structurally
// complete, computation delegates to the CPU-equivalent path" shape the
// rest of this codebase uses for unavailable acceleration backends.
//
// edges and ids give the kernel the spring topology and stable node
// identity it needs; the packed buffer alone only carries position,
// velocity, mass and flags.
func launchKernel(buf []byte, n int, params physics.Params, iterationCount uint64, edges []graph.Edge, ids []string) error {
	_ = kernelBlockDim
	_ = iterationCount // diagnostic only, no physical effect per the kernel contract

	nodes := make([]graph.Node, n)
	for i := 0; i < n; i++ {
		nodes[i] = graph.Node{
			ID:     ids[i],
			Record: physics.DecodeBinaryNodeRecord(buf[i*physics.RecordSize : (i+1)*physics.RecordSize]),
		}
	}
	shadow := graph.NewData(nodes, edges, nil, nil)

	cpuexec.New().Step(shadow, params)

	for i, node := range shadow.Nodes {
		node.Record.Encode(buf[i*physics.RecordSize : (i+1)*physics.RecordSize])
	}
	return nil
}
