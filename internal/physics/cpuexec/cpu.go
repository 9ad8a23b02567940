// Package cpuexec is the CPU fallback force-directed layout executor (C5):
// O(N^2) pairwise repulsion, O(|E|) spring pass, then symplectic-Euler
// integration and boundary reflection. This is the executor the control
// plane can always depend on, GPU present or not.
package cpuexec

import (
	"math"

	"github.com/orneryd/yggdrasil/internal/graph"
	"github.com/orneryd/yggdrasil/internal/physics"
)

// minDistanceSquared floors the denominator in the repulsion term so two
// coincident nodes never produce an infinite force.
const minDistanceSquared = 1e-4

// Executor runs the physics contract in-process.
type Executor struct{}

// New returns a ready-to-use CPU executor. It holds no state between
// steps; every call operates on the Data passed in.
func New() *Executor { return &Executor{} }

// Step advances data by one tick under params. It early-returns on empty
// graphs, and uses a snapshot of positions for the force pass so forces
// depend only on the pre-step state (no read-write interleaving).
func (e *Executor) Step(data *graph.Data, params physics.Params) {
	n := len(data.Nodes)
	if n == 0 {
		return
	}

	positions := make([]physics.Vec3, n)
	masses := make([]float32, n)
	for i, node := range data.Nodes {
		positions[i] = node.Record.Position
		masses[i] = params.EffectiveMass(node.Record.Mass)
	}

	forces := make([]physics.Vec3, n)

	maxDist := params.MaxRepulsionDistance
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			delta := positions[i].Sub(positions[j])
			distSq := delta.X*delta.X + delta.Y*delta.Y + delta.Z*delta.Z
			dist := float32(math.Sqrt(float64(distSq)))
			if dist >= maxDist {
				continue
			}
			if distSq < minDistanceSquared {
				distSq = minDistanceSquared
				dist = float32(math.Sqrt(minDistanceSquared))
			}
			mag := params.Repulsion * masses[i] * masses[j] / distSq
			dir := delta.Scale(1.0 / dist)
			forces[i] = forces[i].Add(dir.Scale(mag))
			forces[j] = forces[j].Sub(dir.Scale(mag))
		}
	}

	for _, edge := range data.Edges {
		si, ti := data.IndexOf(edge.Source), data.IndexOf(edge.Target)
		if si < 0 || ti < 0 {
			continue
		}
		delta := positions[ti].Sub(positions[si])
		distSq := delta.X*delta.X + delta.Y*delta.Y + delta.Z*delta.Z
		dist := float32(math.Sqrt(float64(distSq)))
		if dist < 1e-6 {
			continue
		}
		mag := params.SpringStrength * edge.Weight * dist
		dir := delta.Scale(1.0 / dist)
		forces[si] = forces[si].Add(dir.Scale(mag))
		forces[ti] = forces[ti].Sub(dir.Scale(mag))
	}

	bound := params.EffectiveBound()
	for i := range data.Nodes {
		rec := &data.Nodes[i].Record
		vel := rec.Velocity.Scale(params.Damping).Add(forces[i].Scale(params.TimeStep))
		pos := rec.Position.Add(vel.Scale(params.TimeStep))

		pos.X, vel.X = reflect(pos.X, vel.X, bound, params.BoundaryDamping)
		pos.Y, vel.Y = reflect(pos.Y, vel.Y, bound, params.BoundaryDamping)
		pos.Z, vel.Z = reflect(pos.Z, vel.Z, bound, params.BoundaryDamping)

		rec.Position = pos
		rec.Velocity = vel
	}
}

func reflect(p, v, bound, boundaryDamping float32) (float32, float32) {
	half := bound / 2
	if float32(math.Abs(float64(p))) <= half {
		return p, v
	}
	if p > half {
		p = half
	} else {
		p = -half
	}
	return p, -v * boundaryDamping
}
