package physics

import "math"

// Phase is advisory metadata for the UI; the stepper does not interpret it.
type Phase string

const (
	PhaseInitial  Phase = "Initial"
	PhaseDynamic  Phase = "Dynamic"
	PhaseSettling Phase = "Settling"
)

// Mode selects which executor a session or the layout service should use.
// Remote and GPU both imply the GPU executor; Local implies the CPU
// executor.
type Mode string

const (
	ModeRemote Mode = "remote"
	ModeGPU    Mode = "gpu"
	ModeLocal  Mode = "local"
)

// UsesGPU reports whether m routes through the GPU executor.
func (m Mode) UsesGPU() bool { return m == ModeRemote || m == ModeGPU }

// Params holds the tunables consumed by both executors every tick.
type Params struct {
	Iterations           uint32  `json:"iterations" mapstructure:"iterations"`
	SpringStrength       float32 `json:"springStrength" mapstructure:"spring_strength"`
	Repulsion            float32 `json:"repulsion" mapstructure:"repulsion"`
	Damping              float32 `json:"damping" mapstructure:"damping"`
	MaxRepulsionDistance float32 `json:"maxRepulsionDistance" mapstructure:"max_repulsion_distance"`
	ViewportBounds       float32 `json:"viewportBounds" mapstructure:"viewport_bounds"`
	MassScale            float32 `json:"massScale" mapstructure:"mass_scale"`
	BoundaryDamping      float32 `json:"boundaryDamping" mapstructure:"boundary_damping"`
	EnableBounds         bool    `json:"enableBounds" mapstructure:"enable_bounds"`
	TimeStep             float32 `json:"timeStep" mapstructure:"time_step"`
	Phase                Phase   `json:"phase" mapstructure:"phase"`
	Mode                 Mode    `json:"mode" mapstructure:"mode"`
}

// DefaultParams returns the default simulation parameters.
func DefaultParams() Params {
	return Params{
		Iterations:           1,
		SpringStrength:       0.2,
		Repulsion:            50.0,
		Damping:              0.9,
		MaxRepulsionDistance: 50.0,
		ViewportBounds:       200.0,
		MassScale:            1.0,
		BoundaryDamping:      0.5,
		EnableBounds:         true,
		TimeStep:             0.016,
		Phase:                PhaseDynamic,
		Mode:                 ModeLocal,
	}
}

// EffectiveBound returns ViewportBounds when bounds are enabled, or +Inf
// otherwise - the same "effective_bound" the kernel contract expects.
func (p Params) EffectiveBound() float32 {
	if !p.EnableBounds {
		return float32(math.Inf(1))
	}
	return p.ViewportBounds
}

// EffectiveMass converts a node's stored u8 mass byte into the float mass
// used by the force formula: (mass/255) * 10 * mass_scale.
func (p Params) EffectiveMass(raw uint8) float32 {
	return (float32(raw) / 255.0) * 10.0 * p.MassScale
}
