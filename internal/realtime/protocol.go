// Package realtime implements the session actor (C7) and broadcast hub
// (C8): one gorilla/websocket connection per actor, JSON control frames
// multiplexed with header-less binary position frames.
package realtime

import "github.com/orneryd/yggdrasil/internal/physics"

// Inbound message "type" discriminants, spec.md §6.
const (
	TypeInitialData     = "initial_data"
	TypeSimulationMode  = "simulation_mode"
	TypeLayout          = "layout"
	TypeFisheye         = "fisheye"
	TypeChat            = "chat"
)

// Outbound message "type" discriminants.
const (
	TypeGraphUpdate             = "graphUpdate"
	TypeSettingsUpdated         = "settingsUpdated"
	TypeSimulationModeSet       = "simulationModeSet"
	TypeFisheyeSettingsUpdated  = "fisheyeSettingsUpdated"
	TypeCompletion              = "completion"
	TypeError                   = "error"
)

// Error codes.
const (
	CodeUnknownMessageType = "UNKNOWN_MESSAGE_TYPE"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeUpstreamFailed     = "UPSTREAM_FAILED"
	CodeLayoutFailed       = "LAYOUT_FAILED"
)

// Envelope is the minimal shape needed to read the "type" discriminant
// before dispatching to a typed payload.
type Envelope struct {
	Type string `json:"type"`
}

// InitialDataRequest carries no fields beyond the type discriminant.
type InitialDataRequest struct {
	Type string `json:"type"`
}

// SimulationModeRequest switches the session's executor preference.
type SimulationModeRequest struct {
	Type string `json:"type"`
	Mode string `json:"mode"`
}

// LayoutRequest asks the layout service to run iterations steps and
// return the resulting positions.
type LayoutRequest struct {
	Type   string         `json:"type"`
	Params physics.Params `json:"params"`
}

// FisheyeRequest carries lens parameters the server stores and echoes but
// does not apply.
type FisheyeRequest struct {
	Type       string     `json:"type"`
	Enabled    bool       `json:"enabled"`
	Strength   float32    `json:"strength"`
	FocusPoint [3]float32 `json:"focusPoint"`
	Radius     float32    `json:"radius"`
}

// ChatRequest relays a message to the upstream chat collaborator.
type ChatRequest struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	UseOpenAI bool   `json:"useOpenAI"`
}

// SimulationModeSet is the reply to a simulation_mode request.
type SimulationModeSet struct {
	Type       string `json:"type"`
	Mode       string `json:"mode"`
	GPUEnabled bool   `json:"gpuEnabled"`
}

// FisheyeSettingsUpdated echoes the accepted lens parameters.
type FisheyeSettingsUpdated struct {
	Type       string     `json:"type"`
	Enabled    bool       `json:"enabled"`
	Strength   float32    `json:"strength"`
	FocusPoint [3]float32 `json:"focusPoint"`
	Radius     float32    `json:"radius"`
}

// Completion signals a request finished processing.
type Completion struct {
	Type    string `json:"type"`
	Request string `json:"request"`
}

// ErrorMessage is the stable error shape echoed to clients.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// NewError builds an outbound error frame payload.
func NewError(code, message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: message, Code: code}
}
