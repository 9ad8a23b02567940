package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/orneryd/yggdrasil/internal/layout"
	"github.com/orneryd/yggdrasil/internal/physics"
	"github.com/orneryd/yggdrasil/internal/telemetry"
	"github.com/orneryd/yggdrasil/internal/upstream"
)

// HeartbeatInterval and HeartbeatTimeout match spec.md's liveness model.
const (
	HeartbeatInterval = 15 * time.Second
	HeartbeatTimeout  = 60 * time.Second
	mailboxSize       = 16
)

// VisualizationSettings are opaque client-facing defaults the session
// echoes on initial_data; the server stores but does not interpret them,
// the same non-interpretation stance spec.md takes for the fisheye lens.
type VisualizationSettings struct {
	Fisheye FisheyeSettingsUpdated `json:"fisheye"`
}

// GraphSnapshot is the minimal JSON-friendly graph view sent on
// initial_data.
type GraphSnapshot struct {
	Type  string      `json:"type"`
	Nodes interface{} `json:"nodes"`
	Edges interface{} `json:"edges"`
}

// Session is a per-connection actor: its own mailbox, single-threaded
// inbound processing, one actor per websocket connection. Many actors
// run concurrently on the runtime's own goroutine scheduler, the
// lightweight-thread equivalent of a work-stealing executor.
type Session struct {
	id     string
	conn   *websocket.Conn
	hub    *Hub
	layout *layout.Service
	logger *log.Logger

	chat   upstream.ChatClient
	speech upstream.SpeechClient

	send chan outbound

	modeMu sync.Mutex
	mode   physics.Mode

	convoMu sync.Mutex
	convoID string

	closeOnce sync.Once
	done      chan struct{}
}

// NewSession wraps an accepted websocket connection as a session actor
// and registers it with hub.
func NewSession(conn *websocket.Conn, hub *Hub, layoutSvc *layout.Service, chat upstream.ChatClient, speech upstream.SpeechClient, logger *log.Logger) *Session {
	if logger == nil {
		logger = telemetry.Discard()
	}
	s := &Session{
		id:     uuid.NewString(),
		conn:   conn,
		hub:    hub,
		layout: layoutSvc,
		logger: logger,
		chat:   chat,
		speech: speech,
		mode:   physics.ModeLocal,
		send:   make(chan outbound, mailboxSize),
		done:   make(chan struct{}),
	}
	hub.Register(s)
	return s
}

// enqueue places a frame in the session's mailbox, applying the
// bounded-mailbox drop-newest backpressure policy. Returns false if the
// session is already closed, signaling the hub to prune it.
func (s *Session) enqueue(o outbound) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- o:
		return true
	default:
		// Mailbox full: drop the newest position update rather than block
		// or evict an older frame.
		return true
	}
}

// Run drives the read and write pumps until the connection closes or ctx
// is cancelled. Inbound text/binary frames are handled one at a time, to
// completion, before the next is read - single-threaded per actor.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.writePump(ctx) }()
	go func() { defer wg.Done(); s.readPump(ctx) }()
	wg.Wait()

	s.hub.Unregister(s.id)
}

func (s *Session) readPump(ctx context.Context) {
	defer s.close()

	s.conn.SetReadDeadline(time.Now().Add(HeartbeatTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(HeartbeatTimeout))
		return nil
	})

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			// Reserved; currently no-op per spec.md §4.6.
		case websocket.TextMessage:
			s.handleText(ctx, data)
		}
	}
}

func (s *Session) writePump(ctx context.Context) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	defer s.close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			frameType := websocket.TextMessage
			if msg.binary {
				frameType = websocket.BinaryMessage
			}
			if err := s.conn.WriteMessage(frameType, msg.data); err != nil {
				return
			}
		}
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *Session) sendText(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Printf("session %s: failed to marshal outbound message: %v", s.id, err)
		return
	}
	s.enqueue(outbound{binary: false, data: data})
}

func (s *Session) sendBinary(data []byte) {
	s.enqueue(outbound{binary: true, data: data})
}

// handleText dispatches one inbound JSON control message by its "type"
// field - the single canonical dispatcher spec.md §9 prefers over the
// several near-duplicate variants the original implementation carried.
func (s *Session) handleText(ctx context.Context, data []byte) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		s.sendText(NewError(CodeInvalidInput, "malformed JSON"))
		return
	}

	switch envelope.Type {
	case TypeInitialData:
		s.handleInitialData()
	case TypeSimulationMode:
		s.handleSimulationMode(data)
	case TypeLayout:
		s.handleLayout(data)
	case TypeFisheye:
		s.handleFisheye(data)
	case TypeChat:
		s.handleChat(ctx, data)
	default:
		s.sendText(NewError(CodeUnknownMessageType, fmt.Sprintf("unrecognized message type %q", envelope.Type)))
	}
}

func (s *Session) handleInitialData() {
	positions := s.layout.GetNodePositions()
	s.sendText(GraphSnapshot{Type: TypeGraphUpdate, Nodes: positions})
	s.sendText(struct {
		Type     string                `json:"type"`
		Settings VisualizationSettings `json:"settings"`
	}{Type: TypeSettingsUpdated, Settings: VisualizationSettings{
		Fisheye: FisheyeSettingsUpdated{Strength: 0.5, Radius: 100.0},
	}})
}

func (s *Session) handleSimulationMode(data []byte) {
	var req SimulationModeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendText(NewError(CodeInvalidInput, "malformed simulation_mode request"))
		return
	}

	mode := physics.Mode(req.Mode)
	switch mode {
	case physics.ModeRemote, physics.ModeGPU, physics.ModeLocal:
	default:
		s.sendText(NewError(CodeInvalidInput, fmt.Sprintf("unknown mode %q", req.Mode)))
		return
	}

	s.modeMu.Lock()
	s.mode = mode
	s.modeMu.Unlock()

	params := s.layout.Params()
	params.Mode = mode
	s.layout.SetParams(params)

	s.sendText(SimulationModeSet{Type: TypeSimulationModeSet, Mode: req.Mode, GPUEnabled: mode.UsesGPU()})
}

func (s *Session) handleLayout(data []byte) {
	var req LayoutRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendText(NewError(CodeInvalidInput, "malformed layout request"))
		return
	}

	positions := s.layout.RunIterations(req.Params, req.Params.Iterations)
	records := make([]physics.BinaryNodeRecord, len(positions))
	for i, n := range positions {
		records[i] = n.Record
	}
	s.sendBinary(physics.EncodeRecords(records))
	s.sendText(Completion{Type: TypeCompletion, Request: TypeLayout})
}

func (s *Session) handleFisheye(data []byte) {
	var req FisheyeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendText(NewError(CodeInvalidInput, "malformed fisheye request"))
		return
	}
	s.sendText(FisheyeSettingsUpdated{
		Type:       TypeFisheyeSettingsUpdated,
		Enabled:    req.Enabled,
		Strength:   req.Strength,
		FocusPoint: req.FocusPoint,
		Radius:     req.Radius,
	})
}

func (s *Session) handleChat(ctx context.Context, data []byte) {
	var req ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendText(NewError(CodeInvalidInput, "malformed chat request"))
		return
	}

	if s.chat == nil {
		s.sendText(NewError(CodeUpstreamFailed, "chat collaborator not configured"))
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, upstream.HandshakeTimeout)
	defer cancel()

	resp, err := s.chat.Complete(reqCtx, upstream.ChatRequest{
		Messages: []upstream.ChatMessage{{Role: "user", Content: req.Message}},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.sendText(NewError(CodeUpstreamFailed, "chat upstream timed out"))
			return
		}
		s.sendText(NewError(CodeUpstreamFailed, "chat upstream failed"))
		return
	}

	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}

	if !req.UseOpenAI && s.speech != nil {
		audio, err := s.speech.Synthesize(reqCtx, text)
		if err == nil {
			s.sendBinary(audio)
		}
	}

	s.sendText(Completion{Type: TypeCompletion, Request: TypeChat})
	_ = text
}
