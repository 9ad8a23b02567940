package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/yggdrasil/internal/physics"
	"github.com/orneryd/yggdrasil/internal/upstream"
)

type stubChatClient struct {
	reply string
	err   error
}

func (s *stubChatClient) Complete(ctx context.Context, req upstream.ChatRequest) (upstream.ChatResponse, error) {
	if s.err != nil {
		return upstream.ChatResponse{}, s.err
	}
	return upstream.ChatResponse{
		Choices: []upstream.ChatChoice{{Message: upstream.ChatMessage{Role: "assistant", Content: s.reply}}},
	}, nil
}

var _ upstream.ChatClient = (*stubChatClient)(nil)

func dialSession(t *testing.T, chat upstream.ChatClient) (*websocket.Conn, func()) {
	t.Helper()

	hub := NewHub(nil)
	layoutSvc := testLayoutService()
	ctx, cancel := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		session := NewSession(conn, hub, layoutSvc, chat, nil, nil)
		go session.Run(ctx)
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	return conn, func() {
		conn.Close()
		cancel()
		srv.Close()
	}
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestSessionInitialDataReturnsGraphThenSettings(t *testing.T) {
	conn, cleanup := dialSession(t, nil)
	defer cleanup()

	require.NoError(t, conn.WriteJSON(InitialDataRequest{Type: TypeInitialData}))

	var graphMsg Envelope
	readJSON(t, conn, &graphMsg)
	assert.Equal(t, TypeGraphUpdate, graphMsg.Type)

	var settingsMsg Envelope
	readJSON(t, conn, &settingsMsg)
	assert.Equal(t, TypeSettingsUpdated, settingsMsg.Type)
}

func TestSessionSimulationModeSwitchesExecutor(t *testing.T) {
	conn, cleanup := dialSession(t, nil)
	defer cleanup()

	require.NoError(t, conn.WriteJSON(SimulationModeRequest{Type: TypeSimulationMode, Mode: "gpu"}))

	var resp SimulationModeSet
	readJSON(t, conn, &resp)
	assert.Equal(t, "gpu", resp.Mode)
	assert.True(t, resp.GPUEnabled)
}

func TestSessionSimulationModeRejectsUnknownMode(t *testing.T) {
	conn, cleanup := dialSession(t, nil)
	defer cleanup()

	require.NoError(t, conn.WriteJSON(SimulationModeRequest{Type: TypeSimulationMode, Mode: "quantum"}))

	var resp ErrorMessage
	readJSON(t, conn, &resp)
	assert.Equal(t, CodeInvalidInput, resp.Code)
}

func TestSessionLayoutRequestReturnsBinaryThenCompletion(t *testing.T) {
	conn, cleanup := dialSession(t, nil)
	defer cleanup()

	require.NoError(t, conn.WriteJSON(LayoutRequest{Type: TypeLayout, Params: physics.DefaultParams()}))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
	assert.Len(t, data, 2*physics.RecordSize)

	var completion Completion
	readJSON(t, conn, &completion)
	assert.Equal(t, TypeCompletion, completion.Type)
	assert.Equal(t, TypeLayout, completion.Request)
}

func TestSessionFisheyeEchoesSettings(t *testing.T) {
	conn, cleanup := dialSession(t, nil)
	defer cleanup()

	require.NoError(t, conn.WriteJSON(FisheyeRequest{
		Type: TypeFisheye, Enabled: true, Strength: 2.5, Radius: 10,
	}))

	var resp FisheyeSettingsUpdated
	readJSON(t, conn, &resp)
	assert.True(t, resp.Enabled)
	assert.Equal(t, float32(2.5), resp.Strength)
	assert.Equal(t, float32(10), resp.Radius)
}

func TestSessionChatRelaysToUpstreamCollaborator(t *testing.T) {
	conn, cleanup := dialSession(t, &stubChatClient{reply: "hello there"})
	defer cleanup()

	require.NoError(t, conn.WriteJSON(ChatRequest{Type: TypeChat, Message: "hi", UseOpenAI: true}))

	var completion Completion
	readJSON(t, conn, &completion)
	assert.Equal(t, TypeCompletion, completion.Type)
	assert.Equal(t, TypeChat, completion.Request)
}

func TestSessionChatWithoutCollaboratorReturnsError(t *testing.T) {
	conn, cleanup := dialSession(t, nil)
	defer cleanup()

	require.NoError(t, conn.WriteJSON(ChatRequest{Type: TypeChat, Message: "hi"}))

	var resp ErrorMessage
	readJSON(t, conn, &resp)
	assert.Equal(t, CodeUpstreamFailed, resp.Code)
}

func TestSessionUnknownMessageTypeReturnsError(t *testing.T) {
	conn, cleanup := dialSession(t, nil)
	defer cleanup()

	require.NoError(t, conn.WriteJSON(Envelope{Type: "not_a_real_type"}))

	var resp ErrorMessage
	readJSON(t, conn, &resp)
	assert.Equal(t, CodeUnknownMessageType, resp.Code)
}
