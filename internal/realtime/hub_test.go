package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/yggdrasil/internal/graph"
	"github.com/orneryd/yggdrasil/internal/layout"
	"github.com/orneryd/yggdrasil/internal/physics"
)

var upgrader = websocket.Upgrader{}

// newTestServer upgrades every request to a websocket and wires the
// resulting connection into hub/layoutSvc as a Session, returning the
// dial-able ws:// URL and a cleanup func.
func newTestServer(t *testing.T, hub *Hub, layoutSvc *layout.Service) (string, func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		session := NewSession(conn, hub, layoutSvc, nil, nil, nil)
		go session.Run(ctx)
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	return url, func() {
		cancel()
		srv.Close()
	}
}

func testLayoutService() *layout.Service {
	data := graph.NewData([]graph.Node{
		{ID: "1", Record: physics.BinaryNodeRecord{Mass: 1, Flags: physics.FlagActive}},
		{ID: "2", Record: physics.BinaryNodeRecord{Mass: 1, Flags: physics.FlagActive}},
	}, nil, nil, nil)
	return layout.New(data, physics.DefaultParams(), nil, nil)
}

func TestHubRegistersSessionOnConnect(t *testing.T) {
	hub := NewHub(nil)
	url, cleanup := newTestServer(t, hub, testLayoutService())
	defer cleanup()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(nil)
	url, cleanup := newTestServer(t, hub, testLayoutService())
	defer cleanup()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubBroadcastBinaryReachesConnectedSession(t *testing.T) {
	hub := NewHub(nil)
	url, cleanup := newTestServer(t, hub, testLayoutService())
	defer cleanup()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	hub.BroadcastBinary([]graph.Node{
		{ID: "1", Record: physics.BinaryNodeRecord{Mass: 1, Flags: physics.FlagActive}},
	})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
	assert.Len(t, data, physics.RecordSize)
}

func TestHubBroadcastFansOutToAllSessions(t *testing.T) {
	hub := NewHub(nil)
	url, cleanup := newTestServer(t, hub, testLayoutService())
	defer cleanup()

	conn1, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn1.Close()
	conn2, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn2.Close()

	require.Eventually(t, func() bool { return hub.Count() == 2 }, time.Second, 10*time.Millisecond)

	hub.BroadcastText(`{"type":"ping"}`)

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		msgType, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, msgType)
		assert.Contains(t, string(data), "ping")
	}
}
