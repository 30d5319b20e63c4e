package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nasti98RS/swarm-db-api/internal/adapter/llm"
	"github.com/Nasti98RS/swarm-db-api/internal/agent"
	"github.com/Nasti98RS/swarm-db-api/internal/dispatch"
	"github.com/Nasti98RS/swarm-db-api/internal/domain"
	"github.com/Nasti98RS/swarm-db-api/internal/session"
	"github.com/Nasti98RS/swarm-db-api/internal/swarm"
	"github.com/Nasti98RS/swarm-db-api/internal/testutil"
	"github.com/Nasti98RS/swarm-db-api/internal/tools"
)

func newTestServer(t *testing.T) string {
	t.Helper()
	reg := agent.Builtin()
	records := testutil.NewTestSQLiteStore(t)
	testutil.SeedProducts(t, records, domain.Product{Name: "Mouse", Price: 10, Stock: 3, ReturnDiscount: 10})

	runner := swarm.NewRunner(llm.NewMockClient(), reg, tools.NewRecordRegistry(records), swarm.Options{})
	d := dispatch.New(reg, session.NewMemoryStore(reg.Default().ID), runner, dispatch.Options{Timeout: 5 * time.Second})

	e := echo.New()
	NewServer(DefaultConfig(), d, nil).RegisterRoutes(e)
	ts := httptest.NewServer(e)
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type frame struct {
	BaseMessage
	AgentID   string              `json:"agent_id"`
	AgentName string              `json:"agent_name"`
	Delta     string              `json:"delta"`
	Results   []domain.TurnResult `json:"results"`
	Code      string              `json:"code"`
	Message   string              `json:"message"`
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func hello(t *testing.T, conn *websocket.Conn, userID string) frame {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": TypeHello, "user_id": userID}))
	return read(t, conn)
}

func TestChatRequiresHello(t *testing.T) {
	conn := dial(t, newTestServer(t))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": TypeChat, "request_id": "r1", "message": "hi"}))

	f := read(t, conn)
	assert.Equal(t, TypeError, f.Type)
	assert.Equal(t, ErrorCodeUserRequired, f.Code)
	assert.Equal(t, "r1", f.RequestID)
}

func TestUnknownFrame(t *testing.T) {
	conn := dial(t, newTestServer(t))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, ErrorCodeInvalidMessage, read(t, conn).Code)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "bogus"}))
	f := read(t, conn)
	assert.Equal(t, ErrorCodeInvalidMessage, f.Code)
	assert.Contains(t, f.Message, "bogus")
}

func TestChatHandoffThenReset(t *testing.T) {
	url := newTestServer(t)
	conn := dial(t, url)

	ack := hello(t, conn, "u1")
	assert.Equal(t, TypeHelloAck, ack.Type)
	assert.Equal(t, "triage", ack.AgentID)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": TypeChat, "request_id": "r1", "message": "List all products"}))
	f := read(t, conn)
	require.Equal(t, TypeResult, f.Type, "unexpected frame %+v", f)
	require.Len(t, f.Results, 1)
	assert.Equal(t, "Agent Lister", f.Results[0].Sender)
	assert.Equal(t, "Agent Lister", f.Results[0].AgentSwitch)
	assert.Contains(t, f.Results[0].Content, "Mouse")

	// another connection for the same user sees the switched agent
	other := dial(t, url)
	assert.Equal(t, "lister", hello(t, other, "u1").AgentID)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": TypeReset, "request_id": "r2"}))
	f = read(t, conn)
	assert.Equal(t, TypeResetAck, f.Type)
	assert.Equal(t, "Triage Agent", f.AgentName)
	assert.Equal(t, "triage", hello(t, conn, "u1").AgentID)
}

func TestChatStreamsDeltas(t *testing.T) {
	conn := dial(t, newTestServer(t))
	hello(t, conn, "u2")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": TypeChat, "request_id": "r1", "message": "hello there", "stream": true}))

	var sb strings.Builder
	for {
		f := read(t, conn)
		if f.Type == TypeDelta {
			sb.WriteString(f.Delta)
			continue
		}
		require.Equal(t, TypeResult, f.Type, "unexpected frame %+v", f)
		require.Len(t, f.Results, 1)
		assert.Equal(t, f.Results[0].Content, sb.String())
		assert.Contains(t, sb.String(), "hello there")
		return
	}
}
