// ABOUTME: End-to-end websocket tests for the gateway over httptest
// ABOUTME: Covers authentication gating, rooms, subscriptions, relays, queries, and cleanup

package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bylexa/bylexa-gateway/internal/config"
	"github.com/bylexa/bylexa-gateway/internal/intent"
)

const testToken = "test-local-token"

// mockInterpreter returns a canned result for every command.
type mockInterpreter struct {
	result *intent.Result
	calls  atomic.Int32
}

func (m *mockInterpreter) ProcessText(_ context.Context, command string) (*intent.Result, error) {
	m.calls.Add(1)
	if m.result != nil {
		return m.result, nil
	}
	return &intent.Result{Status: "success", Message: "ok: " + command}, nil
}

// newTestGateway starts a gateway with a running dispatcher mounted on
// an httptest server.
func newTestGateway(t *testing.T, interp intent.Interpreter) (*Gateway, *httptest.Server) {
	t.Helper()

	cfg := config.Default()
	cfg.Auth.Token = testToken
	cfg.Auth.AllowStructural = false
	cfg.Server.PingInterval = 0

	gw, err := New(Options{Config: cfg, Interpreter: interp})
	require.NoError(t, err)

	go gw.runDispatcher()

	srv := httptest.NewServer(gw.httpServer.Handler)
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = gw.Shutdown(ctx)
	})

	return gw, srv
}

// dial opens a websocket connection with the given bearer token.
func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// readFrame reads the next frame, decoded into a map.
func readFrame(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame map[string]any
	require.NoError(t, ws.ReadJSON(&frame))
	return frame
}

// expectFrame reads the next frame and asserts its action.
func expectFrame(t *testing.T, ws *websocket.Conn, action string) map[string]any {
	t.Helper()

	frame := readFrame(t, ws)
	require.Equal(t, action, frame["action"], "frame: %v", frame)
	return frame
}

// connect dials, authenticates, and consumes the welcome frame.
// Returns the connection and its gateway-assigned id.
func connect(t *testing.T, srv *httptest.Server) (*websocket.Conn, string) {
	t.Helper()

	ws := dial(t, srv, testToken)
	welcome := expectFrame(t, ws, "welcome")
	id, _ := welcome["connection_id"].(string)
	require.NotEmpty(t, id)
	return ws, id
}

func sendFrame(t *testing.T, ws *websocket.Conn, frame map[string]any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(frame))
}

// queryRooms round-trips a rooms query, also proving no earlier frame
// is still owed to this connection.
func queryRooms(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	sendFrame(t, ws, map[string]any{"action": "query", "query_type": "rooms"})
	return expectFrame(t, ws, "query_result")
}

func TestAuthenticationRequired(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws := dial(t, srv, "wrong-token")

	frame := expectFrame(t, ws, "error")
	assert.Equal(t, "Authentication required", frame["message"])

	// Even a frame sent immediately is never processed; the socket closes.
	_ = ws.WriteJSON(map[string]any{"action": "join_room", "room_code": "ABC1"})
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var next map[string]any
	assert.Error(t, ws.ReadJSON(&next), "socket should be closed after auth failure")
}

func TestAuthenticationRequired_NoHeader(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws := dial(t, srv, "")
	frame := expectFrame(t, ws, "error")
	assert.Equal(t, "Authentication required", frame["message"])
}

func TestWelcome(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws, id := connect(t, srv)
	assert.NotEmpty(t, id)

	// The connection is usable immediately.
	result := queryRooms(t, ws)
	assert.Equal(t, map[string]any{}, result["rooms"])
}

func TestJoinRoomAndBroadcast(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws1, id1 := connect(t, srv)
	ws2, _ := connect(t, srv)

	sendFrame(t, ws1, map[string]any{"action": "join_room", "room_code": "R1"})
	joined := expectFrame(t, ws1, "room_joined")
	assert.Equal(t, "R1", joined["room_code"])
	assert.Equal(t, float64(1), joined["members"])

	sendFrame(t, ws2, map[string]any{"action": "join_room", "room_code": "R1"})
	joined = expectFrame(t, ws2, "room_joined")
	assert.Equal(t, float64(2), joined["members"])

	// The first member sees the second join.
	event := expectFrame(t, ws1, "room_event")
	assert.Equal(t, "joined", event["event"])

	sendFrame(t, ws1, map[string]any{"action": "broadcast", "message": "hi"})

	frame := expectFrame(t, ws2, "broadcast")
	assert.Equal(t, id1, frame["sender"])
	assert.Equal(t, "hi", frame["message"])
	assert.Equal(t, "R1", frame["room_code"])

	// Sender is excluded by default: its next frame is the query reply,
	// not its own broadcast.
	queryRooms(t, ws1)
}

func TestBroadcastSelfInclusion(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws, id := connect(t, srv)
	sendFrame(t, ws, map[string]any{"action": "join_room", "room_code": "R1"})
	expectFrame(t, ws, "room_joined")

	sendFrame(t, ws, map[string]any{
		"action":       "broadcast",
		"message":      "echo",
		"exclude_self": false,
	})

	frame := expectFrame(t, ws, "broadcast")
	assert.Equal(t, id, frame["sender"])
	assert.Equal(t, "echo", frame["message"])
}

func TestBroadcastErrors(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws, _ := connect(t, srv)

	sendFrame(t, ws, map[string]any{"action": "broadcast", "message": "hi"})
	frame := expectFrame(t, ws, "error")
	assert.Equal(t, "Not in a room and no 'room_code' specified", frame["message"])

	sendFrame(t, ws, map[string]any{"action": "broadcast", "room_code": "ghost", "message": "hi"})
	frame = expectFrame(t, ws, "error")
	assert.Equal(t, "Room ghost does not exist", frame["message"])
}

func TestBroadcastExplicitRoomCode(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws1, _ := connect(t, srv)
	ws2, _ := connect(t, srv)

	sendFrame(t, ws1, map[string]any{"action": "join_room", "room_code": "R1"})
	expectFrame(t, ws1, "room_joined")

	// ws2 targets R1 explicitly without being a member.
	sendFrame(t, ws2, map[string]any{"action": "broadcast", "room_code": "R1", "message": "drive-by"})

	frame := expectFrame(t, ws1, "broadcast")
	assert.Equal(t, "drive-by", frame["message"])
}

func TestLeaveRoom(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws1, id1 := connect(t, srv)
	ws2, _ := connect(t, srv)

	sendFrame(t, ws1, map[string]any{"action": "join_room", "room_code": "R1"})
	expectFrame(t, ws1, "room_joined")
	sendFrame(t, ws2, map[string]any{"action": "join_room", "room_code": "R1"})
	expectFrame(t, ws2, "room_joined")
	expectFrame(t, ws1, "room_event")

	sendFrame(t, ws1, map[string]any{"action": "leave_room"})
	left := expectFrame(t, ws1, "room_left")
	assert.Equal(t, "R1", left["room_code"])

	event := expectFrame(t, ws2, "room_event")
	assert.Equal(t, "left", event["event"])
	assert.Equal(t, id1, event["connection_id"])
	assert.Equal(t, "R1", event["room_code"])
}

func TestLeaveRoom_NotInRoom(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws, _ := connect(t, srv)
	sendFrame(t, ws, map[string]any{"action": "leave_room"})

	frame := expectFrame(t, ws, "error")
	assert.Equal(t, "Not in a room", frame["message"])
}

func TestJoinSwitchesRooms(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws1, id1 := connect(t, srv)
	ws2, _ := connect(t, srv)

	sendFrame(t, ws1, map[string]any{"action": "join_room", "room_code": "R1"})
	expectFrame(t, ws1, "room_joined")
	sendFrame(t, ws2, map[string]any{"action": "join_room", "room_code": "R1"})
	expectFrame(t, ws2, "room_joined")
	expectFrame(t, ws1, "room_event")

	// ws1 moves to R2; ws2 sees it leave R1.
	sendFrame(t, ws1, map[string]any{"action": "join_room", "room_code": "R2"})
	joined := expectFrame(t, ws1, "room_joined")
	assert.Equal(t, "R2", joined["room_code"])

	event := expectFrame(t, ws2, "room_event")
	assert.Equal(t, "left", event["event"])
	assert.Equal(t, id1, event["connection_id"])

	result := queryRooms(t, ws1)
	assert.Equal(t, map[string]any{"R1": float64(1), "R2": float64(1)}, result["rooms"])
}

func TestSubscribeAndCommandEvent(t *testing.T) {
	interp := &mockInterpreter{result: &intent.Result{Status: "executing", Message: "Executing command..."}}
	_, srv := newTestGateway(t, interp)

	subscriber, _ := connect(t, srv)
	commander, commanderID := connect(t, srv)

	sendFrame(t, subscriber, map[string]any{"action": "subscribe", "event_type": "alerts"})
	frame := expectFrame(t, subscriber, "subscribed")
	assert.Equal(t, "alerts", frame["event_type"])

	sendFrame(t, commander, map[string]any{
		"action":          "command",
		"command":         "open chrome",
		"broadcast_event": true,
		"event_type":      "alerts",
	})

	result := expectFrame(t, commander, "command_result")
	res, ok := result["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "executing", res["status"])

	event := expectFrame(t, subscriber, "event")
	assert.Equal(t, "alerts", event["event_type"])
	data, ok := event["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "open chrome", data["command"])
	assert.Equal(t, commanderID, data["sender"])
}

func TestCommand_ResultOnlyToSender(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws, _ := connect(t, srv)
	sendFrame(t, ws, map[string]any{"action": "command", "command": "status", "message_id": "m-1"})

	frame := expectFrame(t, ws, "command_result")
	assert.Equal(t, "m-1", frame["message_id"])
}

func TestCommand_Missing(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws, _ := connect(t, srv)
	sendFrame(t, ws, map[string]any{"action": "command"})

	frame := expectFrame(t, ws, "error")
	assert.Equal(t, "Missing 'command' field", frame["message"])
}

// failingInterpreter errors on every command.
type failingInterpreter struct{}

func (failingInterpreter) ProcessText(_ context.Context, _ string) (*intent.Result, error) {
	return nil, context.DeadlineExceeded
}

func TestCommand_InterpreterFailure(t *testing.T) {
	_, srv := newTestGateway(t, failingInterpreter{})

	ws, _ := connect(t, srv)
	sendFrame(t, ws, map[string]any{"action": "command", "command": "status"})

	frame := expectFrame(t, ws, "error")
	msg, _ := frame["message"].(string)
	assert.True(t, strings.HasPrefix(msg, "Error handling action 'command':"), "message: %q", msg)

	// The connection survives a handler failure.
	queryRooms(t, ws)
}

func TestCommand_DuplicateMessageID(t *testing.T) {
	interp := &mockInterpreter{}
	_, srv := newTestGateway(t, interp)

	ws, _ := connect(t, srv)

	sendFrame(t, ws, map[string]any{"action": "command", "command": "status", "message_id": "dup"})
	first := expectFrame(t, ws, "command_result")

	// A retry still gets its command_result, replayed without running
	// the interpreter again.
	sendFrame(t, ws, map[string]any{"action": "command", "command": "status", "message_id": "dup"})
	second := expectFrame(t, ws, "command_result")
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), interp.calls.Load())

	// The same message_id with different command text is a new command.
	sendFrame(t, ws, map[string]any{"action": "command", "command": "reboot", "message_id": "dup"})
	frame := expectFrame(t, ws, "command_result")
	res, ok := frame["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok: reboot", res["message"])
	assert.Equal(t, int32(2), interp.calls.Load())
}

func TestUnsubscribeIdempotent(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws, _ := connect(t, srv)

	sendFrame(t, ws, map[string]any{"action": "subscribe", "event_type": "alerts"})
	expectFrame(t, ws, "subscribed")

	sendFrame(t, ws, map[string]any{"action": "unsubscribe", "event_type": "alerts"})
	frame := expectFrame(t, ws, "unsubscribed")
	assert.Equal(t, "alerts", frame["event_type"])

	// Second unsubscribe still replies unsubscribed.
	sendFrame(t, ws, map[string]any{"action": "unsubscribe", "event_type": "alerts"})
	expectFrame(t, ws, "unsubscribed")
}

func TestPythonRelay(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	requester, requesterID := connect(t, srv)
	executor, executorID := connect(t, srv)

	sendFrame(t, requester, map[string]any{"action": "join_room", "room_code": "lab"})
	expectFrame(t, requester, "room_joined")
	sendFrame(t, executor, map[string]any{"action": "join_room", "room_code": "lab"})
	expectFrame(t, executor, "room_joined")
	expectFrame(t, requester, "room_event")

	sendFrame(t, requester, map[string]any{"action": "python_execute", "code": "print(1)"})

	frame := expectFrame(t, executor, "python_execute")
	assert.Equal(t, "print(1)", frame["code"])
	assert.Equal(t, requesterID, frame["sender"])

	sendFrame(t, executor, map[string]any{
		"action":          "python_output",
		"result":          "1",
		"original_sender": requesterID,
		"code":            "print(1)",
	})

	frame = expectFrame(t, requester, "python_result")
	assert.Equal(t, "1", frame["result"])
	assert.Equal(t, executorID, frame["executor"])
	assert.Equal(t, "print(1)", frame["code"])
}

func TestPythonExecute_MissingCode(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws, _ := connect(t, srv)
	sendFrame(t, ws, map[string]any{"action": "python_execute"})

	frame := expectFrame(t, ws, "error")
	assert.Equal(t, "Missing 'code' field", frame["message"])
}

func TestPythonExecute_NoRoomIsSilent(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws, _ := connect(t, srv)
	sendFrame(t, ws, map[string]any{"action": "python_execute", "code": "print(1)"})

	// Best-effort relay: no error frame, next reply is the query result.
	queryRooms(t, ws)
}

func TestPythonOutput_DeadOriginDropped(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws, _ := connect(t, srv)
	sendFrame(t, ws, map[string]any{
		"action":          "python_output",
		"result":          "done",
		"original_sender": "no-such-connection",
	})

	queryRooms(t, ws)
}

func TestProtocolErrors(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws, _ := connect(t, srv)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
	frame := expectFrame(t, ws, "error")
	assert.Equal(t, "Invalid JSON message", frame["message"])

	sendFrame(t, ws, map[string]any{"room_code": "R1"})
	frame = expectFrame(t, ws, "error")
	assert.Equal(t, "Missing 'action' field in message", frame["message"])

	sendFrame(t, ws, map[string]any{"action": "dance"})
	frame = expectFrame(t, ws, "error")
	assert.Equal(t, "Unknown action: dance", frame["message"])

	// A non-string action is an unknown action, not a JSON failure.
	sendFrame(t, ws, map[string]any{"action": 5})
	frame = expectFrame(t, ws, "error")
	assert.Equal(t, "Unknown action: 5", frame["message"])

	// Connection survives all of it.
	queryRooms(t, ws)
}

func TestQueryRooms_Scenario(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws1, _ := connect(t, srv)
	ws2, _ := connect(t, srv)
	ws3, _ := connect(t, srv)

	sendFrame(t, ws1, map[string]any{"action": "join_room", "room_code": "R1"})
	expectFrame(t, ws1, "room_joined")
	sendFrame(t, ws2, map[string]any{"action": "join_room", "room_code": "R1"})
	expectFrame(t, ws2, "room_joined")
	sendFrame(t, ws3, map[string]any{"action": "join_room", "room_code": "R2"})
	expectFrame(t, ws3, "room_joined")

	result := queryRooms(t, ws3)
	assert.Equal(t, map[string]any{"R1": float64(2), "R2": float64(1)}, result["rooms"])
}

func TestQueryConnections(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws, _ := connect(t, srv)
	_, _ = connect(t, srv)

	sendFrame(t, ws, map[string]any{"action": "query", "query_type": "connections"})
	frame := expectFrame(t, ws, "query_result")
	assert.Equal(t, float64(2), frame["count"])
	assert.Equal(t, float64(2), frame["authenticated"])
}

func TestQuerySubscribers(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws1, _ := connect(t, srv)
	ws2, _ := connect(t, srv)

	sendFrame(t, ws1, map[string]any{"action": "subscribe", "event_type": "alerts"})
	expectFrame(t, ws1, "subscribed")
	sendFrame(t, ws2, map[string]any{"action": "subscribe", "event_type": "alerts"})
	expectFrame(t, ws2, "subscribed")

	sendFrame(t, ws1, map[string]any{"action": "query", "query_type": "subscribers"})
	frame := expectFrame(t, ws1, "query_result")
	assert.Equal(t, map[string]any{"alerts": float64(2)}, frame["subscribers"])
}

func TestQueryUnknownType(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws, _ := connect(t, srv)
	sendFrame(t, ws, map[string]any{"action": "query", "query_type": "weather"})

	frame := expectFrame(t, ws, "query_result")
	assert.Equal(t, "Unknown query type: weather", frame["error"])
}

func TestMissingFieldErrors(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws, _ := connect(t, srv)

	tests := []struct {
		frame   map[string]any
		wantErr string
	}{
		{map[string]any{"action": "join_room"}, "Missing 'room_code' field"},
		{map[string]any{"action": "subscribe"}, "Missing 'event_type' field"},
		{map[string]any{"action": "unsubscribe"}, "Missing 'event_type' field"},
		{map[string]any{"action": "python_output"}, "Missing 'result' field"},
		{map[string]any{"action": "python_output", "result": ""}, "Missing 'result' field"},
		{map[string]any{"action": "query"}, "Missing 'query_type' field"},
	}

	for _, tt := range tests {
		sendFrame(t, ws, tt.frame)
		frame := expectFrame(t, ws, "error")
		assert.Equal(t, tt.wantErr, frame["message"])
	}
}

func TestDisconnectCleanup(t *testing.T) {
	gw, srv := newTestGateway(t, &mockInterpreter{})

	ws1, id1 := connect(t, srv)
	ws2, _ := connect(t, srv)

	sendFrame(t, ws1, map[string]any{"action": "join_room", "room_code": "R1"})
	expectFrame(t, ws1, "room_joined")
	sendFrame(t, ws1, map[string]any{"action": "subscribe", "event_type": "alerts"})
	expectFrame(t, ws1, "subscribed")

	sendFrame(t, ws2, map[string]any{"action": "join_room", "room_code": "R1"})
	expectFrame(t, ws2, "room_joined")
	expectFrame(t, ws1, "room_event")

	require.NoError(t, ws1.Close())

	// The remaining member is told its peer left.
	event := expectFrame(t, ws2, "room_event")
	assert.Equal(t, "left", event["event"])
	assert.Equal(t, id1, event["connection_id"])

	result := queryRooms(t, ws2)
	assert.Equal(t, map[string]any{"R1": float64(1)}, result["rooms"])

	sendFrame(t, ws2, map[string]any{"action": "query", "query_type": "subscribers"})
	frame := expectFrame(t, ws2, "query_result")
	assert.Equal(t, map[string]any{}, frame["subscribers"])

	sendFrame(t, ws2, map[string]any{"action": "query", "query_type": "connections"})
	frame = expectFrame(t, ws2, "query_result")
	assert.Equal(t, float64(1), frame["count"])

	assert.Equal(t, 1, gw.conns.snapshot())
}

func TestLastMemberDisconnectDeletesRoom(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws1, _ := connect(t, srv)
	ws2, _ := connect(t, srv)

	sendFrame(t, ws1, map[string]any{"action": "join_room", "room_code": "solo"})
	expectFrame(t, ws1, "room_joined")
	require.NoError(t, ws1.Close())

	// Poll through ws2 until the cleanup lands.
	require.Eventually(t, func() bool {
		if err := ws2.WriteJSON(map[string]any{"action": "query", "query_type": "rooms"}); err != nil {
			return false
		}
		_ = ws2.SetReadDeadline(time.Now().Add(time.Second))
		var frame map[string]any
		if err := ws2.ReadJSON(&frame); err != nil {
			return false
		}
		rooms, ok := frame["rooms"].(map[string]any)
		return ok && len(rooms) == 0
	}, 5*time.Second, 50*time.Millisecond)
}

func TestEnqueueOrdering(t *testing.T) {
	// A join processed before a broadcast targeting the same room must
	// be observed by the broadcast.
	_, srv := newTestGateway(t, &mockInterpreter{})

	ws1, _ := connect(t, srv)
	ws2, _ := connect(t, srv)

	sendFrame(t, ws1, map[string]any{"action": "join_room", "room_code": "X"})
	expectFrame(t, ws1, "room_joined")

	sendFrame(t, ws2, map[string]any{"action": "broadcast", "room_code": "X", "message": "first"})
	frame := expectFrame(t, ws1, "broadcast")
	assert.Equal(t, "first", frame["message"])
}

func TestShutdown_DispatcherDeadline(t *testing.T) {
	// When the dispatcher cannot stop before the deadline, Shutdown must
	// give up instead of mutating registries a handler may still touch.
	cfg := config.Default()
	cfg.Auth.Token = testToken

	gw, err := New(Options{Config: cfg, Interpreter: &mockInterpreter{}})
	require.NoError(t, err)
	// The dispatcher is never started, standing in for one wedged in a
	// slow handler.

	before := gw.conns

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = gw.Shutdown(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatcher")
	assert.Same(t, before, gw.conns, "registries must be left alone")
}

func TestHealthEndpoints(t *testing.T) {
	_, srv := newTestGateway(t, &mockInterpreter{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, _ = connect(t, srv)

	resp2, err := http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}
