// ABOUTME: Wire protocol definitions: inbound envelope, the closed action set, outbound frames
// ABOUTME: One JSON object per websocket text message, tagged by its "action" field

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
)

// action identifies an inbound frame kind. The set is closed: anything
// outside it is rejected at parse time, before the dispatcher sees it.
type action string

const (
	actionJoinRoom      action = "join_room"
	actionLeaveRoom     action = "leave_room"
	actionBroadcast     action = "broadcast"
	actionPythonExecute action = "python_execute"
	actionPythonOutput  action = "python_output"
	actionSubscribe     action = "subscribe"
	actionUnsubscribe   action = "unsubscribe"
	actionCommand       action = "command"
	actionQuery         action = "query"
)

// knownActions is the closed inbound action set.
var knownActions = map[action]bool{
	actionJoinRoom:      true,
	actionLeaveRoom:     true,
	actionBroadcast:     true,
	actionPythonExecute: true,
	actionPythonOutput:  true,
	actionSubscribe:     true,
	actionUnsubscribe:   true,
	actionCommand:       true,
	actionQuery:         true,
}

// Frame parse errors, reported verbatim to the sender.
var (
	errInvalidJSON   = errors.New("Invalid JSON message")
	errMissingAction = errors.New("Missing 'action' field in message")
)

// inboundFrame is the union of all action-specific fields. Which fields
// are required depends on the action; handlers validate their own.
// Action is decoded untyped so a non-string value is classified as an
// unknown action rather than a JSON failure.
type inboundFrame struct {
	Action any `json:"action"`

	RoomCode string `json:"room_code"`

	// broadcast
	Message     any   `json:"message"`
	ExcludeSelf *bool `json:"exclude_self"`

	// python_execute / python_output
	Code           string `json:"code"`
	Result         any    `json:"result"`
	OriginalSender string `json:"original_sender"`

	// subscribe / unsubscribe / command events
	EventType string `json:"event_type"`

	// command
	Command        any    `json:"command"`
	MessageID      string `json:"message_id"`
	BroadcastEvent bool   `json:"broadcast_event"`

	// query
	QueryType string `json:"query_type"`
}

// parseFrame decodes one wire message into a validated frame and action.
// Returned errors carry the exact text owed to the sender.
func parseFrame(data []byte) (action, *inboundFrame, error) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return "", nil, errInvalidJSON
	}
	if f.Action == nil {
		return "", nil, errMissingAction
	}
	name, ok := f.Action.(string)
	if !ok {
		return "", nil, fmt.Errorf("Unknown action: %v", f.Action)
	}
	act := action(name)
	if !knownActions[act] {
		return "", nil, fmt.Errorf("Unknown action: %s", act)
	}
	return act, &f, nil
}

// emptyValue reports whether a decoded JSON value is absent or empty:
// null, "", 0, false, or a zero-length array or object. Required fields
// carrying such a value are treated as missing.
func emptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case float64:
		return x == 0
	case bool:
		return !x
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}

// Outbound frames. Fields that clients expect on every frame (even as
// null) deliberately omit omitempty.

type welcomeFrame struct {
	Action       string `json:"action"`
	ConnectionID string `json:"connection_id"`
	Message      string `json:"message"`
}

type errorFrame struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

type roomJoinedFrame struct {
	Action   string `json:"action"`
	RoomCode string `json:"room_code"`
	Members  int    `json:"members"`
}

type roomLeftFrame struct {
	Action   string `json:"action"`
	RoomCode string `json:"room_code"`
}

type roomEventFrame struct {
	Action       string `json:"action"`
	Event        string `json:"event"`
	ConnectionID string `json:"connection_id"`
	RoomCode     string `json:"room_code"`
}

type broadcastFrame struct {
	Action   string `json:"action"`
	Sender   string `json:"sender"`
	Message  any    `json:"message"`
	Command  any    `json:"command"`
	RoomCode string `json:"room_code"`
}

type subscribedFrame struct {
	Action    string `json:"action"`
	EventType string `json:"event_type"`
}

type eventFrame struct {
	Action    string         `json:"action"`
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data"`
}

type commandResultFrame struct {
	Action    string `json:"action"`
	Result    any    `json:"result"`
	MessageID string `json:"message_id,omitempty"`
}

type pythonExecuteFrame struct {
	Action string `json:"action"`
	Code   string `json:"code"`
	Sender string `json:"sender"`
}

type pythonResultFrame struct {
	Action   string `json:"action"`
	Result   any    `json:"result"`
	Executor string `json:"executor"`
	Code     string `json:"code"`
}

// marshalFrame encodes an outbound frame. Frames are built from our own
// structs, so encoding failures indicate a programming error; callers
// treat a nil result as a dropped frame.
func marshalFrame(frame any) []byte {
	data, err := json.Marshal(frame)
	if err != nil {
		return nil
	}
	return data
}
