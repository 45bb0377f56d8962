// internal/app/features/collab/protocol.go
package collab

import (
	"encoding/json"
	"strings"
)

// Event types on the session wire. Frames whose type starts with
// blockEventPrefix are editing events: they are relayed to the rest of
// the group wrapped in a handle_block_event, never echoed to the
// sender.
const (
	evUserConnect    = "user_connect"
	evUserDisconnect = "user_disconnect"
	evUserList       = "user_list"
	evBlockEvent     = "handle_block_event"
	evAutosave       = "project_autosave"
	evPing           = "ping"
	evPong           = "pong"
	evError          = "error"

	blockEventPrefix = "block_"
)

// inboundFrame is what clients send: a type, and for everything except
// ping a data object.
type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// parseInbound validates the raw frame. Malformed frames are answered
// with an error event to the sender only; they never terminate the
// session.
func parseInbound(raw []byte) (inboundFrame, bool) {
	var f inboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return inboundFrame{}, false
	}
	if f.Type == "" {
		return inboundFrame{}, false
	}
	if f.Type == evPing {
		return f, true
	}
	// data must be present and be an object
	trimmed := strings.TrimSpace(string(f.Data))
	if !strings.HasPrefix(trimmed, "{") {
		return inboundFrame{}, false
	}
	return f, true
}

// outboundEvent is what the coordinator writes to clients.
type outboundEvent struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	UserID  string      `json:"user_id,omitempty"`
	Message string      `json:"message,omitempty"`
}

func pongEvent() outboundEvent {
	return outboundEvent{Type: evPong}
}

func errorEvent(msg string) outboundEvent {
	return outboundEvent{Type: evError, Message: msg}
}

// envelope is the hub transport wrapper. SenderID carries the
// originating user so receivers can suppress their own presence and
// editing broadcasts.
type envelope struct {
	Type     string          `json:"type"`
	SenderID string          `json:"sender_id"`
	Event    json.RawMessage `json:"event"`
}

func sealEnvelope(typ, senderID string, ev outboundEvent) ([]byte, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: typ, SenderID: senderID, Event: raw})
}

// selfSuppressed reports whether a receiver with the given user ID must
// drop the envelope. Presence joins and editing events from any of the
// user's own connections are never played back to them.
func (e envelope) selfSuppressed(userID string) bool {
	if e.SenderID != userID {
		return false
	}
	return e.Type == evUserConnect || e.Type == evBlockEvent
}
