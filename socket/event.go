package socket

import (
	"encoding/json"
)

// WAMP opcodes used by the client's event socket.
const (
	opSubscribe   = 5
	opUnsubscribe = 6
	opEvent       = 8
)

// EventTopic carries every API event the client publishes.
const EventTopic = "OnJsonApiEvent"

// EventResponse is the envelope of a single API event.
type EventResponse struct {
	URI       string          `json:"uri"`
	Data      json.RawMessage `json:"data"`
	EventType string          `json:"eventType,omitempty"`
}

// IsNull reports whether the event carried no data.
func (e EventResponse) IsNull() bool {
	return len(e.Data) == 0 || string(e.Data) == "null"
}

func subscribeFrame(topic string) []byte {
	data, _ := json.Marshal([]any{opSubscribe, topic})
	return data
}

func unsubscribeFrame(topic string) []byte {
	data, _ := json.Marshal([]any{opUnsubscribe, topic})
	return data
}

// decodeEvent extracts the envelope from the third element of an inbound
// frame. Anything that does not fit that shape is reported as not ok.
func decodeEvent(frame []byte) (EventResponse, bool) {
	var parts []json.RawMessage
	if err := json.Unmarshal(frame, &parts); err != nil || len(parts) < 3 {
		return EventResponse{}, false
	}

	var ev EventResponse
	if err := json.Unmarshal(parts[2], &ev); err != nil || ev.URI == "" {
		return EventResponse{}, false
	}
	return ev, true
}
