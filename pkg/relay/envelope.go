package relay

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/chatroom/pkg/chat"
	"github.com/go-go-golems/chatroom/pkg/session"
)

const (
	MetaSessionID = "session_id"
	MetaEventType = "event_type"
)

// Envelope is the relayed form of a session event.
type Envelope struct {
	SessionID string         `json:"session_id"`
	Type      string         `json:"type"`
	Room      chat.Room      `json:"room"`
	State     string         `json:"state,omitempty"`
	Message   *chat.Message  `json:"message,omitempty"`
	Messages  []chat.Message `json:"messages,omitempty"`
	Error     string         `json:"error,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	At        time.Time      `json:"at"`
}

func EnvelopeFromEvent(e session.Event) Envelope {
	env := Envelope{
		SessionID: e.SessionID,
		Type:      string(e.Type),
		Room:      e.Room,
		At:        e.At.UTC(),
	}
	switch e.Type {
	case session.EventStateChanged:
		env.State = e.State.String()
	case session.EventMessageReceived:
		m := e.Message
		env.Message = &m
	case session.EventHistoryLoaded:
		env.Messages = e.Messages
	}
	if e.Err != nil {
		env.Error = e.Err.Error()
		env.Reason = chat.Reason(e.Err)
	}
	return env
}

func DecodeEnvelope(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, errors.Wrap(err, "decode relay envelope")
	}
	if env.Type == "" {
		return Envelope{}, errors.New("relay envelope without type")
	}
	return env, nil
}
