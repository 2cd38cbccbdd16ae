package session

import (
	"time"

	"github.com/go-go-golems/chatroom/pkg/chat"
)

type EventType string

const (
	EventHistoryLoaded   EventType = "history_loaded"
	EventMessageReceived EventType = "message_received"
	EventStateChanged    EventType = "state_changed"
	EventError           EventType = "error"
)

// Event is what listeners observe. Only the fields relevant to Type are set:
// Messages for HistoryLoaded, Message for MessageReceived, State (and Err when
// failing) for StateChanged, Err for Error.
type Event struct {
	Type      EventType
	SessionID string
	Room      chat.Room
	State     State
	Message   chat.Message
	Messages  []chat.Message
	Err       error
	At        time.Time
}
