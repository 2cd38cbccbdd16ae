package chat

import (
	"github.com/pkg/errors"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated: no bearer token")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNetwork         = errors.New("network error")
	ErrMalformed       = errors.New("malformed payload")
	ErrNotConnected    = errors.New("not connected")
	ErrEmptyMessage    = errors.New("empty message")
	ErrSessionClosed   = errors.New("session closed")
	ErrRoomRequired    = errors.New("room id is required")
)

// IsFatal reports whether err ends a stream on its own. Per-frame parse errors and
// send rejections are not fatal; a malformed history response fails the join separately.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrRoomRequired)
}

// Reason returns the short taxonomy name for err, used in logs and relayed events.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrNotConnected):
		return "not_connected"
	case errors.Is(err, ErrEmptyMessage):
		return "empty_message"
	case errors.Is(err, ErrSessionClosed):
		return "closed"
	case errors.Is(err, ErrRoomRequired):
		return "room_required"
	}
	return "unknown"
}
