package session

import (
	"context"

	"github.com/go-go-golems/chatroom/pkg/chat"
	"github.com/go-go-golems/chatroom/pkg/stream"
)

type HistoryFetcher interface {
	Fetch(ctx context.Context, room chat.Room, creds chat.Credentials) ([]chat.Message, error)
}

// Stream is an open room connection. ReadPayload is only called from one goroutine.
type Stream interface {
	ReadPayload() ([]byte, error)
	WriteJSON(v any) error
	KeepAlive(ctx context.Context) error
	Close() error
}

type StreamDialer interface {
	Dial(ctx context.Context, room chat.Room, creds chat.Credentials) (Stream, error)
}

// Sender transmits outside the stream, e.g. the REST send endpoint.
type Sender interface {
	Post(ctx context.Context, room chat.Room, creds chat.Credentials, body string) error
}

type StreamDialerFunc func(ctx context.Context, room chat.Room, creds chat.Credentials) (Stream, error)

func (f StreamDialerFunc) Dial(ctx context.Context, room chat.Room, creds chat.Credentials) (Stream, error) {
	return f(ctx, room, creds)
}

// WebsocketDialer adapts a stream.Dialer.
func WebsocketDialer(d *stream.Dialer) StreamDialer {
	return StreamDialerFunc(func(ctx context.Context, room chat.Room, creds chat.Credentials) (Stream, error) {
		conn, err := d.Dial(ctx, room, creds)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
}
