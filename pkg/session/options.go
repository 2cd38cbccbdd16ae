package session

import (
	"github.com/rs/zerolog"

	"github.com/go-go-golems/chatroom/pkg/stream"
)

type Option func(*Session)

func WithFetcher(f HistoryFetcher) Option {
	return func(s *Session) { s.fetcher = f }
}

func WithDialer(d *stream.Dialer) Option {
	return func(s *Session) { s.dialer = WebsocketDialer(d) }
}

func WithStreamDialer(d StreamDialer) Option {
	return func(s *Session) { s.dialer = d }
}

// WithSender routes Send through s instead of writing on the stream.
func WithSender(sender Sender) Option {
	return func(s *Session) { s.sender = sender }
}

func WithCapacity(n int) Option {
	return func(s *Session) { s.capacity = n }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}
