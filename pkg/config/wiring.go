package config

import (
	"github.com/rs/zerolog"

	"github.com/go-go-golems/chatroom/pkg/chat"
	"github.com/go-go-golems/chatroom/pkg/history"
	"github.com/go-go-golems/chatroom/pkg/session"
	"github.com/go-go-golems/chatroom/pkg/stream"
)

// Fetcher builds the history fetcher for these settings.
func (s Settings) Fetcher(logger zerolog.Logger) (*history.Fetcher, error) {
	order, err := history.ParseOrder(s.HistoryOrder)
	if err != nil {
		return nil, err
	}
	return history.NewFetcher(s.Server,
		history.WithOrder(order),
		history.WithLogger(logger.With().Str("component", "history").Logger()),
	), nil
}

func (s Settings) Dialer(logger zerolog.Logger) (*stream.Dialer, error) {
	base, err := s.WebsocketBase()
	if err != nil {
		return nil, err
	}
	d := stream.NewDialer(base, s.PerRoom)
	d.Logger = logger.With().Str("component", "stream").Logger()
	return d, nil
}

// SessionOptions wires fetcher, dialer and sender for a Session.
func (s Settings) SessionOptions(logger zerolog.Logger) ([]session.Option, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	fetcher, err := s.Fetcher(logger)
	if err != nil {
		return nil, err
	}
	dialer, err := s.Dialer(logger)
	if err != nil {
		return nil, err
	}
	opts := []session.Option{
		session.WithFetcher(fetcher),
		session.WithDialer(dialer),
		session.WithCapacity(s.Capacity),
		session.WithLogger(logger),
	}
	if mode, _ := ParseSendMode(s.SendMode); mode == SendREST {
		poster := history.NewPoster(s.Server, nil)
		poster.Logger = logger.With().Str("component", "poster").Logger()
		opts = append(opts, session.WithSender(poster))
	}
	return opts, nil
}

// Factory returns a session factory for a Manager.
func (s Settings) Factory(logger zerolog.Logger) (session.Factory, error) {
	opts, err := s.SessionOptions(logger)
	if err != nil {
		return nil, err
	}
	return func(room chat.Room) *session.Session {
		return session.New(room, opts...)
	}, nil
}
