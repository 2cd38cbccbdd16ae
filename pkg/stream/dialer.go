package stream

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatroom/pkg/chat"
)

const (
	DefaultWriteWait      = 10 * time.Second
	DefaultPongWait       = 60 * time.Second
	DefaultMaxMessageSize = 512 << 10
	DefaultHandshake      = 15 * time.Second
)

// Dialer opens room streams. PerRoom selects the "<base>/<roomId>" layout; the
// single-room layout connects to the base URL itself.
type Dialer struct {
	BaseURL          string
	PerRoom          bool
	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	PongWait         time.Duration
	// PingPeriod must be shorter than PongWait. Zero derives it from PongWait.
	PingPeriod     time.Duration
	MaxMessageSize int64
	Logger         zerolog.Logger
}

func NewDialer(baseURL string, perRoom bool) *Dialer {
	return &Dialer{
		BaseURL:          strings.TrimRight(baseURL, "/"),
		PerRoom:          perRoom,
		HandshakeTimeout: DefaultHandshake,
		WriteWait:        DefaultWriteWait,
		PongWait:         DefaultPongWait,
		MaxMessageSize:   DefaultMaxMessageSize,
		Logger:           log.With().Str("component", "stream").Logger(),
	}
}

// URL builds the stream address, carrying the token in the bearer query parameter.
func (d *Dialer) URL(room chat.Room, creds chat.Credentials) (string, error) {
	base := strings.TrimRight(d.BaseURL, "/")
	if d.PerRoom {
		if strings.TrimSpace(room.ID) == "" {
			return "", chat.ErrRoomRequired
		}
		base += "/" + url.PathEscape(room.ID)
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrapf(chat.ErrNetwork, "parse stream url %q: %v", base, err)
	}
	q := u.Query()
	q.Set("bearer", creds.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial opens the stream. A returned Conn means the server acknowledged the open.
func (d *Dialer) Dial(ctx context.Context, room chat.Room, creds chat.Credentials) (*Conn, error) {
	if !creds.Valid() {
		return nil, chat.ErrUnauthenticated
	}
	target, err := d.URL(room, creds)
	if err != nil {
		return nil, err
	}

	wd := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	logger := d.Logger.With().Str("room_id", room.ID).Logger()
	logger.Debug().Bool("per_room", d.PerRoom).Msg("dialing stream")

	ws, resp, err := wd.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, errors.Wrapf(chat.ErrUnauthorized, "stream handshake: status %d", resp.StatusCode)
		}
		if resp != nil {
			return nil, errors.Wrapf(chat.ErrNetwork, "stream handshake: status %d: %v", resp.StatusCode, err)
		}
		return nil, errors.Wrapf(chat.ErrNetwork, "dial stream: %v", err)
	}

	logger.Info().Msg("stream open")
	return newConn(ws, d.settings(), logger), nil
}

func (d *Dialer) settings() connSettings {
	s := connSettings{
		writeWait:      d.WriteWait,
		pongWait:       d.PongWait,
		pingPeriod:     d.PingPeriod,
		maxMessageSize: d.MaxMessageSize,
	}
	if s.writeWait <= 0 {
		s.writeWait = DefaultWriteWait
	}
	if s.pongWait <= 0 {
		s.pongWait = DefaultPongWait
	}
	if s.pingPeriod <= 0 || s.pingPeriod >= s.pongWait {
		s.pingPeriod = (s.pongWait * 9) / 10
	}
	if s.maxMessageSize <= 0 {
		s.maxMessageSize = DefaultMaxMessageSize
	}
	return s
}
