package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/chatroom/pkg/chat"
)

type connSettings struct {
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	maxMessageSize int64
}

// Conn is an open room stream. Reads must come from a single goroutine; writes
// and Close are safe from any goroutine.
type Conn struct {
	ws       *websocket.Conn
	settings connSettings
	logger   zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

func newConn(ws *websocket.Conn, s connSettings, logger zerolog.Logger) *Conn {
	c := &Conn{ws: ws, settings: s, logger: logger, closed: make(chan struct{})}
	ws.SetReadLimit(s.maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(s.pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.pongWait))
	})
	return c
}

// ReadPayload blocks for the next text payload. Binary frames are skipped.
func (c *Conn) ReadPayload() ([]byte, error) {
	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		// any traffic proves the peer is alive
		_ = c.ws.SetReadDeadline(time.Now().Add(c.settings.pongWait))
		if typ != websocket.TextMessage {
			c.logger.Debug().Int("type", typ).Msg("skipping non-text frame")
			continue
		}
		return data, nil
	}
}

func (c *Conn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode frame")
	}
	return c.write(websocket.TextMessage, data)
}

func (c *Conn) Ping() error {
	return c.write(websocket.PingMessage, nil)
}

func (c *Conn) write(typ int, data []byte) error {
	select {
	case <-c.closed:
		return chat.ErrNotConnected
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.settings.writeWait))
	if err := c.ws.WriteMessage(typ, data); err != nil {
		return errors.Wrapf(chat.ErrNetwork, "stream write: %v", err)
	}
	return nil
}

// KeepAlive pings the peer every ping period until ctx is done or a ping fails.
func (c *Conn) KeepAlive(ctx context.Context) error {
	ticker := time.NewTicker(c.settings.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.closed:
			return nil
		case <-ticker.C:
			if err := c.Ping(); err != nil {
				c.logger.Warn().Err(err).Msg("stream ping failed")
				return err
			}
		}
	}
}

// Close sends a normal close frame and closes the socket. Later calls return the
// first call's result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.settings.writeWait))
		c.writeMu.Unlock()
		c.closeErr = c.ws.Close()
		c.logger.Debug().Msg("stream closed")
	})
	return c.closeErr
}

// Done is closed once Close has been called.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// IsNormalClose reports whether a read error is an orderly remote closure.
func IsNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
