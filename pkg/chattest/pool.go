package chattest

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// wsConn is the part of *websocket.Conn the pool writes through.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

const writeTimeout = 2 * time.Second

// roomPool holds the websocket peers of one room. Writes happen under the pool
// lock so frames reach each peer in broadcast order.
type roomPool struct {
	roomID string
	mu     sync.Mutex
	conns  map[wsConn]string
}

func newRoomPool(roomID string) *roomPool {
	return &roomPool{roomID: roomID, conns: map[wsConn]string{}}
}

func (rp *roomPool) add(conn wsConn, username string) {
	rp.mu.Lock()
	rp.conns[conn] = username
	rp.mu.Unlock()
}

func (rp *roomPool) remove(conn wsConn) {
	rp.mu.Lock()
	delete(rp.conns, conn)
	rp.mu.Unlock()
	_ = conn.Close()
}

// broadcast writes data to every peer, dropping peers whose write fails.
func (rp *roomPool) broadcast(data []byte) {
	if len(data) == 0 {
		return
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	for conn := range rp.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Str("component", "chattest").Str("room_id", rp.roomID).Msg("ws broadcast failed, dropping connection")
			delete(rp.conns, conn)
			_ = conn.Close()
		}
	}
}

func (rp *roomPool) count() int {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return len(rp.conns)
}

// closeAll sends a normal close frame to every peer and forgets them.
func (rp *roomPool) closeAll() {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	for conn := range rp.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		delete(rp.conns, conn)
	}
}
