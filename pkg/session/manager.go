package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatroom/pkg/chat"
)

// Factory builds a fresh Session for a room.
type Factory func(room chat.Room) *Session

// Manager keeps at most one active Session. Joining a room tears the previous
// session down before the new one fetches history or opens its stream.
type Manager struct {
	factory Factory

	switchMu sync.Mutex

	mu        sync.Mutex
	current   *Session
	forward   Subscription
	listeners listenerSet
}

func NewManager(factory Factory) *Manager {
	return &Manager{factory: factory}
}

// Subscribe registers fn for events of whichever session is current. Events of a
// replaced session stop reaching fn once it is torn down.
func (m *Manager) Subscribe(fn Listener) Subscription {
	id := m.listeners.add(fn)
	return &subscription{cancel: func() { m.listeners.remove(id) }}
}

func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Join closes the current session, then builds and joins one for room. The new
// session is returned even when joining fails so callers can inspect it. Join waits
// for the previous session's events to drain, so it must not be called from a listener.
func (m *Manager) Join(ctx context.Context, room chat.Room, creds chat.Credentials) (*Session, error) {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	if err := m.closeCurrent(); err != nil {
		log.Warn().Err(err).Str("component", "session").Msg("closing previous session")
	}

	sess := m.factory(room)
	m.mu.Lock()
	m.current = sess
	m.forward = sess.Subscribe(func(e Event) {
		for _, l := range m.listeners.snapshot() {
			l.fn(e)
		}
	})
	m.mu.Unlock()

	return sess, sess.Join(ctx, creds)
}

// Close tears down the current session, if any.
func (m *Manager) Close() error {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()
	return m.closeCurrent()
}

func (m *Manager) closeCurrent() error {
	m.mu.Lock()
	prev, forward := m.current, m.forward
	m.current = nil
	m.forward = nil
	m.mu.Unlock()

	if prev == nil {
		return nil
	}
	err := prev.Close()
	// the final Closed event is delivered before the forwarder goes away
	<-prev.Done()
	if forward != nil {
		forward.Cancel()
	}
	return err
}
