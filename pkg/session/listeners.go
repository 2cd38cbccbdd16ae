package session

import (
	"sync"
)

type Listener func(Event)

// Subscription is the cancellation handle returned by Subscribe.
type Subscription interface {
	Cancel()
}

type listenerEntry struct {
	id uint64
	fn Listener
}

type listenerSet struct {
	mu      sync.Mutex
	next    uint64
	entries []listenerEntry
}

func (ls *listenerSet) add(fn Listener) uint64 {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.next++
	ls.entries = append(ls.entries, listenerEntry{id: ls.next, fn: fn})
	return ls.next
}

func (ls *listenerSet) remove(id uint64) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for i, e := range ls.entries {
		if e.id == id {
			ls.entries = append(ls.entries[:i:i], ls.entries[i+1:]...)
			return
		}
	}
}

func (ls *listenerSet) snapshot() []listenerEntry {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return append([]listenerEntry(nil), ls.entries...)
}

func (ls *listenerSet) len() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.entries)
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// mailbox is an unbounded FIFO drained by one dispatcher goroutine, so producers
// never block on slow listeners. The dispatcher starts with the first event.
type mailbox struct {
	deliver func(Event)

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Event
	closed  bool
	started bool
	done    chan struct{}
}

func newMailbox(deliver func(Event)) *mailbox {
	m := &mailbox{deliver: deliver, done: make(chan struct{})}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *mailbox) push(e Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.queue = append(m.queue, e)
	if !m.started {
		m.started = true
		go m.loop()
	}
	m.cond.Signal()
	return true
}

func (m *mailbox) loop() {
	defer close(m.done)
	for {
		m.mu.Lock()
		for len(m.queue) == 0 && !m.closed {
			m.cond.Wait()
		}
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		e := m.queue[0]
		m.queue[0] = Event{}
		m.queue = m.queue[1:]
		m.mu.Unlock()
		m.deliver(e)
	}
}

// close stops accepting events; the dispatcher exits after draining.
func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	if !m.started {
		m.started = true
		close(m.done)
		return
	}
	m.cond.Broadcast()
}
