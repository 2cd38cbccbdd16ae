package chat

import "sync"

// DefaultCapacity matches the number of messages the server returns for a history fetch.
const DefaultCapacity = 50

// MessageBuffer is an oldest-first, capacity-bounded message window.
// When an insert overflows the capacity the oldest message is evicted.
type MessageBuffer struct {
	mu      sync.RWMutex
	max     int
	nextSeq uint64
	msgs    []Message
}

func NewMessageBuffer(capacity int) *MessageBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MessageBuffer{max: capacity, msgs: make([]Message, 0, capacity)}
}

// Insert appends m, assigning its Seq, and returns the stored copy plus the number of
// evicted messages (0 or 1).
func (b *MessageBuffer) Insert(m Message) (Message, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	m.Seq = b.nextSeq
	b.msgs = append(b.msgs, m)

	evicted := 0
	if len(b.msgs) > b.max {
		evicted = len(b.msgs) - b.max
		// shift in place so the backing array does not grow without bound
		n := copy(b.msgs, b.msgs[evicted:])
		clear(b.msgs[n:])
		b.msgs = b.msgs[:n]
	}
	return m, evicted
}

// InsertAll bounded-inserts msgs in order and returns the stored copies.
func (b *MessageBuffer) InsertAll(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		stored, _ := b.Insert(m)
		out = append(out, stored)
	}
	return out
}

func (b *MessageBuffer) Snapshot() []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Message, len(b.msgs))
	copy(out, b.msgs)
	return out
}

func (b *MessageBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.msgs)
}

func (b *MessageBuffer) Cap() int {
	return b.max
}

// Last returns the newest message, if any.
func (b *MessageBuffer) Last() (Message, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.msgs) == 0 {
		return Message{}, false
	}
	return b.msgs[len(b.msgs)-1], true
}

// Reset drops all messages. Sequence numbers keep increasing.
func (b *MessageBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.msgs)
	b.msgs = b.msgs[:0]
}
