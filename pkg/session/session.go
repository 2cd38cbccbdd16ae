package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/chatroom/pkg/chat"
	"github.com/go-go-golems/chatroom/pkg/stream"
)

// Session owns one room membership: its state, its stream and its message buffer.
type Session struct {
	id       string
	room     chat.Room
	fetcher  HistoryFetcher
	dialer   StreamDialer
	sender   Sender
	capacity int
	buffer   *chat.MessageBuffer
	logger   zerolog.Logger

	listeners listenerSet
	box       *mailbox

	mu    sync.Mutex
	state State
	err   error
	creds chat.Credentials
	// gen changes on teardown so work started for an older connection is discarded.
	gen    uint64
	conn   Stream
	cancel context.CancelFunc
	// seeded holds history messages with a creation stamp, matched against the first
	// stream frames to drop duplicates across the handoff.
	seeded   []chat.Message
	loopDone chan struct{}
}

func New(room chat.Room, opts ...Option) *Session {
	s := &Session{
		room:   room,
		state:  Idle,
		logger: log.Logger,
	}
	for _, o := range opts {
		o(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	s.logger = s.logger.With().
		Str("component", "session").
		Str("session_id", s.id).
		Str("room_id", room.ID).
		Logger()
	s.buffer = chat.NewMessageBuffer(s.capacity)
	s.box = newMailbox(s.deliver)
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Room() chat.Room { return s.room }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns why the session failed, or why a live stream ended abnormally.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Snapshot returns the buffered messages, oldest-first.
func (s *Session) Snapshot() []chat.Message {
	return s.buffer.Snapshot()
}

func (s *Session) Capacity() int {
	return s.buffer.Cap()
}

// Done is closed once the session is terminal and every event has been delivered.
func (s *Session) Done() <-chan struct{} {
	return s.box.done
}

// Subscribe registers fn for subsequent events.
func (s *Session) Subscribe(fn Listener) Subscription {
	id := s.listeners.add(fn)
	return &subscription{cancel: func() { s.listeners.remove(id) }}
}

// SubscribeChan delivers events on a channel. Delivery blocks the dispatcher (never
// the stream reader) until the consumer reads or cancels.
func (s *Session) SubscribeChan(size int) (<-chan Event, Subscription) {
	ch := make(chan Event, size)
	stop := make(chan struct{})
	id := s.listeners.add(func(e Event) {
		select {
		case ch <- e:
		case <-stop:
		}
	})
	return ch, &subscription{cancel: func() {
		s.listeners.remove(id)
		close(stop)
	}}
}

func (s *Session) deliver(e Event) {
	for _, l := range s.listeners.snapshot() {
		l.fn(e)
	}
}

// pushLocked queues e for the dispatcher; holding s.mu keeps queue order equal to
// transition order.
func (s *Session) pushLocked(e Event) {
	e.SessionID = s.id
	e.Room = s.room
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if e.Type == EventStateChanged {
		e.State = s.state
	}
	s.box.push(e)
}

func (s *Session) setStateLocked(st State) {
	prev := s.state
	s.state = st
	s.logger.Debug().Str("from", prev.String()).Str("to", st.String()).Msg("state changed")
	s.pushLocked(Event{Type: EventStateChanged, Err: s.err})
}

// transition moves from -> to for generation gen, reporting false if the session was
// torn down meanwhile.
func (s *Session) transition(gen uint64, from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != from {
		return false
	}
	s.setStateLocked(to)
	return true
}

// fail moves the session to Failed with err unless it was torn down meanwhile.
func (s *Session) fail(gen uint64, err error) bool {
	s.mu.Lock()
	if s.gen != gen || s.state.Terminal() {
		s.mu.Unlock()
		return false
	}
	s.gen++
	s.err = err
	cancel := s.cancel
	s.cancel = nil
	if !errors.Is(err, chat.ErrUnauthenticated) {
		s.pushLocked(Event{Type: EventError, Err: err})
	}
	s.setStateLocked(Failed)
	s.box.close()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return true
}

// Join backfills history then opens the stream. It returns once the session is Live
// or has failed. The stream outlives ctx; only Close ends it.
func (s *Session) Join(ctx context.Context, creds chat.Credentials) error {
	s.mu.Lock()
	if s.state != Idle {
		st := s.state
		s.mu.Unlock()
		if st.Terminal() {
			return errors.Wrapf(chat.ErrSessionClosed, "join in state %s", st)
		}
		return errors.Errorf("session already joining (state %s)", st)
	}
	s.creds = creds
	gen := s.gen
	joinCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	if !creds.Valid() {
		// without a token there is nothing to join; stay quiet
		s.logger.Debug().Msg("no bearer token, not joining")
		s.fail(gen, chat.ErrUnauthenticated)
		return chat.ErrUnauthenticated
	}

	if !s.transition(gen, Idle, FetchingHistory) {
		return chat.ErrSessionClosed
	}
	if s.fetcher == nil {
		err := errors.New("session has no history fetcher")
		s.fail(gen, err)
		return err
	}
	history, err := s.fetcher.Fetch(joinCtx, s.room, creds)
	if err != nil {
		if !s.fail(gen, err) {
			return chat.ErrSessionClosed
		}
		s.logger.Warn().Err(err).Str("reason", chat.Reason(err)).Msg("history fetch failed")
		return err
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return chat.ErrSessionClosed
	}
	stored := s.buffer.InsertAll(history)
	for _, m := range history {
		if m.Created != "" {
			s.seeded = append(s.seeded, m)
		}
	}
	s.pushLocked(Event{Type: EventHistoryLoaded, Messages: stored})
	s.setStateLocked(Connecting)
	s.mu.Unlock()
	s.logger.Info().Int("history", len(stored)).Msg("history loaded")

	if s.dialer == nil {
		err := errors.New("session has no stream dialer")
		s.fail(gen, err)
		return err
	}
	conn, err := s.dialer.Dial(joinCtx, s.room, creds)
	if err != nil {
		if !s.fail(gen, err) {
			return chat.ErrSessionClosed
		}
		s.logger.Warn().Err(err).Str("reason", chat.Reason(err)).Msg("stream open failed")
		return err
	}

	s.mu.Lock()
	if s.gen != gen || s.state != Connecting {
		s.mu.Unlock()
		_ = conn.Close()
		return chat.ErrSessionClosed
	}
	runCtx, runCancel := context.WithCancel(context.WithoutCancel(ctx))
	s.conn = conn
	s.cancel = runCancel
	s.loopDone = make(chan struct{})
	s.setStateLocked(Live)
	loopDone := s.loopDone
	s.mu.Unlock()

	s.logger.Info().Msg("live")
	go s.run(runCtx, gen, conn, loopDone)
	return nil
}

// run reads payloads in transport order and keeps the connection alive until the
// stream ends or the session is torn down.
func (s *Session) run(ctx context.Context, gen uint64, conn Stream, done chan struct{}) {
	defer close(done)

	var readErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return conn.KeepAlive(gctx)
	})
	g.Go(func() error {
		for {
			payload, err := conn.ReadPayload()
			if err != nil {
				readErr = err
				return err
			}
			s.handlePayload(gen, payload)
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		// unblocks the reader
		_ = conn.Close()
		return nil
	})
	_ = g.Wait()

	s.mu.Lock()
	if s.gen != gen || s.state != Live {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.conn = nil
	s.cancel = nil
	if readErr != nil && !stream.IsNormalClose(readErr) {
		s.err = errors.Wrapf(chat.ErrNetwork, "stream: %v", readErr)
		s.pushLocked(Event{Type: EventError, Err: s.err})
		s.logger.Warn().Err(readErr).Msg("stream ended abnormally")
	} else {
		s.logger.Info().Msg("stream closed by remote")
	}
	s.setStateLocked(Closed)
	s.box.close()
	s.mu.Unlock()
}

func (s *Session) handlePayload(gen uint64, payload []byte) {
	frames := chat.DecodeFrames(payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != Live {
		return
	}
	for _, f := range frames {
		if f.Err != nil {
			s.logger.Warn().Err(f.Err).Int("frame", f.Index).Msg("dropping malformed frame")
			s.pushLocked(Event{Type: EventError, Err: f.Err})
			continue
		}
		if s.isHandoffDuplicateLocked(f.Message) {
			s.logger.Debug().Str("author", f.Message.Author).Msg("dropping message already loaded from history")
			continue
		}
		stored, evicted := s.buffer.Insert(f.Message)
		if evicted > 0 {
			s.logger.Trace().Int("evicted", evicted).Msg("buffer at capacity")
		}
		s.pushLocked(Event{Type: EventMessageReceived, Message: stored})
	}
}

func (s *Session) isHandoffDuplicateLocked(m chat.Message) bool {
	if m.Created == "" || len(s.seeded) == 0 {
		return false
	}
	for i, h := range s.seeded {
		if h.SameContent(m) {
			s.seeded = append(s.seeded[:i:i], s.seeded[i+1:]...)
			return true
		}
	}
	return false
}

// Send transmits body without waiting for acknowledgment. Nothing is inserted locally;
// the message shows up once the server echoes it on the stream.
func (s *Session) Send(ctx context.Context, body string) error {
	if strings.TrimSpace(body) == "" {
		return chat.ErrEmptyMessage
	}
	s.mu.Lock()
	state, conn, creds := s.state, s.conn, s.creds
	s.mu.Unlock()
	if state != Live || conn == nil {
		return errors.Wrapf(chat.ErrNotConnected, "session is %s", state)
	}
	if s.sender != nil {
		return s.sender.Post(ctx, s.room, creds, body)
	}
	return conn.WriteJSON(chat.OutboundPayload{Message: body})
}

// Close tears the session down. It is idempotent and safe from listeners.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	conn, cancel, loopDone := s.conn, s.cancel, s.loopDone
	s.conn = nil
	s.cancel = nil
	s.setStateLocked(Closed)
	s.box.close()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if conn != nil {
		err = conn.Close()
	}
	if loopDone != nil {
		<-loopDone
	}
	s.logger.Info().Msg("session closed")
	return err
}
