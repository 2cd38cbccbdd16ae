package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/chatroom/pkg/chat"
)

// fakeStream replays scripted payloads, then ends with end.
type fakeStream struct {
	payloads chan []byte
	end      error

	mu      sync.Mutex
	written []any
	closed  chan struct{}
	once    sync.Once
}

func newFakeStream(end error, payloads ...string) *fakeStream {
	f := &fakeStream{payloads: make(chan []byte, len(payloads)), end: end, closed: make(chan struct{})}
	for _, p := range payloads {
		f.payloads <- []byte(p)
	}
	close(f.payloads)
	return f
}

func (f *fakeStream) ReadPayload() ([]byte, error) {
	if p, ok := <-f.payloads; ok {
		return p, nil
	}
	if f.end != nil {
		return nil, f.end
	}
	<-f.closed
	return nil, errors.New("closed")
}

func (f *fakeStream) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, v)
	return nil
}

func (f *fakeStream) KeepAlive(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (f *fakeStream) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

type staticFetcher []chat.Message

func (s staticFetcher) Fetch(context.Context, chat.Room, chat.Credentials) ([]chat.Message, error) {
	return s, nil
}

func TestRun_AbnormalEndReportsNetworkError(t *testing.T) {
	fs := newFakeStream(errors.New("connection reset"), `{"message":"last words","username":"A"}`)
	sess := New(general,
		WithFetcher(staticFetcher{}),
		WithStreamDialer(StreamDialerFunc(func(context.Context, chat.Room, chat.Credentials) (Stream, error) {
			return fs, nil
		})),
	)
	rec := &recorder{}
	sess.Subscribe(rec.listen)

	require.NoError(t, sess.Join(context.Background(), chat.Credentials{Token: "tok"}))
	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}

	require.Equal(t, Closed, sess.State())
	require.ErrorIs(t, sess.Err(), chat.ErrNetwork)
	require.Equal(t, []string{"A:last words"}, bodies(sess.Snapshot()))
	errs := rec.ofType(EventError)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0].Err, chat.ErrNetwork)
	require.Equal(t, []State{FetchingHistory, Connecting, Live, Closed}, rec.states())
}

func TestSend_WritesOutboundFrame(t *testing.T) {
	fs := newFakeStream(nil)
	sess := New(general,
		WithFetcher(staticFetcher{{Author: "A", Body: "hi"}}),
		WithStreamDialer(StreamDialerFunc(func(context.Context, chat.Room, chat.Credentials) (Stream, error) {
			return fs, nil
		})),
	)
	require.NoError(t, sess.Join(context.Background(), chat.Credentials{Token: "tok"}))
	require.NoError(t, sess.Send(context.Background(), "hello"))
	require.NoError(t, sess.Close())

	require.Equal(t, []any{chat.OutboundPayload{Message: "hello"}}, fs.written)
	require.Len(t, sess.Snapshot(), 1)
}

func TestJoin_ContextCancelledDuringDialFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sess := New(general,
		WithFetcher(staticFetcher{}),
		WithStreamDialer(StreamDialerFunc(func(ctx context.Context, _ chat.Room, _ chat.Credentials) (Stream, error) {
			cancel()
			<-ctx.Done()
			return nil, chat.ErrNetwork
		})),
	)
	err := sess.Join(ctx, chat.Credentials{Token: "tok"})
	require.ErrorIs(t, err, chat.ErrNetwork)
	require.Equal(t, Failed, sess.State())
}

func TestCloseDuringFetchDiscardsResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var sess *Session
	sess = New(general,
		WithFetcher(fetcherFunc(func(ctx context.Context) ([]chat.Message, error) {
			close(started)
			<-release
			return []chat.Message{{Author: "A", Body: "late history"}}, nil
		})),
		WithStreamDialer(StreamDialerFunc(func(context.Context, chat.Room, chat.Credentials) (Stream, error) {
			t.Error("dial after close")
			return nil, chat.ErrNetwork
		})),
	)

	errc := make(chan error, 1)
	go func() { errc <- sess.Join(context.Background(), chat.Credentials{Token: "tok"}) }()
	<-started
	require.NoError(t, sess.Close())
	close(release)

	require.ErrorIs(t, <-errc, chat.ErrSessionClosed)
	require.Empty(t, sess.Snapshot())
	require.Equal(t, Closed, sess.State())
}

type fetcherFunc func(ctx context.Context) ([]chat.Message, error)

func (f fetcherFunc) Fetch(ctx context.Context, _ chat.Room, _ chat.Credentials) ([]chat.Message, error) {
	return f(ctx)
}
