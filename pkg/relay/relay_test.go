package relay

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/chatroom/pkg/chat"
	"github.com/go-go-golems/chatroom/pkg/chattest"
	"github.com/go-go-golems/chatroom/pkg/history"
	"github.com/go-go-golems/chatroom/pkg/session"
	"github.com/go-go-golems/chatroom/pkg/stream"
)

func memoryRelay(t *testing.T) *Relay {
	t.Helper()
	s := DefaultSettings()
	s.Enabled = true
	r, err := Build(s, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func next(t *testing.T, ch <-chan Envelope) Envelope {
	t.Helper()
	select {
	case env, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no envelope")
		return Envelope{}
	}
}

func TestSettings_Validate(t *testing.T) {
	require.NoError(t, DefaultSettings().Validate())

	s := DefaultSettings()
	s.Backend = "kafka"
	require.Error(t, s.Validate())

	s = DefaultSettings()
	s.Backend = string(BackendRedis)
	require.NoError(t, s.Validate())
	s.Addr = ""
	require.Error(t, s.Validate())
}

func TestRelay_Topic(t *testing.T) {
	r := memoryRelay(t)
	require.Equal(t, "chatroom.general", r.Topic("general"))
}

func TestRelay_AttachedSessionIsWatchable(t *testing.T) {
	srv := chattest.NewServer(nil)
	defer srv.Close()
	srv.Seed("general", chat.Message{Author: "A", Body: "hi"})

	r := memoryRelay(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	envs, err := r.Watch(ctx, "general")
	require.NoError(t, err)

	sess := session.New(chat.Room{ID: "general"},
		session.WithFetcher(history.NewFetcher(srv.URL)),
		session.WithDialer(stream.NewDialer(srv.WSBase(), true)),
	)
	sub := r.Attach(sess)
	defer sub.Cancel()

	require.NoError(t, sess.Join(ctx, chat.Credentials{Token: "tok"}))
	require.Eventually(t, func() bool { return srv.Conns("general") == 1 }, 2*time.Second, 10*time.Millisecond)
	srv.Broadcast("general", chat.Message{Author: "B", Body: "yo"})

	env := next(t, envs)
	require.Equal(t, string(session.EventStateChanged), env.Type)
	require.Equal(t, "fetching_history", env.State)
	require.Equal(t, sess.ID(), env.SessionID)

	env = next(t, envs)
	require.Equal(t, string(session.EventHistoryLoaded), env.Type)
	require.Len(t, env.Messages, 1)
	require.Equal(t, "hi", env.Messages[0].Body)

	require.Equal(t, "connecting", next(t, envs).State)
	require.Equal(t, "live", next(t, envs).State)

	env = next(t, envs)
	require.Equal(t, string(session.EventMessageReceived), env.Type)
	require.NotNil(t, env.Message)
	require.Equal(t, "B", env.Message.Author)
	require.Equal(t, "general", env.Room.ID)

	require.NoError(t, sess.Close())
	require.Equal(t, "closed", next(t, envs).State)
}

func TestRelay_ErrorEnvelopeCarriesReason(t *testing.T) {
	env := EnvelopeFromEvent(session.Event{
		Type: session.EventError,
		Room: chat.Room{ID: "general"},
		Err:  chat.ErrMalformed,
	})
	require.Equal(t, "malformed", env.Reason)
	require.NotEmpty(t, env.Error)
	require.Nil(t, env.Message)
}

func TestRelay_WatchSkipsUndecodable(t *testing.T) {
	r := memoryRelay(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	envs, err := r.Watch(ctx, "general")
	require.NoError(t, err)

	require.NoError(t, r.Publisher.Publish(r.Topic("general"), message.NewMessage(uuid.NewString(), []byte("not json"))))
	require.NoError(t, r.Publish(session.Event{
		Type:  session.EventStateChanged,
		Room:  chat.Room{ID: "general"},
		State: session.Live,
	}))

	env := next(t, envs)
	require.Equal(t, "live", env.State)
}

func TestRelay_WatchEndsWithContext(t *testing.T) {
	r := memoryRelay(t)
	ctx, cancel := context.WithCancel(context.Background())
	envs, err := r.Watch(ctx, "general")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-envs:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not end")
	}
}
