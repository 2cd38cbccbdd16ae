package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/chatroom/pkg/chat"
	"github.com/go-go-golems/chatroom/pkg/chattest"
)

func TestManager_SwitchClosesPreviousRoom(t *testing.T) {
	srv := chattest.NewServer(nil)
	defer srv.Close()
	srv.Seed("general", chat.Message{Author: "A", Body: "in general"})
	srv.Seed("random", chat.Message{Author: "B", Body: "in random"})

	m := NewManager(func(room chat.Room) *Session { return newTestSession(srv, room) })
	rec := &recorder{}
	m.Subscribe(rec.listen)
	creds := chat.Credentials{Username: "me", Token: "tok"}
	ctx := context.Background()

	first, err := m.Join(ctx, general, creds)
	require.NoError(t, err)
	waitConns(t, srv, "general", 1)

	second, err := m.Join(ctx, chat.Room{ID: "random"}, creds)
	require.NoError(t, err)
	require.Equal(t, Closed, first.State())
	require.Same(t, second, m.Current())
	waitConns(t, srv, "general", 0)
	waitConns(t, srv, "random", 1)

	// traffic for the old room never reaches the new session
	srv.Broadcast("general", chat.Message{Author: "X", Body: "stale"})
	srv.Broadcast("random", chat.Message{Author: "Y", Body: "fresh"})
	require.Eventually(t, func() bool { return len(second.Snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"B:in random", "Y:fresh"}, bodies(second.Snapshot()))
	require.Equal(t, []string{"A:in general"}, bodies(first.Snapshot()))

	for _, e := range rec.ofType(EventMessageReceived) {
		require.Equal(t, "random", e.Room.ID)
	}

	// the first session's events all precede the second session's
	var seen []string
	for _, e := range rec.all() {
		if len(seen) == 0 || seen[len(seen)-1] != e.SessionID {
			seen = append(seen, e.SessionID)
		}
	}
	require.Equal(t, []string{first.ID(), second.ID()}, seen)

	require.NoError(t, m.Close())
	require.Nil(t, m.Current())
	waitConns(t, srv, "random", 0)
}

func TestManager_FailedJoinIsReturned(t *testing.T) {
	srv := chattest.NewServer(nil)
	defer srv.Close()

	m := NewManager(func(room chat.Room) *Session { return newTestSession(srv, room) })
	sess, err := m.Join(context.Background(), general, chat.Credentials{})
	require.ErrorIs(t, err, chat.ErrUnauthenticated)
	require.NotNil(t, sess)
	require.Equal(t, Failed, sess.State())
	require.NoError(t, m.Close())
}

func TestManager_ConcurrentJoinsLeaveOneLiveStream(t *testing.T) {
	srv := chattest.NewServer(nil)
	defer srv.Close()

	m := NewManager(func(room chat.Room) *Session { return newTestSession(srv, room) })
	creds := chat.Credentials{Token: "tok"}

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = m.Join(context.Background(), chat.Room{ID: id}, creds)
		}(id)
	}
	wg.Wait()

	cur := m.Current()
	require.NotNil(t, cur)
	require.Equal(t, Live, cur.State())
	require.Eventually(t, func() bool {
		total := 0
		for _, id := range []string{"a", "b", "c", "d"} {
			total += srv.Conns(id)
		}
		return total == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, m.Close())
}
