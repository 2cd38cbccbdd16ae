package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/chatroom/pkg/chat"
	"github.com/go-go-golems/chatroom/pkg/chattest"
)

var general = chat.Room{ID: "general"}

func TestDialerURL(t *testing.T) {
	d := NewDialer("ws://localhost:8080/api/ws/", true)
	u, err := d.URL(chat.Room{ID: "room 1"}, chat.Credentials{Token: "a+b"})
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:8080/api/ws/room%201?bearer=a%2Bb", u)

	single := NewDialer("ws://localhost:8080/api/ws", false)
	u, err = single.URL(chat.Room{ID: "ignored"}, chat.Credentials{Token: "tok"})
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:8080/api/ws?bearer=tok", u)

	_, err = d.URL(chat.Room{}, chat.Credentials{Token: "tok"})
	require.ErrorIs(t, err, chat.ErrRoomRequired)
}

func TestDial_ReadsAndWritesFrames(t *testing.T) {
	srv := chattest.NewServer(map[string]string{"tok": "alice"})
	defer srv.Close()

	conn, err := NewDialer(srv.WSBase(), true).Dial(context.Background(), general, chat.Credentials{Token: "tok"})
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.Eventually(t, func() bool { return srv.Conns("general") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(chat.OutboundPayload{Message: "hello"}))

	payload, err := conn.ReadPayload()
	require.NoError(t, err)
	msgs, errs := chat.Split(chat.DecodeFrames(payload))
	require.Empty(t, errs)
	require.Len(t, msgs, 1)
	require.Equal(t, "alice", msgs[0].Author)
	require.Equal(t, "hello", msgs[0].Body)
	require.Equal(t, []chat.OutboundPayload{{Message: "hello"}}, srv.Received())
}

func TestDial_RejectedHandshakeIsUnauthorized(t *testing.T) {
	srv := chattest.NewServer(map[string]string{"tok": "alice"})
	defer srv.Close()

	_, err := NewDialer(srv.WSBase(), true).Dial(context.Background(), general, chat.Credentials{Token: "wrong"})
	require.ErrorIs(t, err, chat.ErrUnauthorized)
}

func TestDial_EmptyTokenSkipsNetwork(t *testing.T) {
	srv := chattest.NewServer(nil)
	defer srv.Close()

	_, err := NewDialer(srv.WSBase(), true).Dial(context.Background(), general, chat.Credentials{})
	require.ErrorIs(t, err, chat.ErrUnauthenticated)
	require.Zero(t, srv.StreamHits())
}

func TestDial_UnreachableIsNetworkError(t *testing.T) {
	srv := chattest.NewServer(nil)
	base := srv.WSBase()
	srv.Close()

	_, err := NewDialer(base, true).Dial(context.Background(), general, chat.Credentials{Token: "t"})
	require.ErrorIs(t, err, chat.ErrNetwork)
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	srv := chattest.NewServer(nil)
	defer srv.Close()

	conn, err := NewDialer(srv.WSBase(), true).Dial(context.Background(), general, chat.Credentials{Token: "t"})
	require.NoError(t, err)

	first := conn.Close()
	second := conn.Close()
	require.Equal(t, first, second)
	require.ErrorIs(t, conn.WriteJSON(chat.OutboundPayload{Message: "late"}), chat.ErrNotConnected)

	select {
	case <-conn.Done():
	default:
		t.Fatal("Done should be closed after Close")
	}
}

func TestConn_RemoteCloseIsNormal(t *testing.T) {
	srv := chattest.NewServer(nil)
	defer srv.Close()

	conn, err := NewDialer(srv.WSBase(), true).Dial(context.Background(), general, chat.Credentials{Token: "t"})
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.Eventually(t, func() bool { return srv.Conns("general") == 1 }, 2*time.Second, 10*time.Millisecond)

	srv.DropConns("general")
	_, err = conn.ReadPayload()
	require.Error(t, err)
	require.True(t, IsNormalClose(err), "got %v", err)
}

func TestDialerSettingsDefaults(t *testing.T) {
	d := &Dialer{PongWait: 10 * time.Second, PingPeriod: time.Minute}
	s := d.settings()
	require.Equal(t, 9*time.Second, s.pingPeriod)
	require.Equal(t, DefaultWriteWait, s.writeWait)
	require.Equal(t, int64(DefaultMaxMessageSize), s.maxMessageSize)
}
