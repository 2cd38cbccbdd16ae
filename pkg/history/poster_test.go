package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/chatroom/pkg/chat"
	"github.com/go-go-golems/chatroom/pkg/chattest"
)

func TestPoster_SendsUserPayloadWithBearer(t *testing.T) {
	srv := chattest.NewServer(map[string]string{"tok": "alice"})
	defer srv.Close()

	p := NewPoster(srv.URL, nil)
	err := p.Post(context.Background(), general, chat.Credentials{Username: "alice", Token: "tok"}, "hello")
	require.NoError(t, err)

	posted := srv.Posted()
	require.Len(t, posted, 1)
	require.Equal(t, chat.PostPayload{Message: "hello", Type: chat.KindUser, Username: "alice", RoomID: "general"}, posted[0])
}

func TestPoster_Errors(t *testing.T) {
	srv := chattest.NewServer(map[string]string{"tok": "alice"})
	defer srv.Close()
	p := NewPoster(srv.URL, nil)
	ctx := context.Background()

	require.ErrorIs(t, p.Post(ctx, general, chat.Credentials{}, "x"), chat.ErrUnauthenticated)
	require.ErrorIs(t, p.Post(ctx, general, chat.Credentials{Token: "nope"}, "x"), chat.ErrUnauthorized)
	require.ErrorIs(t, p.Post(ctx, general, chat.Credentials{Token: "tok"}, " "), chat.ErrNetwork)
}
