package history

import (
	"context"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/chatroom/pkg/chat"
	"github.com/go-go-golems/chatroom/pkg/chattest"
)

var general = chat.Room{ID: "general", Name: "General"}

func TestFetch_ReversesNewestFirstResponse(t *testing.T) {
	srv := chattest.NewServer(nil)
	defer srv.Close()
	srv.Seed("general",
		chat.Message{Author: "A", Body: "hi"},
		chat.Message{Author: "B", Body: "yo"},
	)

	f := NewFetcher(srv.URL)
	msgs, err := f.Fetch(context.Background(), general, chat.Credentials{Username: "u", Token: "t"})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "A", msgs[0].Author)
	require.Equal(t, "hi", msgs[0].Body)
	require.Equal(t, "B", msgs[1].Author)
	require.Equal(t, "yo", msgs[1].Body)
}

func TestFetch_OldestFirstContractPassesThrough(t *testing.T) {
	srv := chattest.NewServer(nil)
	defer srv.Close()
	srv.NewestFirst = false
	srv.Seed("general",
		chat.Message{Author: "A", Body: "hi"},
		chat.Message{Author: "B", Body: "yo"},
	)

	f := NewFetcher(srv.URL, WithOrder(OldestFirst))
	msgs, err := f.Fetch(context.Background(), general, chat.Credentials{Token: "t"})
	require.NoError(t, err)
	require.Equal(t, "hi", msgs[0].Body)
	require.Equal(t, "yo", msgs[1].Body)
}

func TestFetch_AbsentMessagesIsEmpty(t *testing.T) {
	srv := chattest.NewServer(nil)
	defer srv.Close()

	msgs, err := NewFetcher(srv.URL).Fetch(context.Background(), general, chat.Credentials{Token: "t"})
	require.NoError(t, err)
	require.NotNil(t, msgs)
	require.Empty(t, msgs)

	srv.HistoryBody = `{"messages":null}`
	msgs, err = NewFetcher(srv.URL).Fetch(context.Background(), general, chat.Credentials{Token: "t"})
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestFetch_EmptyTokenNeverHitsNetwork(t *testing.T) {
	srv := chattest.NewServer(nil)
	defer srv.Close()

	_, err := NewFetcher(srv.URL).Fetch(context.Background(), general, chat.Credentials{Username: "u"})
	require.ErrorIs(t, err, chat.ErrUnauthenticated)
	require.Zero(t, srv.HistoryHits())
}

func TestFetch_ErrorTaxonomy(t *testing.T) {
	srv := chattest.NewServer(map[string]string{"good": "alice"})
	defer srv.Close()
	ctx := context.Background()

	_, err := NewFetcher(srv.URL).Fetch(ctx, general, chat.Credentials{Token: "bad"})
	require.ErrorIs(t, err, chat.ErrUnauthorized)
	require.Contains(t, err.Error(), "invalid token")

	srv.HistoryStatus = http.StatusInternalServerError
	_, err = NewFetcher(srv.URL).Fetch(ctx, general, chat.Credentials{Token: "good"})
	require.ErrorIs(t, err, chat.ErrNetwork)
	srv.HistoryStatus = 0

	srv.HistoryBody = `{"messages": [oops`
	_, err = NewFetcher(srv.URL).Fetch(ctx, general, chat.Credentials{Token: "good"})
	require.ErrorIs(t, err, chat.ErrMalformed)

	_, err = NewFetcher(srv.URL).Fetch(ctx, chat.Room{}, chat.Credentials{Token: "good"})
	require.ErrorIs(t, err, chat.ErrRoomRequired)
}

func TestFetch_TransportFailureIsNetworkError(t *testing.T) {
	srv := chattest.NewServer(nil)
	url := srv.URL
	srv.Close()

	_, err := NewFetcher(url).Fetch(context.Background(), general, chat.Credentials{Token: "t"})
	require.True(t, errors.Is(err, chat.ErrNetwork), "got %v", err)
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := []chat.Message{{Body: "2"}, {Body: "1"}}
	out := Normalize(in, NewestFirst)
	require.Equal(t, "1", out[0].Body)
	require.Equal(t, "2", in[0].Body)

	require.NotNil(t, Normalize(nil, NewestFirst))
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("")
	require.NoError(t, err)
	require.Equal(t, NewestFirst, o)

	o, err = ParseOrder("Oldest-First")
	require.NoError(t, err)
	require.Equal(t, OldestFirst, o)

	_, err = ParseOrder("sideways")
	require.Error(t, err)
}
