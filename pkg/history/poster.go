package history

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatroom/pkg/chat"
)

// Poster sends messages through the REST endpoint instead of the stream.
// The response body is not interpreted beyond success or failure.
type Poster struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

func NewPoster(baseURL string, client *http.Client) *Poster {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Poster{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: client,
		Logger:     log.With().Str("component", "history").Str("role", "poster").Logger(),
	}
}

func (p *Poster) Post(ctx context.Context, room chat.Room, creds chat.Credentials, body string) error {
	if !creds.Valid() {
		return chat.ErrUnauthenticated
	}
	payload, err := json.Marshal(chat.PostPayload{
		Message:  body,
		Type:     chat.KindUser,
		Username: creds.Username,
		RoomID:   room.ID,
	})
	if err != nil {
		return errors.Wrap(err, "encode send payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/api/messages", bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(chat.ErrNetwork, "build send request: %v", err)
	}
	setHeaders(req, creds)

	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(chat.ErrNetwork, "send request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp, "send"); err != nil {
		p.Logger.Warn().Str("room_id", room.ID).Int("status", resp.StatusCode).Err(err).Msg("send rejected")
		return err
	}
	return nil
}
