package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatroom/pkg/chat"
)

// Order is the server's contract for the ordering of the history response.
type Order string

const (
	// NewestFirst is the default contract: the fetcher reverses the response.
	NewestFirst Order = "newest-first"
	OldestFirst Order = "oldest-first"
)

func ParseOrder(s string) (Order, error) {
	switch Order(strings.TrimSpace(strings.ToLower(s))) {
	case "", NewestFirst:
		return NewestFirst, nil
	case OldestFirst:
		return OldestFirst, nil
	}
	return "", errors.Errorf("unknown history order %q (want %s or %s)", s, NewestFirst, OldestFirst)
}

const DefaultTimeout = 15 * time.Second

// maxErrorBody bounds how much of a failed response is read for diagnostics.
const maxErrorBody = 4 << 10

type Fetcher struct {
	BaseURL    string
	HTTPClient *http.Client
	Order      Order
	Logger     zerolog.Logger
}

type FetcherOption func(*Fetcher)

func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.HTTPClient = c }
}

func WithOrder(o Order) FetcherOption {
	return func(f *Fetcher) { f.Order = o }
}

func WithLogger(l zerolog.Logger) FetcherOption {
	return func(f *Fetcher) { f.Logger = l }
}

func NewFetcher(baseURL string, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		Order:      NewestFirst,
		Logger:     log.With().Str("component", "history").Logger(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch issues one authenticated read of the room's recent messages and returns them
// oldest-first. It never retries.
func (f *Fetcher) Fetch(ctx context.Context, room chat.Room, creds chat.Credentials) ([]chat.Message, error) {
	if !creds.Valid() {
		return nil, chat.ErrUnauthenticated
	}
	if strings.TrimSpace(room.ID) == "" {
		return nil, chat.ErrRoomRequired
	}

	endpoint := fmt.Sprintf("%s/api/rooms/%s/messages", f.BaseURL, url.PathEscape(room.ID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrapf(chat.ErrNetwork, "build history request: %v", err)
	}
	setHeaders(req, creds)

	logger := f.Logger.With().Str("room_id", room.ID).Logger()
	logger.Debug().Str("url", endpoint).Msg("fetching history")

	resp, err := f.client().Do(req)
	if err != nil {
		return nil, errors.Wrapf(chat.ErrNetwork, "history request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp, "history"); err != nil {
		logger.Warn().Int("status", resp.StatusCode).Err(err).Msg("history request rejected")
		return nil, err
	}

	var payload chat.HistoryPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrapf(chat.ErrMalformed, "decode history: %v", err)
	}

	msgs := Normalize(payload.Messages, f.Order)
	logger.Debug().Int("count", len(msgs)).Str("order", string(f.Order)).Msg("history fetched")
	return msgs, nil
}

// Normalize returns msgs oldest-first given the server's ordering contract.
// The input slice is left untouched and nil normalizes to an empty slice.
func Normalize(msgs []chat.Message, order Order) []chat.Message {
	out := make([]chat.Message, len(msgs))
	copy(out, msgs)
	if order != OldestFirst {
		slices.Reverse(out)
	}
	return out
}

func (f *Fetcher) client() *http.Client {
	if f.HTTPClient != nil {
		return f.HTTPClient
	}
	return http.DefaultClient
}

func setHeaders(req *http.Request, creds chat.Credentials) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.Token)
}

// checkStatus maps a non-2xx response onto the error taxonomy.
func checkStatus(resp *http.Response, what string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	detail := serverError(resp.Body)
	base := chat.ErrNetwork
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		base = chat.ErrUnauthorized
	}
	if detail != "" {
		return errors.Wrapf(base, "%s: status %d: %s", what, resp.StatusCode, detail)
	}
	return errors.Wrapf(base, "%s: status %d", what, resp.StatusCode)
}

func serverError(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var env struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &env) == nil && env.Error != "" {
		return env.Error
	}
	return strings.TrimSpace(string(raw))
}
