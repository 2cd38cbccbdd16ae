package cmds

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/chatroom/pkg/chat"
	"github.com/go-go-golems/chatroom/pkg/relay"
	"github.com/go-go-golems/chatroom/pkg/session"
)

// formatMessage renders one message as a plain text line.
func formatMessage(m chat.Message) string {
	switch m.Kind {
	case chat.KindError:
		return "! " + m.Body
	case chat.KindSystem:
		return "* " + m.Body
	}
	return m.Author + ": " + m.Body
}

// eventWriter prints session events as text or JSON lines.
type eventWriter struct {
	w      io.Writer
	asJSON bool
}

func (ew eventWriter) write(e session.Event) error {
	if ew.asJSON {
		b, err := json.Marshal(relay.EnvelopeFromEvent(e))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(ew.w, string(b))
		return err
	}
	var err error
	switch e.Type {
	case session.EventHistoryLoaded:
		for _, m := range e.Messages {
			if _, err = fmt.Fprintln(ew.w, formatMessage(m)); err != nil {
				return err
			}
		}
	case session.EventMessageReceived:
		_, err = fmt.Fprintln(ew.w, formatMessage(e.Message))
	case session.EventStateChanged:
		_, err = fmt.Fprintf(ew.w, "-- %s: %s\n", e.Room, e.State)
	case session.EventError:
		_, err = fmt.Fprintf(ew.w, "-- error (%s): %v\n", chat.Reason(e.Err), e.Err)
	}
	return err
}

// pump writes events of sess to ew until the session is done or ctx ends.
func pump(ctx context.Context, sess *session.Session, events <-chan session.Event, ew eventWriter) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			if err := ew.write(e); err != nil {
				return err
			}
		case <-sess.Done():
			// flush what was delivered before the session ended
			for {
				select {
				case e := <-events:
					if err := ew.write(e); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		}
	}
}

// runLines joins room, prints its events and sends every line read from in.
// Once in is exhausted it keeps printing for linger, then closes the session.
func runLines(ctx context.Context, sess *session.Session, creds chat.Credentials, in io.Reader, out io.Writer, linger time.Duration) error {
	events, sub := sess.SubscribeChan(64)
	defer sub.Cancel()

	if err := sess.Join(ctx, creds); err != nil {
		_ = pump(ctx, sess, events, eventWriter{w: out})
		return errors.Wrapf(err, "join %s", sess.Room())
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return pump(gctx, sess, events, eventWriter{w: out})
	})
	g.Go(func() error {
		defer func() { _ = sess.Close() }()
		lines := make(chan string)
		go func() {
			defer close(lines)
			sc := bufio.NewScanner(in)
			for sc.Scan() {
				select {
				case lines <- sc.Text():
				case <-gctx.Done():
					return
				}
			}
		}()
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					select {
					case <-time.After(linger):
					case <-gctx.Done():
					}
					return nil
				}
				if strings.TrimSpace(line) == "" {
					continue
				}
				if err := sess.Send(gctx, line); err != nil {
					log.Warn().Err(err).Str("reason", chat.Reason(err)).Msg("send failed")
					if errors.Is(err, chat.ErrNotConnected) {
						return nil
					}
				}
			}
		}
	})
	return g.Wait()
}
