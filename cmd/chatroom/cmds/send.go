package cmds

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatroom/pkg/chat"
	"github.com/go-go-golems/chatroom/pkg/config"
	"github.com/go-go-golems/chatroom/pkg/history"
	"github.com/go-go-golems/chatroom/pkg/session"
)

type SendCommand struct {
	*cmds.CommandDescription
}

var _ cmds.WriterCommand = &SendCommand{}

type SendSettings struct {
	Message     []string `glazed:"message"`
	Wait        string   `glazed:"wait"`
	PromptToken bool     `glazed:"prompt-token"`
}

func NewSendCommand() (*SendCommand, error) {
	sections, err := connectionSections()
	if err != nil {
		return nil, err
	}
	return &SendCommand{
		CommandDescription: cmds.NewCommandDescription(
			"send",
			cmds.WithShort("Send one message to a room"),
			cmds.WithLong(`Send one message. With --send-mode rest the message is posted to
/api/messages; with ws the room is joined and the message written on the stream.
Either way the command waits up to --wait for the server to echo it back.`),
			cmds.WithFlags(
				fields.New(
					"wait",
					fields.TypeString,
					fields.WithDefault("5s"),
					fields.WithHelp("How long to wait for the echo (0 to not wait)"),
				),
				fields.New(
					"prompt-token",
					fields.TypeBool,
					fields.WithDefault(false),
					fields.WithHelp("Ask for the token when none is configured"),
				),
			),
			cmds.WithArguments(
				fields.New(
					"message",
					fields.TypeStringList,
					fields.WithHelp("Message text (joined with spaces)"),
				),
			),
			cmds.WithSections(sections...),
		),
	}, nil
}

func (c *SendCommand) RunIntoWriter(ctx context.Context, parsed *values.Values, w io.Writer) error {
	s := &SendSettings{}
	if err := parsed.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	wait, err := time.ParseDuration(s.Wait)
	if err != nil {
		return errors.Wrapf(err, "parse --wait %q", s.Wait)
	}
	body := strings.Join(s.Message, " ")
	if strings.TrimSpace(body) == "" {
		return chat.ErrEmptyMessage
	}
	cs, _, err := decodeConnection(parsed)
	if err != nil {
		return err
	}
	if s.PromptToken {
		if err := promptToken(cs); err != nil {
			return err
		}
	}

	mode, err := config.ParseSendMode(cs.SendMode)
	if err != nil {
		return err
	}
	if mode == config.SendREST && wait == 0 {
		poster := history.NewPoster(cs.Server, nil)
		if err := poster.Post(ctx, cs.ChatRoom(), cs.Credentials(), body); err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, "sent")
		return err
	}

	opts, err := cs.SessionOptions(log.Logger)
	if err != nil {
		return err
	}
	sess := session.New(cs.ChatRoom(), opts...)
	defer func() { _ = sess.Close() }()
	echoed, err := sendAndWait(ctx, sess, cs.Credentials(), body, wait)
	if err != nil {
		return err
	}
	if echoed != nil {
		_, err = fmt.Fprintln(w, formatMessage(*echoed))
		return err
	}
	_, err = fmt.Fprintln(w, "sent")
	return err
}

// sendAndWait joins, sends body and waits for the first inbound message with the
// same body. A nil message with a nil error means the wait elapsed.
func sendAndWait(ctx context.Context, sess *session.Session, creds chat.Credentials, body string, wait time.Duration) (*chat.Message, error) {
	events, sub := sess.SubscribeChan(64)
	defer sub.Cancel()

	if err := sess.Join(ctx, creds); err != nil {
		return nil, errors.Wrapf(err, "join %s", sess.Room())
	}
	if err := sess.Send(ctx, body); err != nil {
		return nil, err
	}
	if wait <= 0 {
		return nil, nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-sess.Done():
			return nil, errors.Wrap(chat.ErrNotConnected, "stream ended before the echo")
		case e := <-events:
			if e.Type == session.EventMessageReceived && e.Message.Body == body {
				m := e.Message
				return &m, nil
			}
		}
	}
}
