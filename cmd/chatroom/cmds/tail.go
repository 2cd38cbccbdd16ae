package cmds

import (
	"context"
	"io"
	"time"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/chatroom/pkg/chat"
	"github.com/go-go-golems/chatroom/pkg/relay"
	"github.com/go-go-golems/chatroom/pkg/session"
)

type TailCommand struct {
	*cmds.CommandDescription
}

var _ cmds.WriterCommand = &TailCommand{}

type TailSettings struct {
	JSON        bool   `glazed:"json"`
	For         string `glazed:"for"`
	PromptToken bool   `glazed:"prompt-token"`
}

func NewTailCommand() (*TailCommand, error) {
	sections, err := connectionSections()
	if err != nil {
		return nil, err
	}
	return &TailCommand{
		CommandDescription: cmds.NewCommandDescription(
			"tail",
			cmds.WithShort("Follow a room without sending"),
			cmds.WithLong("Join a room read-only and print its history, then every live event, until interrupted or the stream ends."),
			cmds.WithFlags(
				fields.New(
					"json",
					fields.TypeBool,
					fields.WithDefault(false),
					fields.WithHelp("Print events as JSON lines"),
				),
				fields.New(
					"for",
					fields.TypeString,
					fields.WithDefault("0"),
					fields.WithHelp("Stop after this long (0 follows until interrupted)"),
				),
				fields.New(
					"prompt-token",
					fields.TypeBool,
					fields.WithDefault(false),
					fields.WithHelp("Ask for the token when none is configured"),
				),
			),
			cmds.WithSections(sections...),
		),
	}, nil
}

func (c *TailCommand) RunIntoWriter(ctx context.Context, parsed *values.Values, w io.Writer) error {
	s := &TailSettings{}
	if err := parsed.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	d, err := time.ParseDuration(s.For)
	if err != nil {
		return errors.Wrapf(err, "parse --for %q", s.For)
	}
	cs, rs, err := decodeConnection(parsed)
	if err != nil {
		return err
	}
	if s.PromptToken {
		if err := promptToken(cs); err != nil {
			return err
		}
	}
	opts, err := cs.SessionOptions(log.Logger)
	if err != nil {
		return err
	}
	sess := session.New(cs.ChatRoom(), opts...)

	if rs.Enabled {
		r, err := relay.Build(*rs, log.Logger)
		if err != nil {
			return err
		}
		defer func() { _ = r.Close() }()
		sub := r.Attach(sess)
		defer sub.Cancel()
	}
	defer func() { _ = sess.Close() }()

	return tail(ctx, sess, cs.Credentials(), eventWriter{w: w, asJSON: s.JSON}, d)
}

// tail prints sess's events until the session ends, ctx is cancelled or d elapses.
func tail(ctx context.Context, sess *session.Session, creds chat.Credentials, ew eventWriter, d time.Duration) error {
	events, sub := sess.SubscribeChan(64)
	defer sub.Cancel()

	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	if err := sess.Join(ctx, creds); err != nil {
		_ = pump(ctx, sess, events, ew)
		return errors.Wrapf(err, "join %s", sess.Room())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pump(gctx, sess, events, ew)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return sess.Close()
		case <-sess.Done():
			return nil
		}
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if err := sess.Err(); err != nil {
		return errors.Wrap(err, "stream ended")
	}
	return nil
}
