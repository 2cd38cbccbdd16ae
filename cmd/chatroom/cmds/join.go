package cmds

import (
	"context"
	"os"
	"time"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatroom/pkg/relay"
	"github.com/go-go-golems/chatroom/pkg/session"
	"github.com/go-go-golems/chatroom/pkg/ui"
)

type JoinCommand struct {
	*cmds.CommandDescription
}

var _ cmds.BareCommand = &JoinCommand{}

type JoinSettings struct {
	Markdown    bool   `glazed:"markdown"`
	LineMode    bool   `glazed:"line-mode"`
	PromptToken bool   `glazed:"prompt-token"`
	Linger      string `glazed:"linger"`
}

func NewJoinCommand() (*JoinCommand, error) {
	sections, err := connectionSections()
	if err != nil {
		return nil, err
	}
	return &JoinCommand{
		CommandDescription: cmds.NewCommandDescription(
			"join",
			cmds.WithShort("Join a room and chat"),
			cmds.WithLong(`Join a room: load its recent history, then follow the live stream.

On a terminal this opens the chat UI (enter sends, ctrl+y copies the latest
message, /join <room> switches rooms, /quit or esc leaves). Otherwise, or with
--line-mode, every stdin line is sent and every event is printed.`),
			cmds.WithFlags(
				fields.New(
					"markdown",
					fields.TypeBool,
					fields.WithDefault(false),
					fields.WithHelp("Render message bodies as markdown in the UI"),
				),
				fields.New(
					"line-mode",
					fields.TypeBool,
					fields.WithDefault(false),
					fields.WithHelp("Plain stdin/stdout mode even on a terminal"),
				),
				fields.New(
					"prompt-token",
					fields.TypeBool,
					fields.WithDefault(false),
					fields.WithHelp("Ask for the token when none is configured"),
				),
				fields.New(
					"linger",
					fields.TypeString,
					fields.WithDefault("2s"),
					fields.WithHelp("Line mode: how long to keep listening after stdin ends"),
				),
			),
			cmds.WithSections(sections...),
		),
	}, nil
}

func (c *JoinCommand) Run(ctx context.Context, parsed *values.Values) error {
	s := &JoinSettings{}
	if err := parsed.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	linger, err := time.ParseDuration(s.Linger)
	if err != nil {
		return errors.Wrapf(err, "parse --linger %q", s.Linger)
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

	factory, err := cs.Factory(log.Logger)
	if err != nil {
		return err
	}

	var r *relay.Relay
	if rs.Enabled {
		r, err = relay.Build(*rs, log.Logger)
		if err != nil {
			return err
		}
		defer func() { _ = r.Close() }()
	}

	creds := cs.Credentials()
	if s.LineMode || !isatty.IsTerminal(os.Stdin.Fd()) || !isatty.IsTerminal(os.Stdout.Fd()) {
		sess := factory(cs.ChatRoom())
		if r != nil {
			sub := r.Attach(sess)
			defer sub.Cancel()
		}
		return runLines(ctx, sess, creds, os.Stdin, os.Stdout, linger)
	}

	mgr := session.NewManager(factory)
	if r != nil {
		sub := r.Attach(mgr)
		defer sub.Cancel()
	}
	// closes before the relay detaches so the final state is relayed
	defer func() { _ = mgr.Close() }()
	return ui.Run(ctx, mgr, creds,
		ui.WithInitialRoom(cs.ChatRoom()),
		ui.WithMarkdown(s.Markdown),
	)
}
