package cmds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatroom/pkg/relay"
)

type WatchCommand struct {
	*cmds.CommandDescription
}

var _ cmds.WriterCommand = &WatchCommand{}

type WatchSettings struct {
	FromStart bool `glazed:"from-start"`
}

func NewWatchCommand() (*WatchCommand, error) {
	sections, err := connectionSections()
	if err != nil {
		return nil, err
	}
	return &WatchCommand{
		CommandDescription: cmds.NewCommandDescription(
			"watch",
			cmds.WithShort("Print session events relayed by other chatroom processes"),
			cmds.WithLong(`Subscribe to the relay topic of --room and print each envelope as a JSON line.
Needs a shared backend: use --relay-backend redis with the same --relay-topic-prefix
as the publishing join/tail processes.`),
			cmds.WithFlags(
				fields.New(
					"from-start",
					fields.TypeBool,
					fields.WithDefault(false),
					fields.WithHelp("Redis: replay the stream instead of starting at its tail"),
				),
			),
			cmds.WithSections(sections...),
		),
	}, nil
}

func (c *WatchCommand) RunIntoWriter(ctx context.Context, parsed *values.Values, w io.Writer) error {
	s := &WatchSettings{}
	if err := parsed.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	cs, rs, err := decodeConnection(parsed)
	if err != nil {
		return err
	}
	if relay.Backend(rs.Backend) == relay.BackendMemory {
		log.Warn().Msg("memory relay only sees events of this process; nothing will arrive")
	}

	r, err := relay.Build(*rs, log.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	return watch(ctx, r, cs.Room, rs.Group, !s.FromStart, w)
}

func watch(ctx context.Context, r *relay.Relay, roomID, group string, atTail bool, w io.Writer) error {
	if atTail {
		if err := r.EnsureGroupAtTail(ctx, roomID, group); err != nil {
			return err
		}
	}
	envs, err := r.Watch(ctx, roomID)
	if err != nil {
		return err
	}
	log.Info().Str("topic", r.Topic(roomID)).Msg("watching")
	for env := range envs {
		b, err := json.Marshal(env)
		if err != nil {
			return errors.Wrap(err, "encode envelope")
		}
		if _, err := fmt.Fprintln(w, string(b)); err != nil {
			return err
		}
	}
	return nil
}
