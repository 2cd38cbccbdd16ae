package cmds

import (
	"context"

	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatroom/pkg/chat"
)

type HistoryCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = &HistoryCommand{}

type HistorySettings struct {
	PromptToken bool `glazed:"prompt-token"`
}

func NewHistoryCommand() (*HistoryCommand, error) {
	glazedSection, err := settings.NewGlazedSection()
	if err != nil {
		return nil, err
	}
	commandSettingsSection, err := cli.NewCommandSettingsSection()
	if err != nil {
		return nil, err
	}
	sections, err := connectionSections()
	if err != nil {
		return nil, err
	}

	return &HistoryCommand{
		CommandDescription: cmds.NewCommandDescription(
			"history",
			cmds.WithShort("Print a room's recent messages, oldest first"),
			cmds.WithLong("Fetch the room history once over HTTP and emit one row per message. Does not open the stream."),
			cmds.WithFlags(
				fields.New(
					"prompt-token",
					fields.TypeBool,
					fields.WithDefault(false),
					fields.WithHelp("Ask for the token when none is configured"),
				),
			),
			cmds.WithSections(append(sections, glazedSection, commandSettingsSection)...),
		),
	}, nil
}

func (c *HistoryCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsed *values.Values,
	gp middlewares.Processor,
) error {
	s := &HistorySettings{}
	if err := parsed.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
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

	fetcher, err := cs.Fetcher(log.Logger)
	if err != nil {
		return err
	}
	room := cs.ChatRoom()
	msgs, err := fetcher.Fetch(ctx, room, cs.Credentials())
	if err != nil {
		return errors.Wrapf(err, "fetch history of %s (%s)", room, chat.Reason(err))
	}

	for i, m := range msgs {
		row := types.NewRow(
			types.MRP("index", i),
			types.MRP("room_id", room.ID),
			types.MRP("username", m.Author),
			types.MRP("type", string(m.Kind)),
			types.MRP("message", m.Body),
			types.MRP("created", m.Created),
		)
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}
