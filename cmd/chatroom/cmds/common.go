package cmds

import (
	"os"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cmds/schema"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tcnksm/go-input"

	"github.com/go-go-golems/chatroom/pkg/config"
	"github.com/go-go-golems/chatroom/pkg/relay"
)

// connectionSections returns the sections shared by every command.
func connectionSections() ([]schema.Section, error) {
	chatSection, err := config.NewSection()
	if err != nil {
		return nil, err
	}
	relaySection, err := relay.NewSection()
	if err != nil {
		return nil, err
	}
	return []schema.Section{chatSection, relaySection}, nil
}

// decodeConnection decodes both sections and overlays the config file, if any.
func decodeConnection(parsed *values.Values) (*config.Settings, *relay.Settings, error) {
	cs := config.Defaults()
	if err := parsed.DecodeSectionInto(config.SectionSlug, &cs); err != nil {
		return nil, nil, errors.Wrap(err, "decode chatroom settings")
	}
	rs := relay.DefaultSettings()
	if err := parsed.DecodeSectionInto(relay.SectionSlug, &rs); err != nil {
		return nil, nil, errors.Wrap(err, "decode relay settings")
	}
	if err := cs.LoadOverlay(&rs); err != nil {
		return nil, nil, err
	}
	if err := cs.Validate(); err != nil {
		return nil, nil, err
	}
	return &cs, &rs, nil
}

// promptToken asks for a token on the terminal when none was configured.
func promptToken(cs *config.Settings) error {
	if strings.TrimSpace(cs.Token) != "" {
		return nil
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return errors.New("no token configured and stdin is not a terminal")
	}
	ui := &input.UI{Writer: os.Stderr, Reader: os.Stdin}
	token, err := ui.Ask("Bearer token", &input.Options{
		Required:  true,
		Loop:      true,
		Mask:      true,
		HideOrder: true,
	})
	if err != nil {
		return errors.Wrap(err, "read token")
	}
	cs.Token = strings.TrimSpace(token)
	if cs.Username == "" {
		name, err := ui.Ask("Username", &input.Options{HideOrder: true})
		if err != nil {
			return errors.Wrap(err, "read username")
		}
		cs.Username = strings.TrimSpace(name)
	}
	log.Debug().Str("component", "cli").Msg("token read from prompt")
	return nil
}
