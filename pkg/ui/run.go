package ui

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"

	"github.com/go-go-golems/chatroom/pkg/chat"
	"github.com/go-go-golems/chatroom/pkg/session"
)

// Run hosts mgr's sessions in a terminal program until the user quits or ctx ends.
// The caller joins the first room; /join switches rooms through mgr.
func Run(ctx context.Context, mgr *session.Manager, creds chat.Credentials, opts ...Option) error {
	events := make(chan session.Event, 64)
	stop := make(chan struct{})
	sub := mgr.Subscribe(func(e session.Event) {
		select {
		case events <- e:
		case <-stop:
		}
	})
	defer func() {
		close(stop)
		sub.Cancel()
	}()

	options := []tea.ProgramOption{tea.WithContext(ctx)}
	if isatty.IsTerminal(os.Stdout.Fd()) {
		options = append(options, tea.WithAltScreen())
	} else {
		lipgloss.SetColorProfile(termenv.Ascii)
		options = append(options, tea.WithOutput(os.Stderr))
	}

	p := tea.NewProgram(New(ctx, mgr, creds, events, opts...), options...)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "run chat ui")
	}
	return nil
}
