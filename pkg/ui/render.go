package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/go-go-golems/chatroom/pkg/chat"
	"github.com/go-go-golems/chatroom/pkg/session"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	authorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	systemStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("246"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	liveStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("118"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// renderer formats message bodies, optionally as markdown.
type renderer struct {
	markdown bool
	width    int
	term     *glamour.TermRenderer
}

func (r *renderer) resize(width int) {
	if width == r.width {
		return
	}
	r.width = width
	r.term = nil
}

func (r *renderer) body(s string) string {
	if !r.markdown {
		return s
	}
	if r.term == nil {
		w := r.width
		if w <= 0 {
			w = 80
		}
		term, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(w))
		if err != nil {
			r.markdown = false
			return s
		}
		r.term = term
	}
	out, err := r.term.Render(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(out)
}

func (r *renderer) message(m chat.Message) string {
	switch m.Kind {
	case chat.KindError:
		return errorStyle.Render("! " + m.Body)
	case chat.KindSystem:
		return systemStyle.Render("* " + m.Body)
	}
	author := m.Author
	if author == "" {
		author = "?"
	}
	return authorStyle.Render(author+":") + " " + r.body(m.Body)
}

func (r *renderer) messages(msgs []chat.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, r.message(m))
	}
	return strings.Join(lines, "\n")
}

func renderState(st session.State) string {
	switch st {
	case session.Live:
		return liveStyle.Render(st.String())
	case session.Failed:
		return errorStyle.Render(st.String())
	case session.Closed, session.Idle:
		return statusStyle.Render(st.String())
	}
	return pendingStyle.Render(st.String())
}
