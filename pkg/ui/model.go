// Package ui is a terminal host for a chat session: it renders the session's buffer
// and sends what the user types.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/go-go-golems/chatroom/pkg/chat"
	"github.com/go-go-golems/chatroom/pkg/session"
)

// Rooms is what the model needs from a session.Manager.
type Rooms interface {
	Current() *session.Session
	Join(ctx context.Context, room chat.Room, creds chat.Credentials) (*session.Session, error)
}

type sendResultMsg struct{ err error }

type joinResultMsg struct {
	room chat.Room
	err  error
}

type copiedMsg struct {
	body string
	err  error
}

type eventsClosedMsg struct{}

type Option func(*Model)

func WithMarkdown(on bool) Option {
	return func(m *Model) { m.render.markdown = on }
}

// WithInitialRoom joins room when the program starts.
func WithInitialRoom(room chat.Room) Option {
	return func(m *Model) { m.initial = &room }
}

// WithClipboard replaces the clipboard writer used by ctrl+y.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) { m.copy = write }
}

type Model struct {
	ctx    context.Context
	rooms  Rooms
	creds  chat.Credentials
	events <-chan session.Event

	viewport viewport.Model
	input    textinput.Model
	render   renderer
	copy     func(string) error
	initial  *chat.Room

	status  string
	lastErr string
	width   int
	height  int
}

// New builds the model. events must carry the events of rooms' current session,
// e.g. from Manager.Subscribe.
func New(ctx context.Context, rooms Rooms, creds chat.Credentials, events <-chan session.Event, opts ...Option) Model {
	in := textinput.New()
	in.Placeholder = "message, /join <room>, /quit"
	in.Prompt = "> "
	in.CharLimit = 2000
	in.Focus()

	m := Model{
		ctx:      ctx,
		rooms:    rooms,
		creds:    creds,
		events:   events,
		viewport: viewport.New(80, 20),
		input:    in,
		copy:     clipboard.WriteAll,
	}
	for _, o := range opts {
		o(&m)
	}
	m.refresh()
	return m
}

func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		if m.events == nil {
			return nil
		}
		e, ok := <-m.events
		if !ok {
			return eventsClosedMsg{}
		}
		return e
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.waitForEvent()}
	if m.initial != nil {
		cmds = append(cmds, m.join(*m.initial))
	}
	return tea.Batch(cmds...)
}

func (m Model) join(room chat.Room) tea.Cmd {
	ctx, rooms, creds := m.ctx, m.rooms, m.creds
	return func() tea.Msg {
		_, err := rooms.Join(ctx, room, creds)
		return joinResultMsg{room: room, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch ev := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = ev.Width, ev.Height
		m.viewport.Width = ev.Width
		// header, status and input lines
		m.viewport.Height = max(1, ev.Height-3)
		m.input.Width = max(10, ev.Width-4)
		m.render.resize(ev.Width)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch ev.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlY:
			return m, m.copyLatest()
		case tea.KeyEnter:
			line := m.input.Value()
			m.input.Reset()
			return m, m.submit(line)
		}

	case session.Event:
		switch ev.Type {
		case session.EventError:
			if ev.Err != nil {
				m.lastErr = fmt.Sprintf("%s: %v", chat.Reason(ev.Err), ev.Err)
			}
		case session.EventStateChanged:
			if ev.State == session.Live {
				m.lastErr = ""
			}
		}
		m.refresh()
		return m, m.waitForEvent()

	case eventsClosedMsg:
		m.events = nil
		return m, nil

	case sendResultMsg:
		if ev.err != nil {
			m.lastErr = fmt.Sprintf("send: %v", ev.err)
		}
		return m, nil

	case joinResultMsg:
		if ev.err != nil {
			m.lastErr = fmt.Sprintf("join %s: %v", ev.room, ev.err)
		}
		m.refresh()
		return m, nil

	case copiedMsg:
		if ev.err != nil {
			m.status = "copy failed: " + ev.err.Error()
		} else {
			m.status = "copied to clipboard"
		}
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit turns an input line into a command.
func (m Model) submit(line string) tea.Cmd {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "/quit":
		return tea.Quit
	case strings.HasPrefix(trimmed, "/join"):
		id := strings.TrimSpace(strings.TrimPrefix(trimmed, "/join"))
		if id == "" {
			return func() tea.Msg { return joinResultMsg{err: chat.ErrRoomRequired} }
		}
		return m.join(chat.Room{ID: id, Name: id})
	}
	sess := m.rooms.Current()
	ctx := m.ctx
	return func() tea.Msg {
		if sess == nil {
			return sendResultMsg{err: chat.ErrNotConnected}
		}
		return sendResultMsg{err: sess.Send(ctx, line)}
	}
}

func (m Model) copyLatest() tea.Cmd {
	sess := m.rooms.Current()
	write := m.copy
	return func() tea.Msg {
		if sess == nil {
			return copiedMsg{err: errors.New("no session")}
		}
		snap := sess.Snapshot()
		if len(snap) == 0 {
			return copiedMsg{err: errors.New("no messages")}
		}
		body := snap[len(snap)-1].Body
		return copiedMsg{body: body, err: write(body)}
	}
}

// refresh re-renders the current snapshot, keeping the view pinned to the bottom
// when it was there.
func (m *Model) refresh() {
	var msgs []chat.Message
	if sess := m.rooms.Current(); sess != nil {
		msgs = sess.Snapshot()
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.render.messages(msgs))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) header() string {
	sess := m.rooms.Current()
	if sess == nil {
		return headerStyle.Render("chatroom") + " " + renderState(session.Idle)
	}
	room := sess.Room().String()
	snap := len(sess.Snapshot())
	return fmt.Sprintf("%s %s %s",
		headerStyle.Render(room),
		renderState(sess.State()),
		statusStyle.Render(fmt.Sprintf("%d/%d", snap, sess.Capacity())),
	)
}

func (m Model) View() string {
	status := m.status
	if m.lastErr != "" {
		status = errorStyle.Render(m.lastErr)
	} else if status != "" {
		status = statusStyle.Render(status)
	}
	return m.header() + "\n" + m.viewport.View() + "\n" + status + "\n" + m.input.View()
}
