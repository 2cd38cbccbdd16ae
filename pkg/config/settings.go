package config

import (
	"net/url"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/schema"
	"github.com/pkg/errors"

	"github.com/go-go-golems/chatroom/pkg/chat"
	"github.com/go-go-golems/chatroom/pkg/history"
	"github.com/go-go-golems/chatroom/pkg/relay"
)

const SectionSlug = "chatroom"

type SendMode string

const (
	// SendStream writes {"message"} frames on the websocket.
	SendStream SendMode = "ws"
	// SendREST posts to /api/messages.
	SendREST SendMode = "rest"
)

func ParseSendMode(s string) (SendMode, error) {
	switch SendMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SendStream:
		return SendStream, nil
	case SendREST:
		return SendREST, nil
	}
	return "", errors.Errorf("unknown send mode %q (ws|rest)", s)
}

// Settings is the decoded chatroom section.
type Settings struct {
	Server       string `glazed:"server"`
	WSBase       string `glazed:"ws-base"`
	PerRoom      bool   `glazed:"per-room"`
	Username     string `glazed:"username"`
	Token        string `glazed:"token"`
	Room         string `glazed:"room"`
	RoomName     string `glazed:"room-name"`
	Capacity     int    `glazed:"capacity"`
	HistoryOrder string `glazed:"history-order"`
	SendMode     string `glazed:"send-mode"`
	Config       string `glazed:"config"`
}

func Defaults() Settings {
	return Settings{
		Server:       "http://localhost:8080",
		PerRoom:      true,
		Room:         "general",
		Capacity:     chat.DefaultCapacity,
		HistoryOrder: string(history.NewestFirst),
		SendMode:     string(SendStream),
	}
}

// NewSection returns the glazed section for connection settings.
func NewSection() (schema.Section, error) {
	d := Defaults()
	return schema.NewSection(
		SectionSlug,
		"Chat server connection",
		schema.WithFields(
			fields.New("server", fields.TypeString, fields.WithDefault(d.Server), fields.WithHelp("HTTP base URL of the chat server")),
			fields.New("ws-base", fields.TypeString, fields.WithDefault(""), fields.WithHelp("Websocket base URL (default: derived from --server, /api/ws)")),
			fields.New("per-room", fields.TypeBool, fields.WithDefault(d.PerRoom), fields.WithHelp("Append /<roomId> to the websocket URL")),
			fields.New("username", fields.TypeString, fields.WithDefault(""), fields.WithHelp("Display name")),
			fields.New("token", fields.TypeString, fields.WithDefault(""), fields.WithHelp("Bearer token")),
			fields.New("room", fields.TypeString, fields.WithDefault(d.Room), fields.WithHelp("Room id")),
			fields.New("room-name", fields.TypeString, fields.WithDefault(""), fields.WithHelp("Room display name")),
			fields.New("capacity", fields.TypeInteger, fields.WithDefault(d.Capacity), fields.WithHelp("Message buffer capacity")),
			fields.New("history-order", fields.TypeString, fields.WithDefault(d.HistoryOrder), fields.WithHelp("Order the history endpoint returns (newest-first|oldest-first)")),
			fields.New("send-mode", fields.TypeString, fields.WithDefault(d.SendMode), fields.WithHelp("How messages are sent (ws|rest)")),
			fields.New("config", fields.TypeString, fields.WithDefault(""), fields.WithHelp("YAML config file; flags left at their default take the file's value")),
		),
	)
}

// Overlay fills settings still at their default from f. Explicit flags win.
func (s *Settings) Overlay(f *File) {
	if f == nil {
		return
	}
	d := Defaults()
	str := func(dst *string, def, v string) {
		if *dst == def && v != "" {
			*dst = v
		}
	}
	str(&s.Server, d.Server, f.Server)
	str(&s.WSBase, "", f.WSBase)
	str(&s.Username, "", f.Username)
	str(&s.Token, "", f.Token)
	str(&s.Room, d.Room, f.Room)
	str(&s.RoomName, "", f.RoomName)
	str(&s.HistoryOrder, d.HistoryOrder, f.HistoryOrder)
	str(&s.SendMode, d.SendMode, f.SendMode)
	if s.PerRoom == d.PerRoom && f.PerRoom != nil {
		s.PerRoom = *f.PerRoom
	}
	if s.Capacity == d.Capacity && f.Capacity > 0 {
		s.Capacity = f.Capacity
	}
}

// OverlayRelay does the same for the relay section.
func OverlayRelay(s *relay.Settings, f *File) {
	if f == nil || f.Relay == nil {
		return
	}
	d := relay.DefaultSettings()
	b := f.Relay
	if !s.Enabled && b.Enabled {
		s.Enabled = true
	}
	str := func(dst *string, def, v string) {
		if *dst == def && v != "" {
			*dst = v
		}
	}
	str(&s.Backend, d.Backend, b.Backend)
	str(&s.Addr, d.Addr, b.Addr)
	str(&s.Group, d.Group, b.Group)
	str(&s.Consumer, d.Consumer, b.Consumer)
	str(&s.TopicPrefix, d.TopicPrefix, b.TopicPrefix)
}

// LoadOverlay reads s.Config, if set, and overlays it onto s and rs.
func (s *Settings) LoadOverlay(rs *relay.Settings) error {
	if s.Config == "" {
		return nil
	}
	f, err := Load(s.Config)
	if err != nil {
		return err
	}
	s.Overlay(f)
	if rs != nil {
		OverlayRelay(rs, f)
	}
	return nil
}

func (s Settings) Credentials() chat.Credentials {
	return chat.Credentials{Username: s.Username, Token: s.Token}
}

func (s Settings) ChatRoom() chat.Room {
	name := s.RoomName
	if name == "" {
		name = s.Room
	}
	return chat.Room{ID: s.Room, Name: name}
}

// WebsocketBase returns ws-base, or derives it from server.
func (s Settings) WebsocketBase() (string, error) {
	if s.WSBase != "" {
		return strings.TrimRight(s.WSBase, "/"), nil
	}
	u, err := url.Parse(s.Server)
	if err != nil {
		return "", errors.Wrapf(err, "parse server url %q", s.Server)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", errors.Errorf("server url %q must be http or https", s.Server)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws"
	u.RawQuery = ""
	return u.String(), nil
}

func (s Settings) Validate() error {
	if s.Capacity < 0 {
		return errors.New("capacity must not be negative")
	}
	if _, err := history.ParseOrder(s.HistoryOrder); err != nil {
		return err
	}
	if _, err := ParseSendMode(s.SendMode); err != nil {
		return err
	}
	if _, err := s.WebsocketBase(); err != nil {
		return err
	}
	return nil
}
