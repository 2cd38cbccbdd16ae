package chat

import (
	"strings"
)

// Credentials are produced by the auth collaborator and attached to outbound requests.
type Credentials struct {
	Username string `json:"username" yaml:"username"`
	Token    string `json:"token" yaml:"token"`
}

// Valid reports whether a bearer token is present.
func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.Token) != ""
}

// Room is a named message channel. It is fixed for the lifetime of a session.
type Room struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

func (r Room) String() string {
	if r.Name != "" && r.Name != r.ID {
		return r.Name + " (" + r.ID + ")"
	}
	return r.ID
}

type Kind string

const (
	KindUser   Kind = "user"
	KindSystem Kind = "system"
	KindError  Kind = "error"
)

// Message mirrors the server payload. Seq is local and never sent over the wire.
type Message struct {
	Author  string `json:"username"`
	Body    string `json:"message"`
	Kind    Kind   `json:"type"`
	RoomID  string `json:"roomId,omitempty"`
	Created string `json:"created,omitempty"`
	Seq     uint64 `json:"-"`
}

// SameContent compares the wire-visible fields, ignoring Seq.
func (m Message) SameContent(other Message) bool {
	return m.Author == other.Author &&
		m.Body == other.Body &&
		m.Kind == other.Kind &&
		m.Created == other.Created
}

// OutboundPayload is the frame written on the stream when sending over the websocket.
type OutboundPayload struct {
	Message string `json:"message"`
}

// PostPayload is the body of the REST send request.
type PostPayload struct {
	Message  string `json:"message"`
	Type     Kind   `json:"type"`
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
}

// HistoryPayload is the history response envelope. Messages may be absent.
type HistoryPayload struct {
	Messages []Message `json:"messages"`
	Size     int       `json:"size,omitempty"`
}
