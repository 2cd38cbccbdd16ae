// Package chattest provides an in-process chat server speaking the history, send and
// websocket protocols, for tests.
package chattest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/go-go-golems/chatroom/pkg/chat"
)

type Server struct {
	*httptest.Server

	// NewestFirst makes the history endpoint return newest-first.
	NewestFirst bool
	// HistoryStatus, when non-zero, forces the history endpoint to fail with it.
	HistoryStatus int
	// HistoryBody, when set, replaces the history response body verbatim.
	HistoryBody string
	// RejectStream makes websocket upgrades fail with 401.
	RejectStream bool

	upgrader websocket.Upgrader

	mu       sync.Mutex
	tokens   map[string]string
	history  map[string][]chat.Message
	pools    map[string]*roomPool
	received []chat.OutboundPayload
	posted   []chat.PostPayload

	historyHits atomic.Int64
	streamHits  atomic.Int64
}

// NewServer starts a server. Tokens map bearer tokens to usernames; when empty any
// non-empty token is accepted and doubles as the username.
func NewServer(tokens map[string]string) *Server {
	s := &Server{
		NewestFirst: true,
		upgrader:    websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		tokens:      map[string]string{},
		history:     map[string][]chat.Message{},
		pools:       map[string]*roomPool{},
	}
	for k, v := range tokens {
		s.tokens[k] = v
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/rooms/{roomId}/messages", s.handleHistory)
	mux.HandleFunc("POST /api/messages", s.handlePost)
	mux.HandleFunc("GET /api/ws/{roomId}", s.handleWS)
	mux.HandleFunc("GET /api/ws", s.handleWS)
	s.Server = httptest.NewServer(mux)
	return s
}

// WSBase is the websocket base URL, without the room segment.
func (s *Server) WSBase() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/api/ws"
}

// Seed stores history for a room, oldest-first.
func (s *Server) Seed(roomID string, msgs ...chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		if m.Kind == "" {
			m.Kind = chat.KindUser
		}
		m.RoomID = roomID
		s.history[roomID] = append(s.history[roomID], m)
	}
}

func (s *Server) HistoryHits() int { return int(s.historyHits.Load()) }

func (s *Server) StreamHits() int { return int(s.streamHits.Load()) }

func (s *Server) pool(roomID string) *roomPool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[roomID]
	if !ok {
		p = newRoomPool(roomID)
		s.pools[roomID] = p
	}
	return p
}

// Conns counts open websocket peers in a room.
func (s *Server) Conns(roomID string) int {
	return s.pool(roomID).count()
}

// Received returns the frames clients wrote on the stream.
func (s *Server) Received() []chat.OutboundPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.received)
}

// Posted returns the REST send requests.
func (s *Server) Posted() []chat.PostPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.posted)
}

// BroadcastRaw writes payload verbatim to every peer of the room.
func (s *Server) BroadcastRaw(roomID string, payload []byte) {
	s.pool(roomID).broadcast(payload)
}

// Broadcast records m in the room history and fans it out.
func (s *Server) Broadcast(roomID string, m chat.Message) {
	if m.Kind == "" {
		m.Kind = chat.KindUser
	}
	m.RoomID = roomID
	if m.Created == "" {
		m.Created = time.Now().Format(time.RFC1123Z)
	}
	s.mu.Lock()
	s.history[roomID] = append(s.history[roomID], m)
	s.mu.Unlock()
	b, _ := json.Marshal(m)
	s.BroadcastRaw(roomID, b)
}

// DropConns closes every websocket peer of the room from the server side.
func (s *Server) DropConns(roomID string) {
	s.pool(roomID).closeAll()
}

func (s *Server) authorize(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tokens) == 0 {
		return token, true
	}
	name, ok := s.tokens[token]
	return name, ok
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.historyHits.Add(1)
	if _, ok := s.authorize(bearer(r)); !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	if s.HistoryStatus != 0 {
		writeError(w, s.HistoryStatus, "forced failure")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if s.HistoryBody != "" {
		_, _ = w.Write([]byte(s.HistoryBody))
		return
	}

	roomID := r.PathValue("roomId")
	s.mu.Lock()
	msgs := slices.Clone(s.history[roomID])
	s.mu.Unlock()
	if len(msgs) > chat.DefaultCapacity {
		msgs = msgs[len(msgs)-chat.DefaultCapacity:]
	}
	if s.NewestFirst {
		slices.Reverse(msgs)
	}
	payload := map[string]any{"size": len(msgs)}
	if len(msgs) > 0 {
		payload["messages"] = msgs
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	username, ok := s.authorize(bearer(r))
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	var in chat.PostPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(in.Message) == "" {
		writeError(w, http.StatusBadRequest, "message text is missing")
		return
	}
	s.mu.Lock()
	s.posted = append(s.posted, in)
	s.mu.Unlock()

	out := chat.Message{Author: username, Body: in.Message, Kind: in.Type}
	s.Broadcast(in.RoomID, out)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.streamHits.Add(1)
	username, ok := s.authorize(r.URL.Query().Get("bearer"))
	if !ok || s.RejectStream {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	room := r.PathValue("roomId")
	pool := s.pool(room)
	pool.add(conn, username)
	defer pool.remove(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var in chat.OutboundPayload
		if err := json.Unmarshal(data, &in); err != nil {
			continue
		}
		s.mu.Lock()
		s.received = append(s.received, in)
		s.mu.Unlock()
		s.Broadcast(room, chat.Message{Author: username, Body: in.Message, Kind: chat.KindUser})
	}
}
