package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/till-bridge/internal/infrastructure/config"
	"github.com/nerrad567/till-bridge/internal/infrastructure/logging"
)

// sessionSendBufferSize is the per-session outbound message buffer size.
const sessionSendBufferSize = 64

// Hub tracks open control-plane sessions and pushes device events to
// all of them.
type Hub struct {
	cfg      config.WebSocketConfig
	logger   *logging.Logger
	sessions map[*Session]struct{}
	mu       sync.RWMutex
}

// Session is one connected POS client.
type Session struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// upgrader configures the WebSocket upgrader. Origin checking is done
// by the gatekeeper before the upgrade, so it is disabled here.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// NewHub creates an empty session hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[*Session]struct{}),
	}
}

// Run blocks until the context is cancelled, then disconnects every
// session.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a session to the hub.
func (h *Hub) Register(sess *Session) {
	h.mu.Lock()
	h.sessions[sess] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("session connected", "session_id", sess.id, "sessions", h.SessionCount())
}

// Unregister removes a session from the hub.
// Only the goroutine that successfully removes the session from the map
// closes the send channel, preventing double-close panics during shutdown.
func (h *Hub) Unregister(sess *Session) {
	h.mu.Lock()
	_, existed := h.sessions[sess]
	delete(h.sessions, sess)
	h.mu.Unlock()

	if existed {
		close(sess.send)
	}
	h.logger.Debug("session disconnected", "session_id", sess.id, "sessions", h.SessionCount())
}

// Broadcast pushes a message to every open session. Device events are
// not tied to a request, so every client sees every scan and weight
// change.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	// Snapshot the session list under the hub lock, then release before
	// sending.
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.mu.RUnlock()

	for _, sess := range sessions {
		sess.trySend(data)
	}
	if len(sessions) > 0 {
		h.logger.Debug("broadcast sent", "type", msg.Type, "recipients", len(sessions))
	}
}

// SessionCount returns the number of open sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// closeAll disconnects all sessions and closes their send channels so
// writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sess := range h.sessions {
		close(sess.send)
		if sess.conn != nil {
			sess.conn.Close()
		}
		delete(h.sessions, sess)
	}
}

// handleSession admits, upgrades, and runs one control-plane session.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if ok, reason := s.gatekeeper.Admit(r); !ok {
		s.logger.Warn("session rejected", "reason", reason, "remote", r.RemoteAddr)
		writeForbidden(w, reason)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	sess := &Session{
		id:   uuid.NewString(),
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, sessionSendBufferSize),
	}
	s.hub.Register(sess)

	go sess.writePump(s.wsCfg)
	go sess.readPump(s.wsCfg, s.handleCommand)

	// The opening message lists the capabilities this gateway actually
	// has, so the POS can grey out missing hardware up front.
	sess.sendMessage(Message{
		Type:    TypeConnected,
		Devices: s.registry.Capabilities(),
	})
}

// readPump reads commands from the session and dispatches them in
// order. One command at a time per session keeps replies correlated
// without message IDs.
func (sess *Session) readPump(cfg config.WebSocketConfig, dispatch func(Command) *Message) {
	defer func() {
		sess.hub.Unregister(sess)
		sess.conn.Close()
	}()

	sess.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	sess.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.hub.logger.Warn("websocket read error", "session_id", sess.id, "error", err)
			} else {
				sess.hub.logger.Debug("websocket closed", "session_id", sess.id)
			}
			return
		}
		// Any client message resets the read deadline.
		//nolint:errcheck // Best-effort deadline reset
		sess.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			// A frame that does not decode gets the same reply as an
			// unrecognized action.
			sess.sendMessage(errorMessage("unknown action"))
			continue
		}
		if reply := dispatch(cmd); reply != nil {
			sess.sendMessage(*reply)
		}
	}
}

// writePump writes messages to the WebSocket connection.
func (sess *Session) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		sess.conn.Close()
	}()

	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case data, ok := <-sess.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				sess.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			sess.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := sess.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			sess.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend attempts to queue data for the session. It silently handles
// closed channels (session disconnected during broadcast) and full
// buffers (slow client).
func (sess *Session) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case sess.send <- data:
	default:
		// Session buffer full, skip
	}
}

// sendMessage marshals and queues one message for the session.
func (sess *Session) sendMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	sess.trySend(data)
}
