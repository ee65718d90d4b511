package chat

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"studyhub/internal/bus"
	"studyhub/internal/config"
	ws "studyhub/internal/websocket"
	"studyhub/pkg/interfaces"
)

// CloseUnauthorized is sent when the connecting identity is missing,
// unknown or inactive.
const CloseUnauthorized = 4401

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking belongs to the deployment's proxy layer.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// StreamHandler serves the per-thread live message stream. Members of a
// thread subscribe here to see messages as they are posted; membership is
// the only gate, initiation eligibility never applies to an existing
// thread.
type StreamHandler struct {
	bus      interfaces.Bus
	users    interfaces.UserDirectory
	threads  interfaces.ThreadStore
	wsConfig *config.WebSocketConfig
}

// NewStreamHandler wires the thread stream dependencies.
func NewStreamHandler(b interfaces.Bus, users interfaces.UserDirectory,
	threads interfaces.ThreadStore, wsConfig *config.WebSocketConfig) *StreamHandler {
	if wsConfig == nil {
		wsConfig = config.DefaultConfig().WebSocket
	}
	return &StreamHandler{
		bus:      b,
		users:    users,
		threads:  threads,
		wsConfig: wsConfig,
	}
}

// inboundControl is the only client-initiated traffic the stream accepts.
// Messages are posted through the HTTP API; anything but a ping is ignored.
type inboundControl struct {
	Type string `json:"type"`
}

// HandleStream upgrades the connection, checks identity and thread
// membership, and pumps the thread group to the client until disconnect.
// Identity and thread arrive as user_id and thread_id query parameters.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("thread stream: upgrade failed: %v", err)
		return
	}

	conn := ws.NewConnection(raw, h.wsConfig.BufferSize, h.wsConfig.WriteTimeout)

	userID := r.URL.Query().Get("user_id")
	user, lookupErr := h.users.GetUser(r.Context(), userID)
	if userID == "" || lookupErr != nil || !user.IsActive {
		conn.WriteClose(CloseUnauthorized, "unauthorized")
		_ = conn.Close()
		return
	}

	threadID := r.URL.Query().Get("thread_id")
	member, err := h.threads.IsThreadParticipant(r.Context(), threadID, user.ID)
	if err != nil || !member {
		// Non-members get a plain close; the thread's existence is not
		// disclosed.
		_ = conn.Close()
		return
	}

	sub, err := h.bus.Subscribe(bus.ThreadGroup(threadID))
	if err != nil {
		log.Printf("thread stream: subscribe failed for thread %s: %v", threadID, err)
		conn.WriteClose(websocket.CloseInternalServerErr, "")
		_ = conn.Close()
		return
	}

	go h.deliverLoop(conn, sub)

	h.readLoop(raw, conn, user.ID)

	h.bus.Unsubscribe(sub)
	_ = conn.Close()
}

// deliverLoop pumps thread group payloads to the client in publish order.
func (h *StreamHandler) deliverLoop(conn *ws.Connection, sub interfaces.Subscription) {
	for {
		select {
		case payload, ok := <-sub.C():
			if !ok {
				return
			}
			if err := conn.WriteRaw(payload); err != nil {
				return
			}
		case <-conn.Done():
			return
		}
	}
}

// readLoop handles inbound control frames and transport heartbeats until
// the connection drops.
func (h *StreamHandler) readLoop(raw *websocket.Conn, conn *ws.Connection, userID string) {
	if err := raw.SetReadDeadline(time.Now().Add(h.wsConfig.ReadTimeout)); err != nil {
		return
	}
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(h.wsConfig.ReadTimeout))
	})

	ticker := time.NewTicker(h.wsConfig.PingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := raw.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(h.wsConfig.WriteTimeout)); err != nil {
					return
				}
			case <-conn.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("thread stream: read error for user %s: %v", userID, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var control inboundControl
		if err := json.Unmarshal(data, &control); err != nil {
			continue
		}
		if control.Type == "ping" {
			if err := conn.WriteJSON(map[string]string{"type": "pong"}); err != nil {
				return
			}
		}
	}
}
