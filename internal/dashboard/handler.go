package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"studyhub/internal/badge"
	"studyhub/internal/bus"
	"studyhub/internal/config"
	"studyhub/internal/worker"
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

// Handler serves the per-user dashboard stream endpoint.
type Handler struct {
	bus      interfaces.Bus
	users    interfaces.UserDirectory
	badges   *badge.Aggregator
	presence interfaces.Presence
	pool     *worker.Pool
	wsConfig *config.WebSocketConfig
}

// NewHandler wires the dashboard stream dependencies.
func NewHandler(b interfaces.Bus, users interfaces.UserDirectory, badges *badge.Aggregator,
	presence interfaces.Presence, pool *worker.Pool, wsConfig *config.WebSocketConfig) *Handler {
	if wsConfig == nil {
		wsConfig = config.DefaultConfig().WebSocket
	}
	return &Handler{
		bus:      b,
		users:    users,
		badges:   badges,
		presence: presence,
		pool:     pool,
		wsConfig: wsConfig,
	}
}

// inboundControl is the only client-initiated traffic the stream accepts.
// No client event injection: anything but a ping is ignored.
type inboundControl struct {
	Type string `json:"type"`
}

// HandleStream upgrades the connection, authenticates the identity and runs
// the stream until disconnect. The caller identity arrives as the user_id
// query parameter (session extraction is handled upstream).
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("dashboard: upgrade failed: %v", err)
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

	sub, err := h.bus.Subscribe(bus.UserGroup(user.ID))
	if err != nil {
		log.Printf("dashboard: subscribe failed for user %s: %v", user.ID, err)
		conn.WriteClose(websocket.CloseInternalServerErr, "")
		_ = conn.Close()
		return
	}

	if err := h.presence.SetOnline(r.Context(), user.ID); err != nil {
		log.Printf("dashboard: presence set online failed for user %s: %v", user.ID, err)
	}

	// Bootstrap: current badge snapshot before any streamed events.
	counts := h.badges.Compute(r.Context(), user.ID)
	if err := conn.WriteJSON(map[string]interface{}{"type": "bootstrap", "badges": counts}); err != nil {
		log.Printf("dashboard: bootstrap send failed for user %s: %v", user.ID, err)
	}

	go h.deliverLoop(conn, sub)

	h.readLoop(raw, conn, user.ID)

	// Disconnect path: leave the group, drop presence immediately.
	h.bus.Unsubscribe(sub)
	if err := h.presence.SetOffline(context.Background(), user.ID); err != nil {
		log.Printf("dashboard: presence set offline failed for user %s: %v", user.ID, err)
	}
	_ = conn.Close()
}

// deliverLoop pumps group payloads to the client in publish order.
func (h *Handler) deliverLoop(conn *ws.Connection, sub interfaces.Subscription) {
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
func (h *Handler) readLoop(raw *websocket.Conn, conn *ws.Connection, userID string) {
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
				log.Printf("dashboard: read error for user %s: %v", userID, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var control inboundControl
		if err := json.Unmarshal(data, &control); err != nil {
			// Malformed input is ignored.
			continue
		}
		if control.Type == "ping" {
			if err := conn.WriteJSON(map[string]string{"type": "pong"}); err != nil {
				return
			}
			// Keepalive doubles as a presence refresh; the store touch runs
			// off the read loop.
			uid := userID
			if err := h.pool.Submit(func(ctx context.Context) {
				if err := h.presence.Refresh(ctx, uid); err != nil {
					log.Printf("dashboard: presence refresh failed for user %s: %v", uid, err)
				}
			}); err != nil {
				log.Printf("dashboard: presence refresh not queued for user %s: %v", uid, err)
			}
		}
	}
}
