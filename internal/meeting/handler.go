package meeting

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"studyhub/internal/config"
	ws "studyhub/internal/websocket"
)

// CloseUnauthorized mirrors the dashboard stream's close code for missing
// identity. Room-not-found and forbidden produce an ordinary close with no
// payload; internal errors close with 1011.
const CloseUnauthorized = 4401

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler serves the meeting room signaling endpoint, addressed by room
// token.
type Handler struct {
	relay    *Relay
	wsConfig *config.WebSocketConfig
}

// NewHandler wires the relay behind the WebSocket endpoint.
func NewHandler(relay *Relay, wsConfig *config.WebSocketConfig) *Handler {
	if wsConfig == nil {
		wsConfig = config.DefaultConfig().WebSocket
	}
	return &Handler{relay: relay, wsConfig: wsConfig}
}

// HandleRoom upgrades the connection and runs the room session until
// disconnect. Identity arrives as user_id, the room as the room query
// parameter.
func (h *Handler) HandleRoom(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("meeting: upgrade failed: %v", err)
		return
	}

	conn := ws.NewConnection(raw, h.wsConfig.BufferSize, h.wsConfig.WriteTimeout)

	roomName := r.URL.Query().Get("room")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		conn.WriteClose(CloseUnauthorized, "unauthorized")
		_ = conn.Close()
		return
	}

	peer, err := h.relay.Join(r.Context(), roomName, userID, conn)
	if err != nil {
		switch {
		case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrRoomCompleted), errors.Is(err, ErrNotParticipant):
			// Ordinary close, no payload: the client learns nothing about
			// whether the room exists.
			_ = conn.Close()
		default:
			log.Printf("meeting: join failed for user %s in room %s: %v", userID, roomName, err)
			conn.WriteClose(websocket.CloseInternalServerErr, "")
			_ = conn.Close()
		}
		return
	}

	go peer.DeliverLoop(conn.Done())

	h.readLoop(r.Context(), raw, conn, peer)

	peer.Leave(r.Context())
	_ = conn.Close()
}

// readLoop feeds inbound frames to the peer until the connection drops.
func (h *Handler) readLoop(ctx context.Context, raw *websocket.Conn, conn *ws.Connection, peer *Peer) {
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
				log.Printf("meeting: read error for user %s: %v", peer.UserID(), err)
			}
			return
		}
		if messageType == websocket.TextMessage {
			peer.HandleFrame(ctx, data)
		}
	}
}
