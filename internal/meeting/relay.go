// Package meeting is the signaling relay for live peer-to-peer meetings:
// WebRTC offer/answer/candidate routing to a specific participant, in-room
// feature broadcast, participant presence tracking and the room lifecycle
// transitions the relay drives.
package meeting

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"studyhub/internal/bus"
	"studyhub/internal/dashboard"
	"studyhub/internal/worker"
	"studyhub/pkg/interfaces"
	"studyhub/pkg/types"
)

// Relay owns room admission and the per-room broadcast groups. All checks
// happen synchronously before any group publish: the relay never broadcasts
// a message it has not authorized.
type Relay struct {
	bus      interfaces.Bus
	store    interfaces.MeetingStore
	users    interfaces.UserDirectory
	streamer *dashboard.Streamer
	pool     *worker.Pool
}

// NewRelay wires the relay dependencies.
func NewRelay(b interfaces.Bus, store interfaces.MeetingStore, users interfaces.UserDirectory,
	streamer *dashboard.Streamer, pool *worker.Pool) *Relay {
	return &Relay{
		bus:      b,
		store:    store,
		users:    users,
		streamer: streamer,
		pool:     pool,
	}
}

// Peer is one live room connection after a successful Join.
type Peer struct {
	relay   *Relay
	meeting *types.Meeting
	user    *types.User
	connID  string
	conn    interfaces.Sender
	sub     interfaces.Subscription
}

// Join admits a connection to a room. Rejected when the room does not
// exist, the meeting is completed (terminal, no further joins), or the user
// is not one of host, student or teacher. On success the participant record
// is upserted, the scheduled→in_progress transition fires if this is the
// first activity, the joiner gets the active-participant snapshot and the
// rest of the room is told about the join.
func (r *Relay) Join(ctx context.Context, roomName, userID string, conn interfaces.Sender) (*Peer, error) {
	meeting, err := r.store.GetMeetingByRoom(ctx, roomName)
	if err != nil {
		return nil, ErrRoomNotFound
	}
	if meeting.Status == types.MeetingCompleted {
		return nil, ErrRoomCompleted
	}
	if !meeting.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}

	user, err := r.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	sub, err := r.bus.Subscribe(bus.MeetingGroup(roomName))
	if err != nil {
		return nil, err
	}

	peer := &Peer{
		relay:   r,
		meeting: meeting,
		user:    user,
		connID:  uuid.New().String(),
		conn:    conn,
		sub:     sub,
	}

	now := time.Now()
	if err := r.store.UpsertParticipant(ctx, meeting.ID, user.ID, now); err != nil {
		log.Printf("meeting: participant upsert failed for user %s in room %s: %v", user.ID, roomName, err)
	}

	if meeting.Status == types.MeetingScheduled {
		transitioned, err := r.store.MarkMeetingInProgress(ctx, meeting.ID, now)
		if err != nil {
			log.Printf("meeting: status transition failed for room %s: %v", roomName, err)
		} else if transitioned {
			meeting.Status = types.MeetingInProgress
			// Status affects the active-meeting badge of every member.
			members := meeting.MemberIDs()
			r.submitOrRun(func(taskCtx context.Context) {
				r.streamer.PublishBadgesToMany(taskCtx, members)
			})
		}
	}

	// Snapshot is a best-effort point-in-time read; it may race with a
	// concurrent join, and clients treat participant adds as idempotent.
	// The joiner is excluded: the snapshot lists who was already in the
	// room, so the first joiner gets an empty list.
	snapshot, err := r.store.ActiveParticipants(ctx, meeting.ID)
	if err != nil {
		log.Printf("meeting: snapshot query failed for room %s: %v", roomName, err)
		snapshot = nil
	}
	participants := make([]map[string]string, 0, len(snapshot))
	for _, p := range snapshot {
		if p.UserID == user.ID {
			continue
		}
		participants = append(participants, map[string]string{
			"user_id":   p.UserID,
			"user_name": p.UserName,
		})
	}
	if err := conn.WriteJSON(map[string]interface{}{
		"type":         "participants_snapshot",
		"participants": participants,
	}); err != nil {
		log.Printf("meeting: snapshot send failed for user %s: %v", user.ID, err)
	}

	peer.broadcastParticipantEvent("joined")

	return peer, nil
}

// DeliverLoop pumps room traffic to this connection until the subscription
// or the done channel closes. Frames from this connection are skipped;
// targeted frames are delivered only to the addressed participant.
func (p *Peer) DeliverLoop(done <-chan struct{}) {
	for {
		select {
		case payload, ok := <-p.sub.C():
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal(payload, &env); err != nil {
				continue
			}
			if env.SenderConn == p.connID {
				continue
			}
			if env.TargetUserID != "" && env.TargetUserID != p.user.ID {
				continue
			}
			if err := p.conn.WriteRaw(env.Frame); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// HandleFrame processes one inbound frame. Malformed payloads and unknown
// kinds are silently ignored; the only client-visible error is the
// screen-share permission denial.
func (p *Peer) HandleFrame(ctx context.Context, data []byte) {
	var frame map[string]interface{}
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}
	typeStr, _ := frame["type"].(string)
	kind := ParseKind(typeStr)

	switch kind {
	case KindOffer, KindAnswer, KindCandidate, KindNegotiationNeeded:
		p.relaySignal(frame)
	case KindScreenShare:
		if active, _ := frame["active"].(bool); active {
			// Permission check hits the store; run it off the read loop so
			// a slow query cannot stall relay for the rest of the room.
			p.relay.submitOrRun(func(taskCtx context.Context) {
				p.relayScreenShare(taskCtx, frame)
			})
			return
		}
		p.relayFeature(frame)
	case KindChat, KindWhiteboard, KindWhiteboardClearOwn, KindReaction,
		KindToggleAudio, KindToggleVideo, KindMeetingEnd:
		p.relayFeature(frame)
	case KindUnknown:
		// Unknown type: ignored, no error to the client.
	}
}

// relaySignal stamps the server-known identity, validates the addressed
// target and publishes to the room. Unknown targets are dropped silently.
func (p *Peer) relaySignal(frame map[string]interface{}) {
	target, _ := frame["target_user_id"].(string)
	if target != "" && !p.meeting.HasParticipant(target) {
		return
	}
	p.stampIdentity(frame)
	p.publish(frame, target)
}

// relayScreenShare enforces share permission before broadcasting. Denial
// goes to the sender only; nothing reaches the room.
func (p *Peer) relayScreenShare(ctx context.Context, frame map[string]interface{}) {
	if !p.relay.canScreenShare(ctx, p.meeting.RoomName, p.user.ID) {
		if err := p.conn.WriteJSON(map[string]string{
			"type":    "error",
			"message": "You do not have permission to share your screen.",
		}); err != nil {
			log.Printf("meeting: screen share denial send failed for user %s: %v", p.user.ID, err)
		}
		return
	}
	p.relayFeature(frame)
}

// relayFeature stamps identity and broadcasts to every other connection in
// the room.
func (p *Peer) relayFeature(frame map[string]interface{}) {
	p.stampIdentity(frame)
	p.publish(frame, "")
}

// stampIdentity overwrites sender fields with the server-known identity.
// Client-asserted sender information is never trusted.
func (p *Peer) stampIdentity(frame map[string]interface{}) {
	frame["sender_id"] = p.user.ID
	frame["user_name"] = p.user.DisplayName()
}

func (p *Peer) publish(frame map[string]interface{}, targetUserID string) {
	raw, err := json.Marshal(frame)
	if err != nil {
		return
	}
	payload, err := json.Marshal(envelope{
		SenderConn:   p.connID,
		TargetUserID: targetUserID,
		Frame:        raw,
	})
	if err != nil {
		return
	}
	if err := p.relay.bus.Publish(bus.MeetingGroup(p.meeting.RoomName), payload); err != nil {
		log.Printf("meeting: publish failed in room %s: %v", p.meeting.RoomName, err)
	}
}

func (p *Peer) broadcastParticipantEvent(event string) {
	frame := map[string]interface{}{
		"type":      "participant_event",
		"event":     event,
		"user_id":   p.user.ID,
		"user_name": p.user.DisplayName(),
	}
	p.publish(frame, "")
}

// Leave tells the room the participant left, records left_at and leaves the
// group. Disconnect never forces a room-status transition; ending the
// meeting is an explicit host action outside the relay.
func (p *Peer) Leave(ctx context.Context) {
	p.broadcastParticipantEvent("left")

	meetingID, userID := p.meeting.ID, p.user.ID
	p.relay.submitOrRun(func(taskCtx context.Context) {
		if err := p.relay.store.MarkParticipantLeft(taskCtx, meetingID, userID, time.Now()); err != nil {
			log.Printf("meeting: participant leave tracking failed for user %s: %v", userID, err)
		}
	})

	p.relay.bus.Unsubscribe(p.sub)
}

// UserID returns the peer's authenticated user ID.
func (p *Peer) UserID() string { return p.user.ID }

// canScreenShare re-reads the meeting so a membership change since join is
// honored. Any of student, teacher or host may share.
func (r *Relay) canScreenShare(ctx context.Context, roomName, userID string) bool {
	meeting, err := r.store.GetMeetingByRoom(ctx, roomName)
	if err != nil {
		return false
	}
	return meeting.HasParticipant(userID)
}

// submitOrRun prefers the worker pool and falls back to inline execution
// when the pool is saturated or stopped, so tracking work is never lost.
func (r *Relay) submitOrRun(task worker.Task) {
	if err := r.pool.Submit(task); err != nil {
		task(context.Background())
	}
}
