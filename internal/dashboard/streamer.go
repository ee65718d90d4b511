// Package dashboard implements the per-user event stream: the fire-and-
// forget publish API that domain collaborators call from request-handling
// code, and the WebSocket endpoint each client keeps open.
package dashboard

import (
	"context"
	"encoding/json"
	"log"

	"studyhub/internal/badge"
	"studyhub/internal/bus"
	"studyhub/pkg/interfaces"
	"studyhub/pkg/types"
)

// eventFrame is the outbound envelope for every published event.
type eventFrame struct {
	Type  string                 `json:"type"`
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// Streamer publishes named events to per-user broadcast groups. Every
// publish is best-effort: failures are logged and swallowed so the
// triggering business operation always completes. None of the publish
// methods return an error; that contract is the signature.
type Streamer struct {
	bus    interfaces.Bus
	users  interfaces.UserDirectory
	badges *badge.Aggregator
}

// NewStreamer wires the broadcast layer, the user directory used for
// role fan-out, and the badge aggregator.
func NewStreamer(b interfaces.Bus, users interfaces.UserDirectory, badges *badge.Aggregator) *Streamer {
	return &Streamer{
		bus:    b,
		users:  users,
		badges: badges,
	}
}

// PublishToUser delivers one event to every live connection of one user.
// With no live connection the event is dropped; there is no queuing or
// replay.
func (s *Streamer) PublishToUser(userID, event string, data map[string]interface{}) {
	if userID == "" || event == "" {
		return
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	payload, err := json.Marshal(eventFrame{Type: "event", Event: event, Data: data})
	if err != nil {
		log.Printf("dashboard: failed to encode event %s: %v", event, err)
		return
	}
	if err := s.bus.Publish(bus.UserGroup(userID), payload); err != nil {
		log.Printf("dashboard: failed to publish event %s to user %s: %v", event, userID, err)
	}
}

// PublishToMany delivers the event to each distinct non-empty user ID.
func (s *Streamer) PublishToMany(userIDs []string, event string, data map[string]interface{}) {
	seen := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		s.PublishToUser(id, event, data)
	}
}

// PublishToThread delivers the event to every live connection subscribed
// to a thread group, regardless of which user owns the connection.
func (s *Streamer) PublishToThread(threadID, event string, data map[string]interface{}) {
	if threadID == "" || event == "" {
		return
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	payload, err := json.Marshal(eventFrame{Type: "event", Event: event, Data: data})
	if err != nil {
		log.Printf("dashboard: failed to encode event %s: %v", event, err)
		return
	}
	if err := s.bus.Publish(bus.ThreadGroup(threadID), payload); err != nil {
		log.Printf("dashboard: failed to publish event %s to thread %s: %v", event, threadID, err)
	}
}

// PublishToRole resolves the active users of a role and publishes to each,
// returning the recipient count. Unknown roles publish to nobody.
//
// Fan-out is sequential per user: each publish is a non-blocking send onto
// buffered subscriber queues, so a role-wide broadcast costs O(recipients)
// channel sends with no I/O on this path.
func (s *Streamer) PublishToRole(ctx context.Context, role types.Role, event string, data map[string]interface{}) int {
	if _, ok := types.ParseRole(string(role)); !ok {
		return 0
	}
	ids, err := s.users.ListActiveUserIDs(ctx, role)
	if err != nil {
		log.Printf("dashboard: failed to resolve role %s for event %s: %v", role, event, err)
		return 0
	}
	s.PublishToMany(ids, event, data)
	return len(ids)
}

// PublishBadges recomputes the badge vector from the source collaborators
// and publishes it to the user. Called after any mutation that can change
// one of the four counts.
func (s *Streamer) PublishBadges(ctx context.Context, userID string) types.BadgeCounts {
	counts := s.badges.Compute(ctx, userID)
	s.PublishToUser(userID, types.EventBadgesUpdated, map[string]interface{}{
		"badges": counts,
	})
	return counts
}

// PublishBadgesToMany republishes badges for each distinct user, typically
// the members of a meeting or thread after a shared mutation.
func (s *Streamer) PublishBadgesToMany(ctx context.Context, userIDs []string) {
	seen := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		s.PublishBadges(ctx, id)
	}
}
