// Package badge computes the per-user count vector shown on every
// dashboard. The aggregator owns no state: every call recomputes from the
// four source collaborators, trading query cost for correctness.
package badge

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"studyhub/pkg/interfaces"
	"studyhub/pkg/types"
)

// Aggregator composes the four independent count sources. Each source is a
// port so it can be unit-tested and swapped on its own.
type Aggregator struct {
	notifications interfaces.NotificationCounter
	messages      interfaces.UnreadMessageCounter
	threads       interfaces.UnreadThreadCounter
	meetings      interfaces.ActiveMeetingCounter
}

// NewAggregator wires the four count sources.
func NewAggregator(
	notifications interfaces.NotificationCounter,
	messages interfaces.UnreadMessageCounter,
	threads interfaces.UnreadThreadCounter,
	meetings interfaces.ActiveMeetingCounter,
) *Aggregator {
	return &Aggregator{
		notifications: notifications,
		messages:      messages,
		threads:       threads,
		meetings:      meetings,
	}
}

// Compute queries the four sources concurrently and returns the snapshot.
// Badges are advisory UI state: a failing source contributes zero instead
// of failing the whole vector, and the miss self-heals on the next
// recompute. The snapshot is not atomic across sources; read inconsistency
// is acceptable.
func (a *Aggregator) Compute(ctx context.Context, userID string) types.BadgeCounts {
	var counts types.BadgeCounts

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := a.notifications.CountUnreadNotifications(ctx, userID)
		if err != nil {
			log.Printf("badge: notification count failed for user %s: %v", userID, err)
			return nil
		}
		counts.NotificationsUnread = n
		return nil
	})
	g.Go(func() error {
		n, err := a.messages.CountUnreadDirectMessages(ctx, userID)
		if err != nil {
			log.Printf("badge: direct message count failed for user %s: %v", userID, err)
			return nil
		}
		counts.MessagesUnread = n
		return nil
	})
	g.Go(func() error {
		n, err := a.threads.CountUnreadThreadMessages(ctx, userID)
		if err != nil {
			log.Printf("badge: thread message count failed for user %s: %v", userID, err)
			return nil
		}
		counts.ThreadsUnread = n
		return nil
	})
	g.Go(func() error {
		n, err := a.meetings.CountActiveMeetings(ctx, userID)
		if err != nil {
			log.Printf("badge: active meeting count failed for user %s: %v", userID, err)
			return nil
		}
		counts.MeetingsActive = n
		return nil
	})

	// Workers never return errors; Wait only synchronizes completion.
	_ = g.Wait()
	return counts
}
