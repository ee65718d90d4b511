package interfaces

import "context"

// One port per badge source so each count can be unit-tested and swapped
// independently. The aggregator composes the four without depending on
// concrete storage.

// NotificationCounter counts notification records with is_read=false.
type NotificationCounter interface {
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
}

// UnreadMessageCounter sums, over every direct thread the user participates
// in, messages authored by someone else after the user's read cursor.
type UnreadMessageCounter interface {
	CountUnreadDirectMessages(ctx context.Context, userID string) (int, error)
}

// UnreadThreadCounter applies the same cursor algorithm to the discussion
// thread subsystem, which keeps structurally independent storage.
type UnreadThreadCounter interface {
	CountUnreadThreadMessages(ctx context.Context, userID string) (int, error)
}

// ActiveMeetingCounter counts meetings where the user is host, student or
// teacher and status is scheduled or in_progress.
type ActiveMeetingCounter interface {
	CountActiveMeetings(ctx context.Context, userID string) (int, error)
}
