package interfaces

import "context"

// Presence is the ephemeral online flag per user. Entries expire on their
// own after the idle TTL if not refreshed; absence means offline. SetOffline
// exists for immediacy on graceful disconnect only.
type Presence interface {
	SetOnline(ctx context.Context, userID string) error
	Refresh(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
	IsOnline(ctx context.Context, userID string) (bool, error)
}
