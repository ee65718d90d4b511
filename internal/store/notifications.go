package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"studyhub/pkg/types"
)

// CreateNotification inserts one notification record.
func (s *Store) CreateNotification(ctx context.Context, n *types.Notification) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO notifications (id, recipient_id, title, body, is_read, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			n.ID, n.RecipientID, n.Title, n.Body, boolToInt(n.IsRead), toNanos(n.CreatedAt))
		return err
	})
}

// MarkNotificationRead flips is_read on one record owned by the recipient.
func (s *Store) MarkNotificationRead(ctx context.Context, notificationID, recipientID string) error {
	return s.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx,
			`UPDATE notifications SET is_read = 1 WHERE id = ? AND recipient_id = ?`,
			notificationID, recipientID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotificationNotFound
		}
		return nil
	})
}

// MarkAllNotificationsRead flips is_read on every unread record for the
// recipient and returns how many changed.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error) {
	var updated int
	err := s.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx,
			`UPDATE notifications SET is_read = 1 WHERE recipient_id = ? AND is_read = 0`,
			recipientID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		updated = int(n)
		return nil
	})
	return updated, err
}

// DeleteNotification removes one record owned by the recipient.
func (s *Store) DeleteNotification(ctx context.Context, notificationID, recipientID string) error {
	return s.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx,
			`DELETE FROM notifications WHERE id = ? AND recipient_id = ?`,
			notificationID, recipientID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotificationNotFound
		}
		return nil
	})
}

// ClearNotifications removes every record for the recipient and returns how
// many were deleted.
func (s *Store) ClearNotifications(ctx context.Context, recipientID string) (int, error) {
	var deleted int
	err := s.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx,
			`DELETE FROM notifications WHERE recipient_id = ?`, recipientID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = int(n)
		return nil
	})
	return deleted, err
}

// GetNotification returns one record, or ErrNotificationNotFound.
func (s *Store) GetNotification(ctx context.Context, notificationID string) (*types.Notification, error) {
	var n types.Notification
	var isRead int
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, recipient_id, title, body, is_read, created_at
		 FROM notifications WHERE id = ?`, notificationID).
		Scan(&n.ID, &n.RecipientID, &n.Title, &n.Body, &isRead, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	n.IsRead = isRead != 0
	n.CreatedAt = fromNanos(createdAt)
	return &n, nil
}

// CountUnreadNotifications counts records with is_read=0 for the user.
func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = 0`,
		userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return n, nil
}
