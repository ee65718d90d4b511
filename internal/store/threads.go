package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studyhub/pkg/interfaces"
	"studyhub/pkg/types"
)

// Direct (1:1) threads and discussion threads keep structurally independent
// storage but share the unread algorithm: per participant, count messages
// authored by someone else after COALESCE(last_read_at, joined_at), summed
// across the user's threads.

// GetOrCreateDirectThread returns the unique direct thread for the pair key,
// creating it (and both participant rows) when absent. The boolean reports
// whether a new thread was created. Eligibility is enforced by the caller;
// this is pure storage.
func (s *Store) GetOrCreateDirectThread(ctx context.Context, thread *types.DirectThread, participantIDs []string) (*types.DirectThread, bool, error) {
	existing, err := s.GetDirectThreadByKey(ctx, thread.DirectKey)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, interfaces.ErrThreadNotFound) {
		return nil, false, err
	}

	created := false
	err = s.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO dm_threads (id, direct_key, created_by, created_at)
			 VALUES (?, ?, ?, ?)`,
			thread.ID, thread.DirectKey, thread.CreatedBy, toNanos(thread.CreatedAt))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = n > 0
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	// A concurrent creator may have won the INSERT OR IGNORE race; re-read
	// either way so participants attach to the surviving row.
	actual, err := s.GetDirectThreadByKey(ctx, thread.DirectKey)
	if err != nil {
		return nil, false, err
	}

	now := time.Now()
	for _, userID := range participantIDs {
		uid := userID
		err = s.executeWrite(func(db *sql.DB) error {
			_, err := db.ExecContext(ctx,
				`INSERT OR IGNORE INTO dm_thread_participants (thread_id, user_id, joined_at, last_read_at)
				 VALUES (?, ?, ?, NULL)`,
				actual.ID, uid, toNanos(now))
			return err
		})
		if err != nil {
			return nil, false, err
		}
	}

	return actual, created, nil
}

// GetDirectThreadByKey resolves an existing thread by its order-independent
// pair key.
func (s *Store) GetDirectThreadByKey(ctx context.Context, directKey string) (*types.DirectThread, error) {
	var t types.DirectThread
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, direct_key, created_by, created_at FROM dm_threads WHERE direct_key = ?`,
		directKey).Scan(&t.ID, &t.DirectKey, &t.CreatedBy, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get direct thread: %w", err)
	}
	t.CreatedAt = fromNanos(createdAt)
	return &t, nil
}

// IsThreadParticipant is the membership check that gates posting to an
// existing direct thread. Membership, not initiation eligibility.
func (s *Store) IsThreadParticipant(ctx context.Context, threadID, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dm_thread_participants WHERE thread_id = ? AND user_id = ?`,
		threadID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check thread membership: %w", err)
	}
	return n > 0, nil
}

// ThreadParticipantIDs lists the members of a direct thread.
func (s *Store) ThreadParticipantIDs(ctx context.Context, threadID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM dm_thread_participants WHERE thread_id = ?`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list thread participants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddDirectMessage appends one message to a direct thread.
func (s *Store) AddDirectMessage(ctx context.Context, m *types.ThreadMessage) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO dm_messages (id, thread_id, sender_id, body, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			m.ID, m.ThreadID, m.SenderID, m.Body, toNanos(m.CreatedAt))
		return err
	})
}

// AdvanceReadCursor moves last_read_at forward for the reader. Never moves
// the cursor backwards.
func (s *Store) AdvanceReadCursor(ctx context.Context, threadID, userID string, readAt time.Time) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`UPDATE dm_thread_participants
			 SET last_read_at = MAX(COALESCE(last_read_at, 0), ?)
			 WHERE thread_id = ? AND user_id = ?`,
			toNanos(readAt), threadID, userID)
		return err
	})
}

// DeleteDirectThread removes a thread with its participants and messages,
// returning the former member IDs so thread.deleted events and badge
// republish can reach them.
func (s *Store) DeleteDirectThread(ctx context.Context, threadID string) ([]string, error) {
	members, err := s.ThreadParticipantIDs(ctx, threadID)
	if err != nil {
		return nil, err
	}
	err = s.executeWrite(func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, `DELETE FROM dm_messages WHERE thread_id = ?`, threadID); err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, `DELETE FROM dm_thread_participants WHERE thread_id = ?`, threadID); err != nil {
			return err
		}
		_, err := db.ExecContext(ctx, `DELETE FROM dm_threads WHERE id = ?`, threadID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// CountUnreadDirectMessages sums unread direct messages across every thread
// the user participates in.
func (s *Store) CountUnreadDirectMessages(ctx context.Context, userID string) (int, error) {
	return s.countUnread(ctx, userID, "dm_thread_participants", "dm_messages")
}

// CountUnreadThreadMessages applies the same cursor algorithm to the
// discussion subsystem.
func (s *Store) CountUnreadThreadMessages(ctx context.Context, userID string) (int, error) {
	return s.countUnread(ctx, userID, "discussion_thread_participants", "discussion_messages")
}

// countUnread implements the shared cursor algorithm. Table names come from
// the two fixed call sites above, never from input.
func (s *Store) countUnread(ctx context.Context, userID, participantTable, messageTable string) (int, error) {
	query := fmt.Sprintf(
		`SELECT COALESCE(SUM(cnt), 0) FROM (
			SELECT (
				SELECT COUNT(*) FROM %s m
				WHERE m.thread_id = p.thread_id
				  AND m.sender_id != p.user_id
				  AND m.created_at > COALESCE(p.last_read_at, p.joined_at)
			) AS cnt
			FROM %s p
			WHERE p.user_id = ?
		)`, messageTable, participantTable)

	var total int
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return total, nil
}

// Discussion-thread fixtures: the discussion subsystem lives elsewhere; the
// read model only needs enough writes to mirror its state for counting.

// AddDiscussionParticipant upserts a discussion membership row.
func (s *Store) AddDiscussionParticipant(ctx context.Context, threadID, userID string, joinedAt time.Time) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO discussion_thread_participants (thread_id, user_id, joined_at, last_read_at)
			 VALUES (?, ?, ?, NULL)`,
			threadID, userID, toNanos(joinedAt))
		return err
	})
}

// AddDiscussionMessage appends one message to a discussion thread.
func (s *Store) AddDiscussionMessage(ctx context.Context, m *types.ThreadMessage) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO discussion_messages (id, thread_id, sender_id, body, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			m.ID, m.ThreadID, m.SenderID, m.Body, toNanos(m.CreatedAt))
		return err
	})
}

// AdvanceDiscussionReadCursor mirrors AdvanceReadCursor for discussions.
func (s *Store) AdvanceDiscussionReadCursor(ctx context.Context, threadID, userID string, readAt time.Time) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`UPDATE discussion_thread_participants
			 SET last_read_at = MAX(COALESCE(last_read_at, 0), ?)
			 WHERE thread_id = ? AND user_id = ?`,
			toNanos(readAt), threadID, userID)
		return err
	})
}
