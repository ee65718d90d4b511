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

const meetingColumns = `id, title, room_name, host_id, student_id, teacher_id, status,
	scheduled_at, actual_start, actual_end, duration_minutes`

func scanMeeting(row *sql.Row) (*types.Meeting, error) {
	var m types.Meeting
	var status string
	var scheduledAt int64
	var actualStart, actualEnd sql.NullInt64
	err := row.Scan(&m.ID, &m.Title, &m.RoomName, &m.HostID, &m.StudentID, &m.TeacherID,
		&status, &scheduledAt, &actualStart, &actualEnd, &m.DurationMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrMeetingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan meeting: %w", err)
	}
	m.Status = types.MeetingStatus(status)
	m.ScheduledAt = fromNanos(scheduledAt)
	m.ActualStart = fromNullNanos(actualStart)
	m.ActualEnd = fromNullNanos(actualEnd)
	return &m, nil
}

// CreateMeeting persists a new scheduled meeting.
func (s *Store) CreateMeeting(ctx context.Context, m *types.Meeting) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO meetings (id, title, room_name, host_id, student_id, teacher_id,
				status, scheduled_at, actual_start, actual_end, duration_minutes)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.Title, m.RoomName, m.HostID, m.StudentID, m.TeacherID,
			string(m.Status), toNanos(m.ScheduledAt), toNullNanos(m.ActualStart),
			toNullNanos(m.ActualEnd), m.DurationMinutes)
		return err
	})
}

// GetMeeting returns one meeting by ID, or interfaces.ErrMeetingNotFound.
func (s *Store) GetMeeting(ctx context.Context, meetingID string) (*types.Meeting, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, meetingID)
	return scanMeeting(row)
}

// GetMeetingByRoom resolves a room token to its meeting, or
// interfaces.ErrMeetingNotFound.
func (s *Store) GetMeetingByRoom(ctx context.Context, roomName string) (*types.Meeting, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+meetingColumns+` FROM meetings WHERE room_name = ?`, roomName)
	return scanMeeting(row)
}

// MarkMeetingInProgress is the scheduled→in_progress compare-and-set for
// the first participant join. Returns true only for the call that won the
// transition; actual_start is set once and never overwritten.
func (s *Store) MarkMeetingInProgress(ctx context.Context, meetingID string, startedAt time.Time) (bool, error) {
	var transitioned bool
	err := s.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx,
			`UPDATE meetings
			 SET status = ?, actual_start = COALESCE(actual_start, ?)
			 WHERE id = ? AND status = ?`,
			string(types.MeetingInProgress), toNanos(startedAt), meetingID, string(types.MeetingScheduled))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		transitioned = n > 0
		return nil
	})
	return transitioned, err
}

// CompleteMeeting is the explicit host end action: status completed with
// actual_end and duration recorded. Repeat calls leave a completed meeting
// unchanged.
func (s *Store) CompleteMeeting(ctx context.Context, meetingID string, endedAt time.Time) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`UPDATE meetings
			 SET status = ?,
			     actual_end = ?,
			     duration_minutes = CASE
			         WHEN actual_start IS NOT NULL THEN MAX(0, (? - actual_start) / 60000000000)
			         ELSE 0
			     END
			 WHERE id = ? AND status != ?`,
			string(types.MeetingCompleted), toNanos(endedAt), toNanos(endedAt),
			meetingID, string(types.MeetingCompleted))
		return err
	})
}

// CancelMeeting marks a still-scheduled meeting cancelled. The relay never
// drives this; it belongs to the external scheduling action.
func (s *Store) CancelMeeting(ctx context.Context, meetingID string) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`UPDATE meetings SET status = ? WHERE id = ? AND status = ?`,
			string(types.MeetingCancelled), meetingID, string(types.MeetingScheduled))
		return err
	})
}

// UpsertParticipant creates or refreshes the (meeting, user) record,
// setting joined_at and clearing left_at. A rejoin produces a new current
// record under the same key.
func (s *Store) UpsertParticipant(ctx context.Context, meetingID, userID string, joinedAt time.Time) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO meeting_participants (meeting_id, user_id, joined_at, left_at)
			 VALUES (?, ?, ?, NULL)
			 ON CONFLICT(meeting_id, user_id)
			 DO UPDATE SET joined_at = excluded.joined_at, left_at = NULL`,
			meetingID, userID, toNanos(joinedAt))
		return err
	})
}

// MarkParticipantLeft sets left_at on the current record. Last write wins
// when the same user disconnects from duplicate tabs.
func (s *Store) MarkParticipantLeft(ctx context.Context, meetingID, userID string, leftAt time.Time) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`UPDATE meeting_participants SET left_at = ? WHERE meeting_id = ? AND user_id = ?`,
			toNanos(leftAt), meetingID, userID)
		return err
	})
}

// ActiveParticipants returns records with left_at unset, display names
// resolved from the user table (email fallback for blank names).
func (s *Store) ActiveParticipants(ctx context.Context, meetingID string) ([]*types.MeetingParticipant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.meeting_id, p.user_id, p.joined_at,
		        COALESCE(TRIM(u.first_name || ' ' || u.last_name), ''), COALESCE(u.email, '')
		 FROM meeting_participants p
		 LEFT JOIN users u ON u.id = p.user_id
		 WHERE p.meeting_id = ? AND p.left_at IS NULL
		 ORDER BY p.joined_at`,
		meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active participants: %w", err)
	}
	defer rows.Close()

	var participants []*types.MeetingParticipant
	for rows.Next() {
		var p types.MeetingParticipant
		var joinedAt int64
		var name, email string
		if err := rows.Scan(&p.MeetingID, &p.UserID, &joinedAt, &name, &email); err != nil {
			return nil, err
		}
		p.JoinedAt = fromNanos(joinedAt)
		if name == "" {
			name = email
		}
		p.UserName = name
		participants = append(participants, &p)
	}
	return participants, rows.Err()
}

// CountActiveMeetings counts meetings where the user is host, student or
// teacher and status is scheduled or in_progress.
func (s *Store) CountActiveMeetings(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM meetings
		 WHERE (host_id = ? OR student_id = ? OR teacher_id = ?)
		   AND status IN (?, ?)`,
		userID, userID, userID,
		string(types.MeetingScheduled), string(types.MeetingInProgress)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active meetings: %w", err)
	}
	return n, nil
}
