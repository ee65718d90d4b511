package interfaces

import (
	"context"
	"time"

	"studyhub/pkg/types"
)

// UserDirectory resolves user identities and role-wide recipient sets.
// Read-only here; the user records are owned by an external collaborator.
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (*types.User, error)
	ListActiveUserIDs(ctx context.Context, role types.Role) ([]string, error)
}

// MeetingStore is everything the signaling relay needs from persistent
// state: room lookup, participant tracking and the two lifecycle
// transitions the relay and the end-meeting action drive.
type MeetingStore interface {
	GetMeetingByRoom(ctx context.Context, roomName string) (*types.Meeting, error)
	GetMeeting(ctx context.Context, meetingID string) (*types.Meeting, error)

	// UpsertParticipant creates or refreshes the (meeting, user) record,
	// setting joined_at and clearing left_at. Rejoin-safe.
	UpsertParticipant(ctx context.Context, meetingID, userID string, joinedAt time.Time) error

	// MarkParticipantLeft sets left_at on the current record.
	MarkParticipantLeft(ctx context.Context, meetingID, userID string, leftAt time.Time) error

	// ActiveParticipants returns records with left_at unset, with display
	// names resolved, for the join snapshot.
	ActiveParticipants(ctx context.Context, meetingID string) ([]*types.MeetingParticipant, error)

	// MarkMeetingInProgress is the scheduled→in_progress compare-and-set.
	// Returns true only for the transition that won; actual_start is set
	// once and never overwritten.
	MarkMeetingInProgress(ctx context.Context, meetingID string, startedAt time.Time) (bool, error)

	// CompleteMeeting is the explicit end action: status completed,
	// actual_end and duration recorded. Idempotent on repeat calls.
	CompleteMeeting(ctx context.Context, meetingID string, endedAt time.Time) error
}

// ThreadStore covers direct-thread creation and the membership check that
// gates posting to an existing thread.
type ThreadStore interface {
	// GetDirectThreadByKey resolves an existing thread by its pair key,
	// returning ErrThreadNotFound when the pair has no thread yet.
	GetDirectThreadByKey(ctx context.Context, directKey string) (*types.DirectThread, error)
	GetOrCreateDirectThread(ctx context.Context, thread *types.DirectThread, participantIDs []string) (*types.DirectThread, bool, error)
	IsThreadParticipant(ctx context.Context, threadID, userID string) (bool, error)
	ThreadParticipantIDs(ctx context.Context, threadID string) ([]string, error)

	// AdvanceReadCursor moves the user's per-thread last_read_at forward.
	AdvanceReadCursor(ctx context.Context, threadID, userID string, readAt time.Time) error
}

// AssignmentChecker is the external "is teacher assigned to student"
// predicate consulted by the eligibility rules.
type AssignmentChecker interface {
	IsTeacherAssignedToStudent(ctx context.Context, teacherID, studentID string) (bool, error)
}
