package types

import (
	"strings"
	"time"
)

// Role identifies what kind of account a user holds. Roles gate both
// direct-thread initiation rules and role-wide dashboard fan-out.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
	RoleCSRep   Role = "CS_REP"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole normalizes a role string. Returns false for anything outside
// the four known roles.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleStudent:
		return RoleStudent, true
	case RoleTeacher:
		return RoleTeacher, true
	case RoleCSRep:
		return RoleCSRep, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// User is the minimal read model of an account needed for addressing,
// authorization and identity stamping. Owned by the external user store.
type User struct {
	ID        string `json:"id" db:"id"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Email     string `json:"email" db:"email"`
	Role      Role   `json:"role" db:"role"`
	IsActive  bool   `json:"is_active" db:"is_active"`
}

// DisplayName is the server-stamped identity used in relayed frames.
// Falls back to the email address when both name parts are empty.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// MeetingStatus is the meeting lifecycle state. COMPLETED is terminal;
// CANCELLED is reachable only from SCHEDULED through scheduling actions.
type MeetingStatus string

const (
	MeetingScheduled  MeetingStatus = "scheduled"
	MeetingInProgress MeetingStatus = "in_progress"
	MeetingCompleted  MeetingStatus = "completed"
	MeetingCancelled  MeetingStatus = "cancelled"
)

// Meeting maps 1:1 to a signaling room addressed by RoomName, an opaque
// token distinct from the meeting ID.
type Meeting struct {
	ID              string        `json:"id" db:"id"`
	Title           string        `json:"title" db:"title"`
	RoomName        string        `json:"room_name" db:"room_name"`
	HostID          string        `json:"host_id" db:"host_id"`
	StudentID       string        `json:"student_id,omitempty" db:"student_id"`
	TeacherID       string        `json:"teacher_id,omitempty" db:"teacher_id"`
	Status          MeetingStatus `json:"status" db:"status"`
	ScheduledAt     time.Time     `json:"scheduled_at" db:"scheduled_at"`
	ActualStart     *time.Time    `json:"actual_start,omitempty" db:"actual_start"`
	ActualEnd       *time.Time    `json:"actual_end,omitempty" db:"actual_end"`
	DurationMinutes int           `json:"duration_minutes,omitempty" db:"duration_minutes"`
}

// HasParticipant reports whether userID is one of host, student or teacher.
// This is the authorization predicate for joining the room and for being a
// legitimate signaling target.
func (m *Meeting) HasParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return userID == m.HostID || userID == m.StudentID || userID == m.TeacherID
}

// MemberIDs returns the distinct non-empty host/student/teacher IDs, used
// for badge republish after lifecycle transitions.
func (m *Meeting) MemberIDs() []string {
	seen := make(map[string]bool, 3)
	var ids []string
	for _, id := range []string{m.HostID, m.StudentID, m.TeacherID} {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// MeetingParticipant is the per-(meeting,user) presence record. Rejoin
// upserts the row and clears LeftAt; the store is keyed, not append-only.
type MeetingParticipant struct {
	MeetingID string     `json:"meeting_id" db:"meeting_id"`
	UserID    string     `json:"user_id" db:"user_id"`
	UserName  string     `json:"user_name" db:"user_name"`
	JoinedAt  time.Time  `json:"joined_at" db:"joined_at"`
	LeftAt    *time.Time `json:"left_at,omitempty" db:"left_at"`
}

// BadgeCounts is the four-integer summary vector shown on every dashboard.
// Recomputed from source-of-truth queries on demand, never cached.
type BadgeCounts struct {
	NotificationsUnread int `json:"notifications_unread"`
	MessagesUnread      int `json:"messages_unread"`
	ThreadsUnread       int `json:"threads_unread"`
	MeetingsActive      int `json:"meetings_active"`
}

// Notification is a per-recipient alert record read by the badge aggregator.
type Notification struct {
	ID          string    `json:"id" db:"id"`
	RecipientID string    `json:"recipient_id" db:"recipient_id"`
	Title       string    `json:"title" db:"title"`
	Body        string    `json:"body" db:"body"`
	IsRead      bool      `json:"is_read" db:"is_read"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// DirectThread is a 1:1 conversation keyed by an order-independent pair key.
type DirectThread struct {
	ID        string    `json:"id" db:"id"`
	DirectKey string    `json:"direct_key" db:"direct_key"`
	CreatedBy string    `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DirectKey builds the order-independent pair identifier for a 1:1 thread.
func DirectKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// ThreadMessage is one message in a direct or discussion thread. Unread
// counting compares CreatedAt against the reader's per-thread cursor.
type ThreadMessage struct {
	ID        string    `json:"id" db:"id"`
	ThreadID  string    `json:"thread_id" db:"thread_id"`
	SenderID  string    `json:"sender_id" db:"sender_id"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
