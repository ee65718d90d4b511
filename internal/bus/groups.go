// Package bus implements the broadcast layer behind every fan-out:
// an in-memory group registry for single-instance deployments and a Redis
// Pub/Sub backend for horizontal scaling. Both satisfy interfaces.Bus.
package bus

// Group names must stay ASCII and reasonably short; UUIDs are safe.

// UserGroup is the per-user dashboard stream group.
func UserGroup(userID string) string {
	return "dashboard_user_" + userID
}

// MeetingGroup is the per-room signaling group.
func MeetingGroup(roomName string) string {
	return "meeting_" + roomName
}

// ThreadGroup is the per-conversation message group.
func ThreadGroup(threadID string) string {
	return "thread_" + threadID
}
