package types

// Dashboard event names published over the per-user stream. Domain
// collaborators reference these constants instead of raw strings so a rename
// stays a compile-time concern.
const (
	EventBadgesUpdated        = "badges.updated"
	EventNotificationCreated  = "notification.created"
	EventNotificationUpdated  = "notification.updated"
	EventNotificationDeleted  = "notification.deleted"
	EventNotificationsCleared = "notifications.cleared"
	EventNotificationsAllRead = "notifications.all_read"
	EventAssignmentChanged    = "assignment.changed"
	EventHomeworkChanged      = "homework.changed"
	EventExamChanged          = "exam.changed"
	EventInvoiceChanged       = "invoice.changed"
	EventAnnouncementChanged  = "announcement.changed"
	EventMeetingScheduled     = "meeting.scheduled"
	EventMeetingEnded         = "meeting.ended"
	EventThreadDeleted        = "thread.deleted"
	EventThreadMessageCreated = "thread.message_created"
)
