package store

import (
	"database/sql"
	"fmt"
)

// schemaStatements is the full read-model DDL, applied idempotently at
// startup. Timestamp columns hold unix nanoseconds.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          TEXT PRIMARY KEY,
		first_name  TEXT NOT NULL DEFAULT '',
		last_name   TEXT NOT NULL DEFAULT '',
		email       TEXT NOT NULL DEFAULT '',
		role        TEXT NOT NULL,
		is_active   INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_role_active ON users(role, is_active)`,

	`CREATE TABLE IF NOT EXISTS meetings (
		id               TEXT PRIMARY KEY,
		title            TEXT NOT NULL,
		room_name        TEXT NOT NULL UNIQUE,
		host_id          TEXT NOT NULL,
		student_id       TEXT NOT NULL DEFAULT '',
		teacher_id       TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL DEFAULT 'scheduled',
		scheduled_at     INTEGER NOT NULL,
		actual_start     INTEGER,
		actual_end       INTEGER,
		duration_minutes INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_meetings_status ON meetings(status)`,

	`CREATE TABLE IF NOT EXISTS meeting_participants (
		meeting_id TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		joined_at  INTEGER NOT NULL,
		left_at    INTEGER,
		PRIMARY KEY (meeting_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id           TEXT PRIMARY KEY,
		recipient_id TEXT NOT NULL,
		title        TEXT NOT NULL DEFAULT '',
		body         TEXT NOT NULL DEFAULT '',
		is_read      INTEGER NOT NULL DEFAULT 0,
		created_at   INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, is_read)`,

	`CREATE TABLE IF NOT EXISTS dm_threads (
		id         TEXT PRIMARY KEY,
		direct_key TEXT NOT NULL UNIQUE,
		created_by TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS dm_thread_participants (
		thread_id    TEXT NOT NULL,
		user_id      TEXT NOT NULL,
		joined_at    INTEGER NOT NULL,
		last_read_at INTEGER,
		PRIMARY KEY (thread_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dm_participants_user ON dm_thread_participants(user_id)`,

	`CREATE TABLE IF NOT EXISTS dm_messages (
		id         TEXT PRIMARY KEY,
		thread_id  TEXT NOT NULL,
		sender_id  TEXT NOT NULL,
		body       TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dm_messages_thread ON dm_messages(thread_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS discussion_threads (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS discussion_thread_participants (
		thread_id    TEXT NOT NULL,
		user_id      TEXT NOT NULL,
		joined_at    INTEGER NOT NULL,
		last_read_at INTEGER,
		PRIMARY KEY (thread_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_disc_participants_user ON discussion_thread_participants(user_id)`,

	`CREATE TABLE IF NOT EXISTS discussion_messages (
		id         TEXT PRIMARY KEY,
		thread_id  TEXT NOT NULL,
		sender_id  TEXT NOT NULL,
		body       TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_disc_messages_thread ON discussion_messages(thread_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS teacher_assignments (
		teacher_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		PRIMARY KEY (teacher_id, student_id)
	)`,
}

func applySchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
