package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"studyhub/pkg/interfaces"
	"studyhub/pkg/types"
)

// CreateUser inserts or replaces a user record. The coordination layer is a
// read model for users; this exists for seeding and for mirroring updates
// from the user-management collaborator.
func (s *Store) CreateUser(ctx context.Context, user *types.User) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT OR REPLACE INTO users (id, first_name, last_name, email, role, is_active)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			user.ID, user.FirstName, user.LastName, user.Email, string(user.Role), boolToInt(user.IsActive))
		return err
	})
}

// GetUser returns one user, or interfaces.ErrUserNotFound.
func (s *Store) GetUser(ctx context.Context, userID string) (*types.User, error) {
	var u types.User
	var role string
	var active int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, email, role, is_active FROM users WHERE id = ?`,
		userID).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &role, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Role = types.Role(role)
	u.IsActive = active != 0
	return &u, nil
}

// ListActiveUserIDs returns the IDs of all active users with the role,
// backing role-wide dashboard fan-out.
func (s *Store) ListActiveUserIDs(ctx context.Context, role types.Role) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM users WHERE role = ? AND is_active = 1`, string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to list users by role: %w", err)
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

// SetAssignment records (or removes) the teacher→student assignment
// relationship consulted by direct-thread eligibility.
func (s *Store) SetAssignment(ctx context.Context, teacherID, studentID string, assigned bool) error {
	return s.executeWrite(func(db *sql.DB) error {
		if assigned {
			_, err := db.ExecContext(ctx,
				`INSERT OR IGNORE INTO teacher_assignments (teacher_id, student_id) VALUES (?, ?)`,
				teacherID, studentID)
			return err
		}
		_, err := db.ExecContext(ctx,
			`DELETE FROM teacher_assignments WHERE teacher_id = ? AND student_id = ?`,
			teacherID, studentID)
		return err
	})
}

// IsTeacherAssignedToStudent is the assignment predicate used by the
// eligibility rules.
func (s *Store) IsTeacherAssignedToStudent(ctx context.Context, teacherID, studentID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM teacher_assignments WHERE teacher_id = ? AND student_id = ?`,
		teacherID, studentID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check assignment: %w", err)
	}
	return n > 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
