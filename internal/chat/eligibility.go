// Package chat holds the direct-thread rules: who may open a 1:1
// conversation with whom, and the membership check that gates posting to an
// existing thread. Initiation is asymmetric by design; posting is not.
package chat

import (
	"context"
	"fmt"

	"studyhub/pkg/interfaces"
	"studyhub/pkg/types"
)

// Eligibility is the outcome of an initiation check. Reason is non-empty
// whenever Allowed is false.
type Eligibility struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// EligibilityService evaluates the initiation rules against the user
// directory and the external assignment predicate. Stateless.
type EligibilityService struct {
	users       interfaces.UserDirectory
	assignments interfaces.AssignmentChecker
}

// NewEligibilityService wires the rule engine's collaborators.
func NewEligibilityService(users interfaces.UserDirectory, assignments interfaces.AssignmentChecker) *EligibilityService {
	return &EligibilityService{users: users, assignments: assignments}
}

// CanInitiate decides whether initiator may open a new direct conversation
// with target. Rules in order: no self-chat; both parties active; admins
// and CS reps may start with anyone; students only with a teacher assigned
// to them; teachers with their assigned students and with admins, never
// first with a CS rep.
func (s *EligibilityService) CanInitiate(ctx context.Context, initiatorID, targetID string) (Eligibility, error) {
	if initiatorID == targetID {
		return Eligibility{Reason: "You cannot start a conversation with yourself."}, nil
	}

	initiator, err := s.users.GetUser(ctx, initiatorID)
	if err != nil {
		return Eligibility{}, fmt.Errorf("failed to resolve initiator: %w", err)
	}
	target, err := s.users.GetUser(ctx, targetID)
	if err != nil {
		return Eligibility{}, fmt.Errorf("failed to resolve target: %w", err)
	}

	if !initiator.IsActive || !target.IsActive {
		return Eligibility{Reason: "User is inactive."}, nil
	}

	switch initiator.Role {
	case types.RoleCSRep, types.RoleAdmin:
		return Eligibility{Allowed: true}, nil

	case types.RoleStudent:
		if target.Role == types.RoleTeacher {
			assigned, err := s.assignments.IsTeacherAssignedToStudent(ctx, target.ID, initiator.ID)
			if err != nil {
				return Eligibility{}, fmt.Errorf("failed to check assignment: %w", err)
			}
			if assigned {
				return Eligibility{Allowed: true}, nil
			}
		}
		return Eligibility{Reason: "Students can only start chats with assigned teachers."}, nil

	case types.RoleTeacher:
		if target.Role == types.RoleStudent {
			assigned, err := s.assignments.IsTeacherAssignedToStudent(ctx, initiator.ID, target.ID)
			if err != nil {
				return Eligibility{}, fmt.Errorf("failed to check assignment: %w", err)
			}
			if assigned {
				return Eligibility{Allowed: true}, nil
			}
			return Eligibility{Reason: "Not allowed."}, nil
		}
		if target.Role == types.RoleAdmin {
			return Eligibility{Allowed: true}, nil
		}
		if target.Role == types.RoleCSRep {
			return Eligibility{Reason: "Teachers can chat with CS-Reps only when CS-Reps initiate the chat."}, nil
		}
		return Eligibility{Reason: "Not allowed."}, nil

	default:
		return Eligibility{Reason: "Not allowed."}, nil
	}
}
