package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"studyhub/pkg/interfaces"
	"studyhub/pkg/types"
)

// Service manages direct threads on top of the eligibility rules.
type Service struct {
	eligibility *EligibilityService
	threads     interfaces.ThreadStore
}

// NewService wires thread creation behind the eligibility check.
func NewService(eligibility *EligibilityService, threads interfaces.ThreadStore) *Service {
	return &Service{eligibility: eligibility, threads: threads}
}

// GetOrCreateDirectThread returns the unique direct thread between the two
// users, creating it when absent. An existing thread is returned to either
// member regardless of who could initiate it; only the create path enforces
// initiation rules, with ErrNotEligible carrying the rule's reason. The
// boolean reports creation.
func (s *Service) GetOrCreateDirectThread(ctx context.Context, initiatorID, targetID string) (*types.DirectThread, bool, error) {
	key := types.DirectKey(initiatorID, targetID)
	existing, err := s.threads.GetDirectThreadByKey(ctx, key)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, interfaces.ErrThreadNotFound) {
		return nil, false, err
	}

	eligibility, err := s.eligibility.CanInitiate(ctx, initiatorID, targetID)
	if err != nil {
		return nil, false, err
	}
	if !eligibility.Allowed {
		return nil, false, fmt.Errorf("%w: %s", ErrNotEligible, eligibility.Reason)
	}

	thread := &types.DirectThread{
		ID:        uuid.New().String(),
		DirectKey: key,
		CreatedBy: initiatorID,
		CreatedAt: time.Now(),
	}
	return s.threads.GetOrCreateDirectThread(ctx, thread, []string{initiatorID, targetID})
}

// CanParticipate reports whether the user may post to an existing thread.
// Plain membership: once a thread exists, either participant may post
// regardless of who could have initiated it.
func (s *Service) CanParticipate(ctx context.Context, threadID, userID string) (bool, error) {
	return s.threads.IsThreadParticipant(ctx, threadID, userID)
}
