package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"studyhub/pkg/interfaces"
	"studyhub/pkg/types"
)

// Mock thread store for testing
type mockThreadStore struct {
	mu      sync.Mutex
	threads map[string]*types.DirectThread // directKey -> thread
	members map[string]map[string]bool     // threadID -> userID set

	shouldFailCreate bool
}

func newMockThreadStore() *mockThreadStore {
	return &mockThreadStore{
		threads: make(map[string]*types.DirectThread),
		members: make(map[string]map[string]bool),
	}
}

func (m *mockThreadStore) GetDirectThreadByKey(ctx context.Context, directKey string) (*types.DirectThread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.threads[directKey]; ok {
		return existing, nil
	}
	return nil, interfaces.ErrThreadNotFound
}

func (m *mockThreadStore) GetOrCreateDirectThread(ctx context.Context, thread *types.DirectThread, participantIDs []string) (*types.DirectThread, bool, error) {
	if m.shouldFailCreate {
		return nil, false, errors.New("storage create failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.threads[thread.DirectKey]; ok {
		return existing, false, nil
	}
	m.threads[thread.DirectKey] = thread
	m.members[thread.ID] = make(map[string]bool)
	for _, id := range participantIDs {
		m.members[thread.ID][id] = true
	}
	return thread, true, nil
}

func (m *mockThreadStore) IsThreadParticipant(ctx context.Context, threadID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members[threadID][userID], nil
}

func (m *mockThreadStore) ThreadParticipantIDs(ctx context.Context, threadID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id := range m.members[threadID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *mockThreadStore) AdvanceReadCursor(ctx context.Context, threadID, userID string, readAt time.Time) error {
	return nil
}

func newServiceFixture() (*Service, *mockThreadStore) {
	eligibility, _, _ := newEligibilityFixture()
	threads := newMockThreadStore()
	return NewService(eligibility, threads), threads
}

func TestGetOrCreateDirectThreadAllowed(t *testing.T) {
	svc, _ := newServiceFixture()
	ctx := context.Background()

	thread, created, err := svc.GetOrCreateDirectThread(ctx, "student1", "teacher1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected creation on first call")
	}
	if thread.DirectKey != types.DirectKey("student1", "teacher1") {
		t.Errorf("unexpected direct key: %s", thread.DirectKey)
	}
	if thread.CreatedBy != "student1" {
		t.Errorf("expected initiator as creator, got %s", thread.CreatedBy)
	}

	// The reverse direction resolves the same thread.
	same, created, err := svc.GetOrCreateDirectThread(ctx, "teacher1", "student1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected no creation on second call")
	}
	if same.ID != thread.ID {
		t.Errorf("expected the same thread, got %s and %s", thread.ID, same.ID)
	}
}

func TestGetOrCreateDirectThreadReturnsExistingToNonInitiator(t *testing.T) {
	svc, _ := newServiceFixture()
	ctx := context.Background()

	// CS rep opens the thread; teachers cannot initiate toward CS reps,
	// but the teacher re-opening the existing thread must get it back.
	thread, _, err := svc.GetOrCreateDirectThread(ctx, "csrep1", "teacher1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	same, created, err := svc.GetOrCreateDirectThread(ctx, "teacher1", "csrep1")
	if err != nil {
		t.Fatalf("expected the existing thread, got %v", err)
	}
	if created {
		t.Error("expected no creation when the thread already exists")
	}
	if same.ID != thread.ID {
		t.Errorf("expected thread %s, got %s", thread.ID, same.ID)
	}
}

func TestGetOrCreateDirectThreadRejected(t *testing.T) {
	svc, threads := newServiceFixture()

	_, _, err := svc.GetOrCreateDirectThread(context.Background(), "student1", "student2")
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
	if len(threads.threads) != 0 {
		t.Error("expected no thread created for a rejected pair")
	}
}

func TestGetOrCreateDirectThreadStorageFailure(t *testing.T) {
	svc, threads := newServiceFixture()
	threads.shouldFailCreate = true

	_, _, err := svc.GetOrCreateDirectThread(context.Background(), "csrep1", "teacher1")
	if err == nil {
		t.Error("expected storage error to propagate")
	}
	if errors.Is(err, ErrNotEligible) {
		t.Error("storage failure must not masquerade as an eligibility rejection")
	}
}

func TestCanParticipateIsMembershipOnly(t *testing.T) {
	svc, _ := newServiceFixture()
	ctx := context.Background()

	// CS rep initiates toward a teacher; afterwards the teacher may post
	// even though teachers cannot initiate toward CS reps.
	thread, _, err := svc.GetOrCreateDirectThread(ctx, "csrep1", "teacher1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	member, err := svc.CanParticipate(ctx, thread.ID, "teacher1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !member {
		t.Error("expected the teacher to be able to post in an existing thread")
	}

	member, _ = svc.CanParticipate(ctx, thread.ID, "student1")
	if member {
		t.Error("expected a non-member to be rejected")
	}
}
