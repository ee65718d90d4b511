package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"studyhub/internal/badge"
	"studyhub/internal/bus"
	"studyhub/internal/chat"
	"studyhub/internal/dashboard"
	"studyhub/internal/store"
	"studyhub/pkg/types"
)

type apiFixture struct {
	server *Server
	store  *store.Store
	bus    *bus.MemoryBus
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "api.db")
	st, err := store.Open(path, 30*time.Second)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	b := bus.NewMemoryBus(32)
	t.Cleanup(func() { _ = b.Close() })

	badges := badge.NewAggregator(st, st, st, st)
	streamer := dashboard.NewStreamer(b, st, badges)
	eligibility := chat.NewEligibilityService(st, st)
	chatService := chat.NewService(eligibility, st)

	return &apiFixture{
		server: NewServer(st, streamer, badges, chatService, b),
		store:  st,
		bus:    b,
	}
}

func (f *apiFixture) seedUser(t *testing.T, id string, role types.Role) {
	t.Helper()
	err := f.store.CreateUser(context.Background(), &types.User{
		ID: id, FirstName: "U", LastName: id, Email: id + "@example.com",
		Role: role, IsActive: true,
	})
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var health HealthResponse
	decode(t, rec, &health)
	if health.Status != "healthy" || health.Database != "healthy" {
		t.Errorf("unexpected health response: %+v", health)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("expected JSON content type, got %s", rec.Header().Get("Content-Type"))
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodOptions, "/api/meetings", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS headers on preflight")
	}
}

func TestCreateAndEndMeeting(t *testing.T) {
	f := newAPIFixture(t)
	f.seedUser(t, "host1", types.RoleTeacher)
	f.seedUser(t, "student1", types.RoleStudent)

	rec := f.do(t, http.MethodPost, "/api/meetings", map[string]interface{}{
		"title":      "Algebra",
		"host_id":    "host1",
		"student_id": "student1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var meeting types.Meeting
	decode(t, rec, &meeting)
	if meeting.Status != types.MeetingScheduled {
		t.Errorf("expected scheduled status, got %s", meeting.Status)
	}
	if len(meeting.RoomName) != 12 {
		t.Errorf("expected a 12-character room token, got %q", meeting.RoomName)
	}

	// Fetch it back.
	rec = f.do(t, http.MethodGet, "/api/meetings/"+meeting.ID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	// A non-host cannot end it.
	rec = f.do(t, http.MethodPost, "/api/meetings/"+meeting.ID+"/end", map[string]string{
		"user_id": "student1",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-host end, got %d", rec.Code)
	}

	// The host can.
	rec = f.do(t, http.MethodPost, "/api/meetings/"+meeting.ID+"/end", map[string]string{
		"user_id": "host1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var ended types.Meeting
	decode(t, rec, &ended)
	if ended.Status != types.MeetingCompleted {
		t.Errorf("expected completed, got %s", ended.Status)
	}

	// Ending again is a no-op.
	rec = f.do(t, http.MethodPost, "/api/meetings/"+meeting.ID+"/end", map[string]string{
		"user_id": "host1",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("expected idempotent end, got %d", rec.Code)
	}
}

func TestMeetingNotFound(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/meetings/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	var errResp ErrorResponse
	decode(t, rec, &errResp)
	if errResp.Code != http.StatusNotFound {
		t.Errorf("unexpected error body: %+v", errResp)
	}
}

func TestNotificationEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.seedUser(t, "u1", types.RoleStudent)

	rec := f.do(t, http.MethodPost, "/api/notifications", map[string]string{
		"recipient_id": "u1",
		"title":        "Homework graded",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var n types.Notification
	decode(t, rec, &n)

	// Badge read reflects the unread notification.
	rec = f.do(t, http.MethodGet, "/api/users/u1/badges", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var badgeResp struct {
		Badges types.BadgeCounts `json:"badges"`
	}
	decode(t, rec, &badgeResp)
	if badgeResp.Badges.NotificationsUnread != 1 {
		t.Errorf("expected 1 unread notification, got %d", badgeResp.Badges.NotificationsUnread)
	}

	rec = f.do(t, http.MethodPost, "/api/notifications/"+n.ID+"/read", map[string]string{
		"recipient_id": "u1",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Wrong recipient cannot touch it.
	rec = f.do(t, http.MethodDelete, "/api/notifications/"+n.ID, map[string]string{
		"recipient_id": "someone-else",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for foreign delete, got %d", rec.Code)
	}

	// Seed two more, then read-all and clear.
	f.do(t, http.MethodPost, "/api/notifications", map[string]string{"recipient_id": "u1", "title": "a"})
	f.do(t, http.MethodPost, "/api/notifications", map[string]string{"recipient_id": "u1", "title": "b"})

	rec = f.do(t, http.MethodPost, "/api/notifications/read-all", map[string]string{"recipient_id": "u1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var counted countResponse
	decode(t, rec, &counted)
	if counted.Count != 2 {
		t.Errorf("expected 2 marked read, got %d", counted.Count)
	}

	rec = f.do(t, http.MethodPost, "/api/notifications/clear", map[string]string{"recipient_id": "u1"})
	decode(t, rec, &counted)
	if counted.Count != 3 {
		t.Errorf("expected 3 cleared, got %d", counted.Count)
	}
}

func TestDirectThreadEligibilityEnforced(t *testing.T) {
	f := newAPIFixture(t)
	f.seedUser(t, "student1", types.RoleStudent)
	f.seedUser(t, "student2", types.RoleStudent)
	f.seedUser(t, "teacher1", types.RoleTeacher)
	if err := f.store.SetAssignment(context.Background(), "teacher1", "student1", true); err != nil {
		t.Fatalf("failed to seed assignment: %v", err)
	}

	// Student to assigned teacher: created.
	rec := f.do(t, http.MethodPost, "/api/threads/direct", map[string]string{
		"initiator_id": "student1",
		"target_id":    "teacher1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created createThreadResponse
	decode(t, rec, &created)
	if !created.Created || created.Thread == nil {
		t.Fatalf("unexpected response: %+v", created)
	}

	// Same pair again: existing thread, 200.
	rec = f.do(t, http.MethodPost, "/api/threads/direct", map[string]string{
		"initiator_id": "teacher1",
		"target_id":    "student1",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for existing thread, got %d", rec.Code)
	}

	// Student to student: rejected with the rule's reason.
	rec = f.do(t, http.MethodPost, "/api/threads/direct", map[string]string{
		"initiator_id": "student1",
		"target_id":    "student2",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	var errResp ErrorResponse
	decode(t, rec, &errResp)
	if errResp.Message != "Students can only start chats with assigned teachers." {
		t.Errorf("unexpected rejection reason: %q", errResp.Message)
	}
}

func TestThreadMessagesAndReadCursor(t *testing.T) {
	f := newAPIFixture(t)
	f.seedUser(t, "csrep1", types.RoleCSRep)
	f.seedUser(t, "teacher1", types.RoleTeacher)

	rec := f.do(t, http.MethodPost, "/api/threads/direct", map[string]string{
		"initiator_id": "csrep1",
		"target_id":    "teacher1",
	})
	var created createThreadResponse
	decode(t, rec, &created)
	threadID := created.Thread.ID

	// Non-member cannot post.
	f.seedUser(t, "student1", types.RoleStudent)
	rec = f.do(t, http.MethodPost, "/api/threads/"+threadID+"/messages", map[string]string{
		"sender_id": "student1",
		"body":      "hi",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-member, got %d", rec.Code)
	}

	// Member posts; the other member's badge count rises.
	rec = f.do(t, http.MethodPost, "/api/threads/"+threadID+"/messages", map[string]string{
		"sender_id": "csrep1",
		"body":      "hello there",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/users/teacher1/badges", nil)
	var badgeResp struct {
		Badges types.BadgeCounts `json:"badges"`
	}
	decode(t, rec, &badgeResp)
	if badgeResp.Badges.MessagesUnread != 1 {
		t.Errorf("expected 1 unread message for teacher1, got %d", badgeResp.Badges.MessagesUnread)
	}

	// Marking the thread read zeroes the count.
	rec = f.do(t, http.MethodPost, "/api/threads/"+threadID+"/read", map[string]string{
		"user_id": "teacher1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	decode(t, rec, &badgeResp)
	if badgeResp.Badges.MessagesUnread != 0 {
		t.Errorf("expected 0 unread after reading, got %d", badgeResp.Badges.MessagesUnread)
	}

	// Delete the thread.
	rec = f.do(t, http.MethodDelete, "/api/threads/"+threadID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for delete, got %d", rec.Code)
	}
}

func TestPublishEvents(t *testing.T) {
	f := newAPIFixture(t)
	f.seedUser(t, "s1", types.RoleStudent)
	f.seedUser(t, "s2", types.RoleStudent)

	rec := f.do(t, http.MethodPost, "/api/events", map[string]interface{}{
		"event":   "homework.changed",
		"user_id": "s1",
		"data":    map[string]string{"homework_id": "hw1"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp publishEventResponse
	decode(t, rec, &resp)
	if resp.Recipients != 1 {
		t.Errorf("expected 1 recipient, got %d", resp.Recipients)
	}

	// Role fan-out reports the resolved recipient count.
	rec = f.do(t, http.MethodPost, "/api/events", map[string]interface{}{
		"event": "announcement.changed",
		"role":  "STUDENT",
	})
	decode(t, rec, &resp)
	if resp.Recipients != 2 {
		t.Errorf("expected 2 recipients for role fan-out, got %d", resp.Recipients)
	}

	// Missing addressing is a client error.
	rec = f.do(t, http.MethodPost, "/api/events", map[string]interface{}{
		"event": "x",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	// Unknown roles are rejected.
	rec = f.do(t, http.MethodPost, "/api/events", map[string]interface{}{
		"event": "x",
		"role":  "WIZARD",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown role, got %d", rec.Code)
	}
}
