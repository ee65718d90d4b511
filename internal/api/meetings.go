package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyhub/pkg/interfaces"
	"studyhub/pkg/types"
)

type createMeetingRequest struct {
	Title       string    `json:"title"`
	HostID      string    `json:"host_id"`
	StudentID   string    `json:"student_id,omitempty"`
	TeacherID   string    `json:"teacher_id,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

type endMeetingRequest struct {
	UserID string `json:"user_id"`
}

// newRoomToken derives the opaque room address from a fresh UUID. Twelve
// hex characters is enough to make collisions a non-issue at this scale
// while keeping the join URL short.
func newRoomToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// handleMeetings routes /api/meetings (create).
func (s *Server) handleMeetings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createMeeting(w, r)
	default:
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleMeetingByID routes /api/meetings/{id} and /api/meetings/{id}/end.
func (s *Server) handleMeetingByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/meetings/")
	parts := strings.Split(rest, "/")
	meetingID := parts[0]
	if meetingID == "" {
		s.sendError(w, "meeting ID required", http.StatusBadRequest)
		return
	}

	if len(parts) == 2 && parts[1] == "end" && r.Method == http.MethodPost {
		s.endMeeting(w, r, meetingID)
		return
	}
	if len(parts) == 1 && r.Method == http.MethodGet {
		s.getMeeting(w, r, meetingID)
		return
	}
	s.sendError(w, "not found", http.StatusNotFound)
}

func (s *Server) createMeeting(w http.ResponseWriter, r *http.Request) {
	var req createMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" || req.HostID == "" {
		s.sendError(w, "title and host_id are required", http.StatusBadRequest)
		return
	}
	if req.ScheduledAt.IsZero() {
		req.ScheduledAt = time.Now()
	}

	meeting := &types.Meeting{
		ID:          uuid.New().String(),
		Title:       req.Title,
		RoomName:    newRoomToken(),
		HostID:      req.HostID,
		StudentID:   req.StudentID,
		TeacherID:   req.TeacherID,
		Status:      types.MeetingScheduled,
		ScheduledAt: req.ScheduledAt,
	}
	if err := s.store.CreateMeeting(r.Context(), meeting); err != nil {
		s.sendError(w, "failed to create meeting", http.StatusInternalServerError)
		return
	}

	members := meeting.MemberIDs()
	s.streamer.PublishToMany(members, types.EventMeetingScheduled, map[string]interface{}{
		"meeting_id": meeting.ID,
		"room_name":  meeting.RoomName,
		"title":      meeting.Title,
	})
	s.streamer.PublishBadgesToMany(r.Context(), members)

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(meeting)
}

func (s *Server) getMeeting(w http.ResponseWriter, r *http.Request, meetingID string) {
	meeting, err := s.store.GetMeeting(r.Context(), meetingID)
	if err != nil {
		if errors.Is(err, interfaces.ErrMeetingNotFound) {
			s.sendError(w, "meeting not found", http.StatusNotFound)
			return
		}
		s.sendError(w, "failed to load meeting", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(meeting)
}

// endMeeting is the host's explicit completion action. Only the host may
// end a meeting; completion records actual_end and the derived duration,
// then notifies every member and refreshes their badge vectors.
func (s *Server) endMeeting(w http.ResponseWriter, r *http.Request, meetingID string) {
	var req endMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	meeting, err := s.store.GetMeeting(r.Context(), meetingID)
	if err != nil {
		if errors.Is(err, interfaces.ErrMeetingNotFound) {
			s.sendError(w, "meeting not found", http.StatusNotFound)
			return
		}
		s.sendError(w, "failed to load meeting", http.StatusInternalServerError)
		return
	}
	if req.UserID == "" || req.UserID != meeting.HostID {
		s.sendError(w, "only the host can end a meeting", http.StatusForbidden)
		return
	}
	if meeting.Status == types.MeetingCompleted {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(meeting)
		return
	}

	if err := s.store.CompleteMeeting(r.Context(), meetingID, time.Now()); err != nil {
		s.sendError(w, "failed to end meeting", http.StatusInternalServerError)
		return
	}
	meeting, err = s.store.GetMeeting(r.Context(), meetingID)
	if err != nil {
		s.sendError(w, "failed to load meeting", http.StatusInternalServerError)
		return
	}

	members := meeting.MemberIDs()
	s.streamer.PublishToMany(members, types.EventMeetingEnded, map[string]interface{}{
		"meeting_id": meeting.ID,
		"room_name":  meeting.RoomName,
	})
	s.streamer.PublishBadgesToMany(r.Context(), members)

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(meeting)
}
