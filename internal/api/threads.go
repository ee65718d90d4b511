package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyhub/internal/chat"
	"studyhub/pkg/interfaces"
	"studyhub/pkg/types"
)

type createThreadRequest struct {
	InitiatorID string `json:"initiator_id"`
	TargetID    string `json:"target_id"`
}

type createThreadResponse struct {
	Thread  *types.DirectThread `json:"thread"`
	Created bool                `json:"created"`
}

type sendMessageRequest struct {
	SenderID string `json:"sender_id"`
	Body     string `json:"body"`
}

type readThreadRequest struct {
	UserID string `json:"user_id"`
}

// handleDirectThreads routes /api/threads/direct (get-or-create).
func (s *Server) handleDirectThreads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.InitiatorID == "" || req.TargetID == "" {
		s.sendError(w, "initiator_id and target_id are required", http.StatusBadRequest)
		return
	}

	thread, created, err := s.chat.GetOrCreateDirectThread(r.Context(), req.InitiatorID, req.TargetID)
	if err != nil {
		if errors.Is(err, chat.ErrNotEligible) {
			reason := strings.TrimPrefix(err.Error(), chat.ErrNotEligible.Error()+": ")
			s.sendError(w, reason, http.StatusForbidden)
			return
		}
		if errors.Is(err, interfaces.ErrUserNotFound) {
			s.sendError(w, "user not found", http.StatusNotFound)
			return
		}
		s.sendError(w, "failed to create thread", http.StatusInternalServerError)
		return
	}

	if created {
		w.WriteHeader(http.StatusCreated)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(createThreadResponse{Thread: thread, Created: created})
}

// handleThreadByID routes /api/threads/{id}, {id}/messages and {id}/read.
func (s *Server) handleThreadByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/threads/")
	parts := strings.Split(rest, "/")
	threadID := parts[0]
	if threadID == "" || threadID == "direct" {
		s.sendError(w, "not found", http.StatusNotFound)
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "messages" && r.Method == http.MethodPost:
		s.sendThreadMessage(w, r, threadID)
	case len(parts) == 2 && parts[1] == "read" && r.Method == http.MethodPost:
		s.markThreadRead(w, r, threadID)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.deleteThread(w, r, threadID)
	default:
		s.sendError(w, "not found", http.StatusNotFound)
	}
}

// sendThreadMessage posts a message into a direct thread. Posting requires
// membership only; the initiation rules applied at creation time do not
// re-run here. The live thread group sees the message immediately and the
// other members get a badge refresh.
func (s *Server) sendThreadMessage(w http.ResponseWriter, r *http.Request, threadID string) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SenderID == "" || req.Body == "" {
		s.sendError(w, "sender_id and body are required", http.StatusBadRequest)
		return
	}

	member, err := s.chat.CanParticipate(r.Context(), threadID, req.SenderID)
	if err != nil {
		s.sendError(w, "failed to check membership", http.StatusInternalServerError)
		return
	}
	if !member {
		s.sendError(w, "not a participant of this thread", http.StatusForbidden)
		return
	}

	msg := &types.ThreadMessage{
		ID:        uuid.New().String(),
		ThreadID:  threadID,
		SenderID:  req.SenderID,
		Body:      req.Body,
		CreatedAt: time.Now(),
	}
	if err := s.store.AddDirectMessage(r.Context(), msg); err != nil {
		s.sendError(w, "failed to store message", http.StatusInternalServerError)
		return
	}

	s.streamer.PublishToThread(threadID, types.EventThreadMessageCreated, map[string]interface{}{
		"message_id": msg.ID,
		"thread_id":  threadID,
		"sender_id":  msg.SenderID,
		"body":       msg.Body,
	})

	memberIDs, err := s.store.ThreadParticipantIDs(r.Context(), threadID)
	if err == nil {
		others := make([]string, 0, len(memberIDs))
		for _, id := range memberIDs {
			if id != req.SenderID {
				others = append(others, id)
			}
		}
		s.streamer.PublishBadgesToMany(r.Context(), others)
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(msg)
}

// markThreadRead advances the reader's per-thread cursor so everything up
// to now stops counting as unread, then refreshes their badges.
func (s *Server) markThreadRead(w http.ResponseWriter, r *http.Request, threadID string) {
	var req readThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		s.sendError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	member, err := s.chat.CanParticipate(r.Context(), threadID, req.UserID)
	if err != nil {
		s.sendError(w, "failed to check membership", http.StatusInternalServerError)
		return
	}
	if !member {
		s.sendError(w, "not a participant of this thread", http.StatusForbidden)
		return
	}

	if err := s.store.AdvanceReadCursor(r.Context(), threadID, req.UserID, time.Now()); err != nil {
		s.sendError(w, "failed to mark thread read", http.StatusInternalServerError)
		return
	}

	counts := s.streamer.PublishBadges(r.Context(), req.UserID)

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"badges": counts})
}

func (s *Server) deleteThread(w http.ResponseWriter, r *http.Request, threadID string) {
	memberIDs, err := s.store.DeleteDirectThread(r.Context(), threadID)
	if err != nil {
		if errors.Is(err, interfaces.ErrThreadNotFound) {
			s.sendError(w, "thread not found", http.StatusNotFound)
			return
		}
		s.sendError(w, "failed to delete thread", http.StatusInternalServerError)
		return
	}

	s.streamer.PublishToMany(memberIDs, types.EventThreadDeleted, map[string]interface{}{
		"thread_id": threadID,
	})
	s.streamer.PublishBadgesToMany(r.Context(), memberIDs)

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
}
