package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyhub/internal/store"
	"studyhub/pkg/types"
)

type createNotificationRequest struct {
	RecipientID string `json:"recipient_id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
}

type recipientRequest struct {
	RecipientID string `json:"recipient_id"`
}

type countResponse struct {
	Count int `json:"count"`
}

// handleNotifications routes /api/notifications (create).
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createNotification(w, r)
	default:
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleNotificationByID routes /api/notifications/{id}, the {id}/read
// action, and the collection actions read-all and clear.
func (s *Server) handleNotificationByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/notifications/")
	parts := strings.Split(rest, "/")

	switch {
	case parts[0] == "read-all" && r.Method == http.MethodPost:
		s.markAllNotificationsRead(w, r)
	case parts[0] == "clear" && r.Method == http.MethodPost:
		s.clearNotifications(w, r)
	case len(parts) == 2 && parts[1] == "read" && r.Method == http.MethodPost:
		s.markNotificationRead(w, r, parts[0])
	case len(parts) == 1 && parts[0] != "" && r.Method == http.MethodDelete:
		s.deleteNotification(w, r, parts[0])
	default:
		s.sendError(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) createNotification(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.RecipientID == "" || req.Title == "" {
		s.sendError(w, "recipient_id and title are required", http.StatusBadRequest)
		return
	}

	n := &types.Notification{
		ID:          uuid.New().String(),
		RecipientID: req.RecipientID,
		Title:       req.Title,
		Body:        req.Body,
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateNotification(r.Context(), n); err != nil {
		s.sendError(w, "failed to create notification", http.StatusInternalServerError)
		return
	}

	s.streamer.PublishToUser(n.RecipientID, types.EventNotificationCreated, map[string]interface{}{
		"notification_id": n.ID,
		"title":           n.Title,
	})
	s.streamer.PublishBadges(r.Context(), n.RecipientID)

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(n)
}

func (s *Server) markNotificationRead(w http.ResponseWriter, r *http.Request, notificationID string) {
	var req recipientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.RecipientID == "" {
		s.sendError(w, "recipient_id is required", http.StatusBadRequest)
		return
	}

	if err := s.store.MarkNotificationRead(r.Context(), notificationID, req.RecipientID); err != nil {
		if errors.Is(err, store.ErrNotificationNotFound) {
			s.sendError(w, "notification not found", http.StatusNotFound)
			return
		}
		s.sendError(w, "failed to mark notification read", http.StatusInternalServerError)
		return
	}

	s.streamer.PublishToUser(req.RecipientID, types.EventNotificationUpdated, map[string]interface{}{
		"notification_id": notificationID,
	})
	s.streamer.PublishBadges(r.Context(), req.RecipientID)

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "read"})
}

func (s *Server) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	var req recipientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.RecipientID == "" {
		s.sendError(w, "recipient_id is required", http.StatusBadRequest)
		return
	}

	count, err := s.store.MarkAllNotificationsRead(r.Context(), req.RecipientID)
	if err != nil {
		s.sendError(w, "failed to mark notifications read", http.StatusInternalServerError)
		return
	}

	s.streamer.PublishToUser(req.RecipientID, types.EventNotificationsAllRead, map[string]interface{}{
		"count": count,
	})
	s.streamer.PublishBadges(r.Context(), req.RecipientID)

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(countResponse{Count: count})
}

func (s *Server) deleteNotification(w http.ResponseWriter, r *http.Request, notificationID string) {
	var req recipientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.RecipientID == "" {
		s.sendError(w, "recipient_id is required", http.StatusBadRequest)
		return
	}

	if err := s.store.DeleteNotification(r.Context(), notificationID, req.RecipientID); err != nil {
		if errors.Is(err, store.ErrNotificationNotFound) {
			s.sendError(w, "notification not found", http.StatusNotFound)
			return
		}
		s.sendError(w, "failed to delete notification", http.StatusInternalServerError)
		return
	}

	s.streamer.PublishToUser(req.RecipientID, types.EventNotificationDeleted, map[string]interface{}{
		"notification_id": notificationID,
	})
	s.streamer.PublishBadges(r.Context(), req.RecipientID)

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
}

func (s *Server) clearNotifications(w http.ResponseWriter, r *http.Request) {
	var req recipientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.RecipientID == "" {
		s.sendError(w, "recipient_id is required", http.StatusBadRequest)
		return
	}

	count, err := s.store.ClearNotifications(r.Context(), req.RecipientID)
	if err != nil {
		s.sendError(w, "failed to clear notifications", http.StatusInternalServerError)
		return
	}

	s.streamer.PublishToUser(req.RecipientID, types.EventNotificationsCleared, map[string]interface{}{
		"count": count,
	})
	s.streamer.PublishBadges(r.Context(), req.RecipientID)

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(countResponse{Count: count})
}
