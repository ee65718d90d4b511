package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"studyhub/pkg/types"
)

// publishEventRequest addresses an event to one user, a list of users, or
// every active user of a role. Exactly one addressing field should be set;
// when several are set all of them are honored.
type publishEventRequest struct {
	Event   string                 `json:"event"`
	Data    map[string]interface{} `json:"data,omitempty"`
	UserID  string                 `json:"user_id,omitempty"`
	UserIDs []string               `json:"user_ids,omitempty"`
	Role    string                 `json:"role,omitempty"`
}

type publishEventResponse struct {
	Recipients int `json:"recipients"`
}

// handleEvents is the generic publish endpoint the CRUD subsystems call
// after their own mutations (homework.changed, exam.changed and friends).
// Delivery is fire-and-forget; the response count reflects addressed users,
// not confirmed deliveries.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req publishEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Event == "" {
		s.sendError(w, "event is required", http.StatusBadRequest)
		return
	}
	if req.UserID == "" && len(req.UserIDs) == 0 && req.Role == "" {
		s.sendError(w, "user_id, user_ids or role is required", http.StatusBadRequest)
		return
	}

	recipients := 0
	if req.UserID != "" {
		s.streamer.PublishToUser(req.UserID, req.Event, req.Data)
		recipients++
	}
	if len(req.UserIDs) > 0 {
		s.streamer.PublishToMany(req.UserIDs, req.Event, req.Data)
		recipients += len(req.UserIDs)
	}
	if req.Role != "" {
		role, ok := types.ParseRole(req.Role)
		if !ok {
			s.sendError(w, "unknown role", http.StatusBadRequest)
			return
		}
		recipients += s.streamer.PublishToRole(r.Context(), role, req.Event, req.Data)
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(publishEventResponse{Recipients: recipients})
}

// handleUserByID routes /api/users/{id}/badges, the on-demand badge read.
func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/users/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "badges" || r.Method != http.MethodGet {
		s.sendError(w, "not found", http.StatusNotFound)
		return
	}

	counts := s.badges.Compute(r.Context(), parts[0])
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"badges": counts})
}
