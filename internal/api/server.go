// Package api is the HTTP facade the domain collaborators use: meeting
// scheduling and the explicit end action, notification lifecycle, direct
// threads and messages, badge reads and the generic event publish
// endpoint. No business logic beyond dispatch; every mutation routes
// through the store and republishes events/badges through the streamer.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"studyhub/internal/badge"
	"studyhub/internal/chat"
	"studyhub/internal/dashboard"
	"studyhub/internal/store"
)

// BusStats is the optional stats surface of the bus backend. The in-memory
// bus implements it; Redis-backed deployments report zeros.
type BusStats interface {
	Stats() map[string]int
}

// Server serves the collaborator-facing HTTP API.
type Server struct {
	store    *store.Store
	streamer *dashboard.Streamer
	badges   *badge.Aggregator
	chat     *chat.Service
	busStats BusStats
	router   *http.ServeMux
}

// NewServer wires all handlers. busStats may be nil.
func NewServer(st *store.Store, streamer *dashboard.Streamer, badges *badge.Aggregator,
	chatService *chat.Service, busStats BusStats) *Server {
	s := &Server{
		store:    st,
		streamer: streamer,
		badges:   badges,
		chat:     chatService,
		busStats: busStats,
		router:   http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/api/meetings", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleMeetings))))
	s.router.Handle("/api/meetings/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleMeetingByID))))
	s.router.Handle("/api/notifications", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleNotifications))))
	s.router.Handle("/api/notifications/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleNotificationByID))))
	s.router.Handle("/api/threads/direct", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleDirectThreads))))
	s.router.Handle("/api/threads/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleThreadByID))))
	s.router.Handle("/api/events", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleEvents))))
	s.router.Handle("/api/users/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleUserByID))))
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Database  string         `json:"database"`
	Bus       map[string]int `json:"bus"`
}

// healthCheck verifies store connectivity and reports bus stats.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	dbStatus := "healthy"
	if err := s.store.HealthCheck(); err != nil {
		status = "unhealthy"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	busStats := map[string]int{}
	if s.busStats != nil {
		busStats = s.busStats.Stats()
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Database:  dbStatus,
		Bus:       busStats,
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(response)
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
