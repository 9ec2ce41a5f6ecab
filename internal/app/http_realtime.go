package app

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"journeymap/api/internal/auth"
	"journeymap/api/internal/journey"
	"journeymap/api/internal/rbac"
	"journeymap/api/internal/realtime"
	"journeymap/api/internal/store"
)

func (s *HTTPServer) registerRealtimeRoutes(api *mux.Router) {
	api.HandleFunc("/boards/{id}/presence", s.authed(s.handlePresence)).Methods(http.MethodGet)
	api.HandleFunc("/boards/{id}/ws", s.handleBoardSocket).Methods(http.MethodGet)
}

func (s *HTTPServer) handlePresence(w http.ResponseWriter, r *http.Request, session Session) {
	participants, err := s.service.Presence(r.Context(), session, pathVar(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"participants": participants})
}

// handleBoardSocket accepts the access token as a query parameter since
// browsers cannot set headers on WebSocket requests.
func (s *HTTPServer) handleBoardSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		s.fail(w, r, err)
		return
	}

	boardID := pathVar(r, "id")
	if _, _, err := s.service.authorize(r.Context(), session, store.ScopeBoard, boardID, rbac.ActionRead); err != nil {
		s.fail(w, r, err)
		return
	}
	if s.service.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "REALTIME_UNAVAILABLE", "Live collaboration is not available", nil)
		return
	}

	// The upgrader replaces our JSON content type with its own handshake headers.
	w.Header().Del("Content-Type")
	err = s.service.hub.Serve(w, r, boardID, realtime.Participant{
		UserID:   session.UserID,
		UserName: session.UserName,
		Color:    journey.PresenceColor(session.UserID),
	})
	if err != nil {
		s.logger.WithRequest(r.Context()).Warn("websocket upgrade failed", "board_id", boardID, "error", err)
	}
}
