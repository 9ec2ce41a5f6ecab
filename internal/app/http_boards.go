package app

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

func (s *HTTPServer) registerBoardRoutes(api *mux.Router) {
	api.HandleFunc("/boards/{id}", s.authed(s.handleGetBoard)).Methods(http.MethodGet)
	api.HandleFunc("/boards/{id}", s.authed(s.handleUpdateBoard)).Methods(http.MethodPatch)
	api.HandleFunc("/boards/{id}", s.authed(s.handleDeleteBoard)).Methods(http.MethodDelete)
	api.HandleFunc("/boards/{id}/duplicate", s.authed(s.handleDuplicateBoard)).Methods(http.MethodPost)
	api.HandleFunc("/boards/{id}/phases", s.authed(s.handleCreatePhase)).Methods(http.MethodPost)
	api.HandleFunc("/boards/{id}/phases/order", s.authed(s.handleReorderPhases)).Methods(http.MethodPut)
	api.HandleFunc("/boards/{id}/tags", s.authed(s.handleListTags)).Methods(http.MethodGet)
	api.HandleFunc("/boards/{id}/tags", s.authed(s.handleCreateTag)).Methods(http.MethodPost)
	api.HandleFunc("/boards/{id}/emotions", s.authed(s.handleEmotionJourney)).Methods(http.MethodGet)
	api.HandleFunc("/boards/{id}/versions", s.authed(s.handleListVersions)).Methods(http.MethodGet)
	api.HandleFunc("/boards/{id}/versions", s.authed(s.handleSnapshotBoard)).Methods(http.MethodPost)
	api.HandleFunc("/boards/{id}/versions/{hash}", s.authed(s.handleGetVersion)).Methods(http.MethodGet)
	api.HandleFunc("/boards/{id}/versions/{hash}/restore", s.authed(s.handleRestoreVersion)).Methods(http.MethodPost)
	api.HandleFunc("/boards/{id}/export", s.authed(s.handleExportBoard)).Methods(http.MethodPost)

	api.HandleFunc("/phases/{id}", s.authed(s.handleUpdatePhase)).Methods(http.MethodPatch)
	api.HandleFunc("/phases/{id}", s.authed(s.handleDeletePhase)).Methods(http.MethodDelete)
	api.HandleFunc("/phases/{id}/columns", s.authed(s.handleCreateColumn)).Methods(http.MethodPost)

	api.HandleFunc("/columns/{id}", s.authed(s.handleDeleteColumn)).Methods(http.MethodDelete)
	api.HandleFunc("/columns/{id}/move", s.authed(s.handleMoveColumn)).Methods(http.MethodPost)
	api.HandleFunc("/columns/{id}/blocks", s.authed(s.handleCreateBlock)).Methods(http.MethodPost)
	api.HandleFunc("/columns/{id}/emotion", s.authed(s.handleUpsertEmotion)).Methods(http.MethodPut)
	api.HandleFunc("/columns/{id}/emotion", s.authed(s.handleDeleteEmotion)).Methods(http.MethodDelete)
}

func (s *HTTPServer) handleGetBoard(w http.ResponseWriter, r *http.Request, session Session) {
	board, err := s.service.GetBoard(r.Context(), session, pathVar(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (s *HTTPServer) handleUpdateBoard(w http.ResponseWriter, r *http.Request, session Session) {
	var body BoardInput
	if !decode(w, r, &body) {
		return
	}
	board, err := s.service.UpdateBoard(r.Context(), session, pathVar(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (s *HTTPServer) handleDeleteBoard(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeleteBoard(r.Context(), session, pathVar(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *HTTPServer) handleDuplicateBoard(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &body) {
		return
	}
	board, err := s.service.DuplicateBoard(r.Context(), session, pathVar(r, "id"), body.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, board)
}

func (s *HTTPServer) handleCreatePhase(w http.ResponseWriter, r *http.Request, session Session) {
	var body PhaseInput
	if !decode(w, r, &body) {
		return
	}
	phase, err := s.service.CreatePhase(r.Context(), session, pathVar(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, phase)
}

func (s *HTTPServer) handleReorderPhases(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		PhaseIDs []string `json:"phaseIds"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := s.service.ReorderPhases(r.Context(), session, pathVar(r, "id"), body.PhaseIDs); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *HTTPServer) handleListTags(w http.ResponseWriter, r *http.Request, session Session) {
	tags, err := s.service.ListTags(r.Context(), session, pathVar(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (s *HTTPServer) handleCreateTag(w http.ResponseWriter, r *http.Request, session Session) {
	var body TagInput
	if !decode(w, r, &body) {
		return
	}
	tag, err := s.service.CreateTag(r.Context(), session, pathVar(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (s *HTTPServer) handleEmotionJourney(w http.ResponseWriter, r *http.Request, session Session) {
	series, err := s.service.EmotionJourney(r.Context(), session, pathVar(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *HTTPServer) handleListVersions(w http.ResponseWriter, r *http.Request, session Session) {
	versions, err := s.service.ListVersions(r.Context(), session, pathVar(r, "id"), queryInt(r, "limit", 50))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (s *HTTPServer) handleSnapshotBoard(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Label string `json:"label"`
	}
	if !decode(w, r, &body) {
		return
	}
	result, err := s.service.SnapshotBoard(r.Context(), session, pathVar(r, "id"), body.Label)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if created, _ := result["created"].(bool); created {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

func (s *HTTPServer) handleGetVersion(w http.ResponseWriter, r *http.Request, session Session) {
	result, err := s.service.GetVersion(r.Context(), session, pathVar(r, "id"), pathVar(r, "hash"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleRestoreVersion(w http.ResponseWriter, r *http.Request, session Session) {
	result, err := s.service.RestoreVersion(r.Context(), session, pathVar(r, "id"), pathVar(r, "hash"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleExportBoard streams the rendered document instead of JSON.
func (s *HTTPServer) handleExportBoard(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Format string `json:"format"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Format == "" {
		body.Format = r.URL.Query().Get("format")
	}
	result, err := s.service.ExportBoard(r.Context(), session, pathVar(r, "id"), body.Format)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleUpdatePhase(w http.ResponseWriter, r *http.Request, session Session) {
	var body PhaseInput
	if !decode(w, r, &body) {
		return
	}
	phase, err := s.service.UpdatePhase(r.Context(), session, pathVar(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, phase)
}

func (s *HTTPServer) handleDeletePhase(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeletePhase(r.Context(), session, pathVar(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *HTTPServer) handleCreateColumn(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Position *int `json:"position"`
	}
	if !decode(w, r, &body) {
		return
	}
	column, err := s.service.CreateColumn(r.Context(), session, pathVar(r, "id"), body.Position)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, column)
}

func (s *HTTPServer) handleDeleteColumn(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeleteColumn(r.Context(), session, pathVar(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *HTTPServer) handleMoveColumn(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		PhaseID  string `json:"phaseId"`
		Position int    `json:"position"`
	}
	if !decode(w, r, &body) {
		return
	}
	column, err := s.service.MoveColumn(r.Context(), session, pathVar(r, "id"), body.PhaseID, body.Position)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, column)
}

func (s *HTTPServer) handleCreateBlock(w http.ResponseWriter, r *http.Request, session Session) {
	var body BlockInput
	if !decode(w, r, &body) {
		return
	}
	block, err := s.service.CreateBlock(r.Context(), session, pathVar(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, block)
}

func (s *HTTPServer) handleUpsertEmotion(w http.ResponseWriter, r *http.Request, session Session) {
	var body EmotionInput
	if !decode(w, r, &body) {
		return
	}
	emotion, err := s.service.UpsertEmotion(r.Context(), session, pathVar(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emotion)
}

func (s *HTTPServer) handleDeleteEmotion(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeleteEmotion(r.Context(), session, pathVar(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}
