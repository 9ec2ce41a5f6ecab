package app

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s *HTTPServer) registerProjectRoutes(api *mux.Router) {
	api.HandleFunc("/projects", s.authed(s.handleListProjects)).Methods(http.MethodGet)
	api.HandleFunc("/projects", s.authed(s.handleCreateProject)).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}", s.authed(s.handleGetProject)).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", s.authed(s.handleUpdateProject)).Methods(http.MethodPatch)
	api.HandleFunc("/projects/{id}", s.authed(s.handleDeleteProject)).Methods(http.MethodDelete)

	api.HandleFunc("/projects/{id}/members", s.authed(s.handleListMembers)).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/members", s.authed(s.handleAddMember)).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/members/{userId}", s.authed(s.handleUpdateMember)).Methods(http.MethodPatch)
	api.HandleFunc("/projects/{id}/members/{userId}", s.authed(s.handleRemoveMember)).Methods(http.MethodDelete)

	api.HandleFunc("/projects/{id}/boards", s.authed(s.handleListBoards)).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/boards", s.authed(s.handleCreateBoard)).Methods(http.MethodPost)
}

func (s *HTTPServer) handleListProjects(w http.ResponseWriter, r *http.Request, session Session) {
	items, err := s.service.ListProjects(r.Context(), session)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": items})
}

func (s *HTTPServer) handleCreateProject(w http.ResponseWriter, r *http.Request, session Session) {
	var body ProjectInput
	if !decode(w, r, &body) {
		return
	}
	project, err := s.service.CreateProject(r.Context(), session, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (s *HTTPServer) handleGetProject(w http.ResponseWriter, r *http.Request, session Session) {
	project, err := s.service.GetProject(r.Context(), session, pathVar(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *HTTPServer) handleUpdateProject(w http.ResponseWriter, r *http.Request, session Session) {
	var body ProjectInput
	if !decode(w, r, &body) {
		return
	}
	project, err := s.service.UpdateProject(r.Context(), session, pathVar(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *HTTPServer) handleDeleteProject(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeleteProject(r.Context(), session, pathVar(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *HTTPServer) handleListMembers(w http.ResponseWriter, r *http.Request, session Session) {
	items, err := s.service.ListMembers(r.Context(), session, pathVar(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": items})
}

func (s *HTTPServer) handleAddMember(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if !decode(w, r, &body) {
		return
	}
	member, err := s.service.AddMember(r.Context(), session, pathVar(r, "id"), body.Email, body.Role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (s *HTTPServer) handleUpdateMember(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Role string `json:"role"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := s.service.UpdateMemberRole(r.Context(), session, pathVar(r, "id"), pathVar(r, "userId"), body.Role); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *HTTPServer) handleRemoveMember(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.RemoveMember(r.Context(), session, pathVar(r, "id"), pathVar(r, "userId")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *HTTPServer) handleListBoards(w http.ResponseWriter, r *http.Request, session Session) {
	items, err := s.service.ListBoards(r.Context(), session, pathVar(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"boards": items})
}

func (s *HTTPServer) handleCreateBoard(w http.ResponseWriter, r *http.Request, session Session) {
	var body BoardInput
	if !decode(w, r, &body) {
		return
	}
	board, err := s.service.CreateBoard(r.Context(), session, pathVar(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, board)
}
