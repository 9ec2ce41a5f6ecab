package app

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"journeymap/api/internal/objectstore"
)

// multipartOverhead leaves room for the form framing around the file part.
const multipartOverhead = 1 << 20

func (s *HTTPServer) registerBlockRoutes(api *mux.Router) {
	api.HandleFunc("/blocks/{id}", s.authed(s.handleGetBlock)).Methods(http.MethodGet)
	api.HandleFunc("/blocks/{id}", s.authed(s.handleUpdateBlock)).Methods(http.MethodPatch)
	api.HandleFunc("/blocks/{id}", s.authed(s.handleDeleteBlock)).Methods(http.MethodDelete)
	api.HandleFunc("/blocks/{id}/move", s.authed(s.handleMoveBlock)).Methods(http.MethodPost)
	api.HandleFunc("/blocks/{id}/comments", s.authed(s.handleListComments)).Methods(http.MethodGet)
	api.HandleFunc("/blocks/{id}/comments", s.authed(s.handleCreateComment)).Methods(http.MethodPost)
	api.HandleFunc("/blocks/{id}/tags", s.authed(s.handleSetBlockTags)).Methods(http.MethodPut)
	api.HandleFunc("/blocks/{id}/tags/{tagId}", s.authed(s.handleAddBlockTag)).Methods(http.MethodPost)
	api.HandleFunc("/blocks/{id}/tags/{tagId}", s.authed(s.handleRemoveBlockTag)).Methods(http.MethodDelete)
	api.HandleFunc("/blocks/{id}/attachments", s.authed(s.handleListAttachments)).Methods(http.MethodGet)
	api.HandleFunc("/blocks/{id}/attachments", s.authed(s.handleCreateAttachment)).Methods(http.MethodPost)
	api.HandleFunc("/blocks/{id}/attachments/upload", s.authed(s.handleUploadAttachment)).Methods(http.MethodPost)
	api.HandleFunc("/blocks/{id}/sheets", s.authed(s.handleGetSheets)).Methods(http.MethodGet)
	api.HandleFunc("/blocks/{id}/sheets", s.authed(s.handleConnectSheets)).Methods(http.MethodPut)
	api.HandleFunc("/blocks/{id}/sheets", s.authed(s.handleDisconnectSheets)).Methods(http.MethodDelete)
	api.HandleFunc("/blocks/{id}/sheets/refresh", s.authed(s.handleRefreshSheets)).Methods(http.MethodPost)

	api.HandleFunc("/comments/{id}", s.authed(s.handleUpdateComment)).Methods(http.MethodPatch)
	api.HandleFunc("/comments/{id}", s.authed(s.handleDeleteComment)).Methods(http.MethodDelete)
	api.HandleFunc("/tags/{id}", s.authed(s.handleUpdateTag)).Methods(http.MethodPatch)
	api.HandleFunc("/tags/{id}", s.authed(s.handleDeleteTag)).Methods(http.MethodDelete)
	api.HandleFunc("/attachments/{id}", s.authed(s.handleDeleteAttachment)).Methods(http.MethodDelete)
	api.HandleFunc("/attachments/{id}/download", s.authed(s.handleAttachmentDownload)).Methods(http.MethodGet)
	api.HandleFunc("/sheets/inspect", s.authed(s.handleInspectSpreadsheet)).Methods(http.MethodPost)
	api.HandleFunc("/search", s.authed(s.handleSearch)).Methods(http.MethodGet)
}

func (s *HTTPServer) handleGetBlock(w http.ResponseWriter, r *http.Request, session Session) {
	block, err := s.service.GetBlock(r.Context(), session, pathVar(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

func (s *HTTPServer) handleUpdateBlock(w http.ResponseWriter, r *http.Request, session Session) {
	var body BlockInput
	if !decode(w, r, &body) {
		return
	}
	block, err := s.service.UpdateBlock(r.Context(), session, pathVar(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

func (s *HTTPServer) handleDeleteBlock(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeleteBlock(r.Context(), session, pathVar(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *HTTPServer) handleMoveBlock(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		ColumnID string `json:"columnId"`
		Position int    `json:"position"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.ColumnID == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "columnId is required", nil)
		return
	}
	block, err := s.service.MoveBlock(r.Context(), session, pathVar(r, "id"), body.ColumnID, body.Position)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

func (s *HTTPServer) handleListComments(w http.ResponseWriter, r *http.Request, session Session) {
	comments, err := s.service.ListComments(r.Context(), session, pathVar(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (s *HTTPServer) handleCreateComment(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Content string `json:"content"`
	}
	if !decode(w, r, &body) {
		return
	}
	comment, err := s.service.CreateComment(r.Context(), session, pathVar(r, "id"), body.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (s *HTTPServer) handleUpdateComment(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Content string `json:"content"`
	}
	if !decode(w, r, &body) {
		return
	}
	comment, err := s.service.UpdateComment(r.Context(), session, pathVar(r, "id"), body.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (s *HTTPServer) handleDeleteComment(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeleteComment(r.Context(), session, pathVar(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *HTTPServer) handleSetBlockTags(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		TagIDs []string `json:"tagIds"`
	}
	if !decode(w, r, &body) {
		return
	}
	tags, err := s.service.SetBlockTags(r.Context(), session, pathVar(r, "id"), body.TagIDs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (s *HTTPServer) handleAddBlockTag(w http.ResponseWriter, r *http.Request, session Session) {
	tags, err := s.service.AddTagToBlock(r.Context(), session, pathVar(r, "id"), pathVar(r, "tagId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (s *HTTPServer) handleRemoveBlockTag(w http.ResponseWriter, r *http.Request, session Session) {
	tags, err := s.service.RemoveTagFromBlock(r.Context(), session, pathVar(r, "id"), pathVar(r, "tagId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (s *HTTPServer) handleUpdateTag(w http.ResponseWriter, r *http.Request, session Session) {
	var body TagInput
	if !decode(w, r, &body) {
		return
	}
	tag, err := s.service.UpdateTag(r.Context(), session, pathVar(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

func (s *HTTPServer) handleDeleteTag(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeleteTag(r.Context(), session, pathVar(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *HTTPServer) handleListAttachments(w http.ResponseWriter, r *http.Request, session Session) {
	items, err := s.service.ListAttachments(r.Context(), session, pathVar(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attachments": items})
}

func (s *HTTPServer) handleCreateAttachment(w http.ResponseWriter, r *http.Request, session Session) {
	var body AttachmentInput
	if !decode(w, r, &body) {
		return
	}
	attachment, err := s.service.CreateAttachment(r.Context(), session, pathVar(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, attachment)
}

// handleUploadAttachment reads the multipart "file" field, capped at the
// configured upload size. The body is not read until the caller is allowed to
// upload.
func (s *HTTPServer) handleUploadAttachment(w http.ResponseWriter, r *http.Request, session Session) {
	blockID := pathVar(r, "id")
	if _, err := s.service.AuthorizeUpload(r.Context(), session, blockID); err != nil {
		s.fail(w, r, err)
		return
	}
	maxBytes := s.service.cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = objectstore.DefaultMaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, objectstore.ErrTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "expected a multipart form with a file field", nil)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "file field is required", nil)
		return
	}
	defer file.Close()

	upload, err := objectstore.ReadUpload(file, header.Filename, maxBytes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	attachment, err := s.service.UploadAttachment(r.Context(), session, blockID, upload, r.FormValue("title"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, attachment)
}

func (s *HTTPServer) handleDeleteAttachment(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeleteAttachment(r.Context(), session, pathVar(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *HTTPServer) handleAttachmentDownload(w http.ResponseWriter, r *http.Request, session Session) {
	result, err := s.service.AttachmentDownloadURL(r.Context(), session, pathVar(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleGetSheets(w http.ResponseWriter, r *http.Request, session Session) {
	conn, err := s.service.GetSheetsConnection(r.Context(), session, pathVar(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (s *HTTPServer) handleConnectSheets(w http.ResponseWriter, r *http.Request, session Session) {
	var body SheetsInput
	if !decode(w, r, &body) {
		return
	}
	conn, err := s.service.ConnectBlock(r.Context(), session, pathVar(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (s *HTTPServer) handleDisconnectSheets(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DisconnectBlock(r.Context(), session, pathVar(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *HTTPServer) handleRefreshSheets(w http.ResponseWriter, r *http.Request, session Session) {
	conn, err := s.service.RefreshSheetsConnection(r.Context(), session, pathVar(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (s *HTTPServer) handleInspectSpreadsheet(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		SpreadsheetURL string `json:"spreadsheetUrl"`
	}
	if !decode(w, r, &body) {
		return
	}
	result, err := s.service.InspectSpreadsheet(r.Context(), body.SpreadsheetURL)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, session Session) {
	query := r.URL.Query()
	result, err := s.service.Search(r.Context(), session, SearchInput{
		Text:      query.Get("q"),
		Type:      query.Get("type"),
		ProjectID: query.Get("projectId"),
		Limit:     queryInt(r, "limit", 20),
		Offset:    queryInt(r, "offset", 0),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
