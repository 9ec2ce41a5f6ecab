package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"journeymap/api/internal/auth"
	"journeymap/api/internal/authpw"
	"journeymap/api/internal/export"
	"journeymap/api/internal/history"
	"journeymap/api/internal/journey"
	"journeymap/api/internal/objectstore"
	"journeymap/api/internal/oauth"
	"journeymap/api/internal/sheets"
	"journeymap/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(format string, args ...any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf(format, args...), nil)
}

func notFound() *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func forbidden() *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func unavailable(code, message string) *DomainError {
	return domainError(http.StatusServiceUnavailable, code, message, nil)
}

// conflicts maps store sentinels onto 409 responses.
var conflicts = []struct {
	err  error
	code string
}{
	{store.ErrLastPhase, "LAST_PHASE"},
	{store.ErrLastColumn, "LAST_COLUMN"},
	{store.ErrLastOwner, "LAST_OWNER"},
	{store.ErrDuplicateTag, "DUPLICATE_TAG"},
	{store.ErrDuplicate, "ALREADY_EXISTS"},
	{store.ErrMoveConflict, "MOVE_CONFLICT"},
	{authpw.ErrEmailTaken, "EMAIL_TAKEN"},
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	for _, c := range conflicts {
		if errors.Is(err, c.err) {
			return http.StatusConflict, c.code, c.err.Error(), nil
		}
	}

	var inputErr *authpw.InputError
	switch {
	case errors.As(err, &inputErr):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", inputErr.Message, nil
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, history.ErrVersionNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil
	case errors.Is(err, authpw.ErrInvalidToken), errors.Is(err, oauth.ErrInvalidIDToken), errors.Is(err, oauth.ErrMissingIDToken):
		return http.StatusBadRequest, "INVALID_TOKEN", err.Error(), nil
	case errors.Is(err, store.ErrInvalidOrder), errors.Is(err, journey.ErrNotPermutation):
		return http.StatusUnprocessableEntity, "INVALID_ORDER", err.Error(), nil
	case errors.Is(err, store.ErrCrossBoard):
		return http.StatusUnprocessableEntity, "CROSS_BOARD", err.Error(), nil
	case errors.Is(err, journey.ErrInvalidURL), errors.Is(err, journey.ErrUnsupportedHost):
		return http.StatusUnprocessableEntity, "INVALID_URL", err.Error(), nil
	case errors.Is(err, sheets.ErrInvalidSpreadsheet), errors.Is(err, sheets.ErrInvalidCellRef):
		return http.StatusUnprocessableEntity, "INVALID_SHEETS_REFERENCE", err.Error(), nil
	case errors.Is(err, sheets.ErrNotFound):
		return http.StatusUnprocessableEntity, "SPREADSHEET_NOT_FOUND", err.Error(), nil
	case errors.Is(err, sheets.ErrAccessDenied):
		return http.StatusUnprocessableEntity, "SPREADSHEET_ACCESS_DENIED", err.Error(), nil
	case errors.Is(err, objectstore.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", err.Error(), nil
	case errors.Is(err, objectstore.ErrEmpty):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available on this server", nil
	case errors.Is(err, sheets.ErrNotConfigured):
		return http.StatusServiceUnavailable, "SHEETS_UNAVAILABLE", "Google Sheets access is not configured", nil
	case errors.Is(err, objectstore.ErrNotConfigured):
		return http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "File uploads are not configured", nil
	case errors.Is(err, oauth.ErrNotConfigured):
		return http.StatusServiceUnavailable, "GOOGLE_UNAVAILABLE", "Google sign-in is not configured", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
