package server

import (
	"errors"
	"net/http"

	"github.com/KaramelBytes/tidyloom-cli/internal/clean"
	"github.com/KaramelBytes/tidyloom-cli/internal/ingest"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// apiError is the JSON body of every failed request.
type apiError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Code    string `json:"code"`
}

func (e *apiError) Error() string { return e.Message }

// Render implements render.Renderer.
func (e *apiError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.Status)
	return nil
}

func newError(status int, code, msg string) *apiError {
	return &apiError{Status: status, Code: code, Message: msg}
}

// errorFor maps engine and transport errors to HTTP responses.
func errorFor(err error) *apiError {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae
	}
	var tooBig *http.MaxBytesError
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &tooBig):
		return newError(http.StatusRequestEntityTooLarge, "payload_too_large", err.Error())
	case errors.Is(err, clean.ErrEmptyDataset):
		return newError(http.StatusUnprocessableEntity, "empty_dataset", err.Error())
	case errors.Is(err, clean.ErrNameCollision):
		return newError(http.StatusUnprocessableEntity, "name_collision", err.Error())
	case errors.Is(err, clean.ErrUnknownStep):
		return newError(http.StatusBadRequest, "unknown_step", err.Error())
	case errors.Is(err, clean.ErrUnknownColumnType):
		return newError(http.StatusBadRequest, "unknown_column_type", err.Error())
	case errors.Is(err, ingest.ErrUnreadable):
		return newError(http.StatusUnprocessableEntity, "unreadable_dataset", err.Error())
	case errors.Is(err, ingest.ErrUnsupported):
		return newError(http.StatusBadRequest, "unsupported_format", err.Error())
	case errors.As(err, &verrs):
		return newError(http.StatusBadRequest, "invalid_options", err.Error())
	default:
		return newError(http.StatusInternalServerError, "internal", err.Error())
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	ae := errorFor(err)
	if ae.Status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	} else {
		s.logger.InfoContext(r.Context(), "request rejected", "path", r.URL.Path, "status", ae.Status, "code", ae.Code)
	}
	_ = render.Render(w, r, ae)
}
