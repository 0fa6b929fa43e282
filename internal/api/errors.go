package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/vadimtrunov/CineScroll/internal/config"
	"github.com/vadimtrunov/CineScroll/internal/metadata/tmdb"
	"github.com/vadimtrunov/CineScroll/internal/query"
)

// LoadErrorMessage is the single user-facing message for upstream failures.
const LoadErrorMessage = "Error loading movies"

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Message          string            `json:"message"`
	RequestID        string            `json:"request_id"`
	Timestamp        time.Time         `json:"timestamp"`
	ValidationErrors []ValidationError `json:"validation_errors,omitempty"`
}

// ValidationError describes one rejected parameter.
type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

func (s *Server) logError(r *http.Request, err error) {
	config.LoggerFromContext(r.Context()).Error(err.Error(),
		"method", r.Method,
		"uri", r.URL.RequestURI(),
	)
}

// errorResponse sends a JSON error with the given status code.
func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, status int, message string, verrs []ValidationError) {
	resp := ErrorResponse{
		Message:          message,
		RequestID:        middleware.GetReqID(r.Context()),
		Timestamp:        time.Now(),
		ValidationErrors: verrs,
	}
	if err := writeJSON(w, status, resp); err != nil {
		s.logError(r, err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (s *Server) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	s.logError(r, err)
	s.errorResponse(w, r, http.StatusInternalServerError,
		"The server encountered a problem and could not process your request", nil)
}

// upstreamErrorResponse collapses any catalog failure into one message.
func (s *Server) upstreamErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, tmdb.ErrNotFound) {
		s.notFoundResponse(w, r)
		return
	}
	s.logError(r, err)
	s.errorResponse(w, r, http.StatusBadGateway, LoadErrorMessage, nil)
}

func (s *Server) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	s.errorResponse(w, r, http.StatusNotFound, "The requested resource not found", nil)
}

func (s *Server) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	s.errorResponse(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
}

func (s *Server) badRequestResponse(w http.ResponseWriter, r *http.Request, field, issue string) {
	s.errorResponse(w, r, http.StatusBadRequest, "Invalid request parameters",
		[]ValidationError{{Field: field, Issue: issue}})
}

// failedValidationResponse reports validator errors field by field.
func (s *Server) failedValidationResponse(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		s.errorResponse(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	verrs := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		verrs = append(verrs, ValidationError{
			Field: fe.Field(),
			Issue: query.ValidationMessage(fe),
		})
	}
	s.errorResponse(w, r, http.StatusBadRequest, "Invalid request parameters", verrs)
}

var (
	errNotInteger = errors.New("must be an integer")
	errNotNumber  = errors.New("must be a number")
)
