package http

import (
	"errors"
	"net/http"
	"strings"

	"expensetracker/internal/auth"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
	"expensetracker/internal/storage"

	"github.com/go-playground/validator/v10"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// currentUser returns the id placed in the context by the auth middleware.
func currentUser(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

// errorResponse maps an error to its response. Unknown errors become a 500
// and are logged; the client only sees a generic message.
func errorResponse(r *http.Request, err error) *ResponseBuilder {
	var malformed *malformedRequestError
	var query *queryError
	var verrs validator.ValidationErrors

	switch {
	case errors.As(err, &malformed):
		return BadRequestError(malformed.msg)
	case errors.As(err, &query):
		return UnprocessableEntityError("validation failed", map[string]string{query.field: query.msg})
	case errors.As(err, &verrs):
		return UnprocessableEntityError("validation failed", ToDetails(err))
	case core.IsValidationError(err), errors.Is(err, auth.ErrWeakPassword):
		return UnprocessableEntityError("validation failed", ToDetails(err))
	case errors.Is(err, auth.ErrInvalidCredentials):
		return UnauthorizedError("invalid email or password")
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, auth.ErrUserNotFound):
		return NotFoundError("resource not found")
	case errors.Is(err, auth.ErrEmailTaken), errors.Is(err, services.ErrEmailInUse):
		return ConflictError("email already registered")
	case errors.Is(err, storage.ErrConflict):
		return ConflictError("resource already exists")
	}

	log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).ErrorContext(r.Context(),
		"Request failed",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
		log.FieldError, err)
	return InternalServerError()
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(r, err).Write(w, r)
}
