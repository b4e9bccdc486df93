package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alem-hub/cohort-metrics/internal/application/command"
	"github.com/alem-hub/cohort-metrics/internal/domain/shared"
	"github.com/alem-hub/cohort-metrics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

const (
	codeValidation = "validation_error"
	codeNotFound   = "not_found"
	codeInternal   = "internal_error"
)

var errInternal = errors.New("an unexpected error occurred")

// APIError is the body of every error response.
type APIError struct {
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorEnvelope wraps APIError as {"error": {...}}.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{
		Message: msg,
		Code:    code,
		Fields:  command.FieldErrors(err),
	}})
}

func respondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// respondDomainError maps an application error onto a status code.
// Store failures are logged and hidden behind a generic message.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case shared.IsValidation(err):
		respondError(c, http.StatusBadRequest, codeValidation, err)
	case shared.IsNotFound(err):
		respondError(c, http.StatusNotFound, codeNotFound, err)
	default:
		logger.FromContext(c.Request.Context()).Error("request failed",
			logger.String("path", c.FullPath()), logger.Err(err))
		respondError(c, http.StatusInternalServerError, codeInternal, errInternal)
	}
}
