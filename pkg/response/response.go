package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joinQuantish/polymarket-mcp/internal/types"
	"gorm.io/gorm"
)

// Response represents a standardized API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents an error response
type Error struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Remediation string   `json:"remediation,omitempty"`
	Candidates  []string `json:"candidates,omitempty"`
	Retryable   bool     `json:"retryable,omitempty"`
}

// Common error codes
const (
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeBadRequest           = "BAD_REQUEST"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeInternalError        = "INTERNAL_ERROR"
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeDuplicateResource    = "DUPLICATE_RESOURCE"
	ErrCodeUpstreamUnavailable  = "UPSTREAM_UNAVAILABLE"
	ErrCodeUpstreamRejected     = "UPSTREAM_REJECTED"
	ErrCodeCorruptedCredentials = "CORRUPTED_CREDENTIALS"
	ErrCodeUnresolved           = "UNRESOLVED"
)

// Handle maps service errors onto HTTP responses. Every handler funnels
// through here so the error taxonomy translates to status codes in exactly
// one place.
func Handle(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}

	var validationErr *types.ValidationError
	var transientErr *types.TransientError
	var rejection *types.RemoteRejection
	var unresolved *types.UnresolvedError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error: &Error{
				Code:    ErrCodeValidationFailed,
				Message: validationErr.Error(),
			},
		})
	case errors.Is(err, types.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "Resource not found")
	case errors.Is(err, types.ErrCorruptedCredentials):
		c.JSON(http.StatusConflict, Response{
			Success: false,
			Error: &Error{
				Code:        ErrCodeCorruptedCredentials,
				Message:     err.Error(),
				Remediation: "reset the account credentials and retry",
			},
		})
	case errors.As(err, &transientErr):
		c.JSON(http.StatusBadGateway, Response{
			Success: false,
			Error: &Error{
				Code:      ErrCodeUpstreamUnavailable,
				Message:   transientErr.Error(),
				Retryable: true,
			},
		})
	case errors.As(err, &rejection):
		c.JSON(http.StatusUnprocessableEntity, Response{
			Success: false,
			Error: &Error{
				Code:        ErrCodeUpstreamRejected,
				Message:     rejection.Error(),
				Remediation: rejection.Remediation,
			},
		})
	case errors.As(err, &unresolved):
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error: &Error{
				Code:       ErrCodeUnresolved,
				Message:    unresolved.Error(),
				Candidates: unresolved.Candidates,
				Retryable:  true,
			},
		})
	case errors.Is(err, gorm.ErrDuplicatedKey):
		Conflict(c, "Resource already exists")
	default:
		InternalError(c, "An unexpected error occurred")
	}
}

// Success sends a successful response
func Success(c *gin.Context, data interface{}) {
	status := http.StatusOK
	if c.Request.Method == "POST" {
		status = http.StatusCreated
	}

	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeNotFound,
			Message: message,
		},
	})
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeBadRequest,
			Message: message,
		},
	})
}

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeUnauthorized,
			Message: message,
		},
	})
}

// Forbidden sends a 403 response
func Forbidden(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeForbidden,
			Message: message,
		},
	})
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeInternalError,
			Message: message,
		},
	})
}

// Conflict sends a 409 response
func Conflict(c *gin.Context, message string) {
	c.JSON(http.StatusConflict, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeDuplicateResource,
			Message: message,
		},
	})
}
