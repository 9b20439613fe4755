package approvals

import (
	"github.com/gin-gonic/gin"
	"github.com/joinQuantish/polymarket-mcp/pkg/response"
)

// GinHandlers contains HTTP handlers for approval endpoints
type GinHandlers struct {
	manager *Manager
}

// NewGinHandlers creates a new set of HTTP handlers for approval endpoints
func NewGinHandlers(manager *Manager) *GinHandlers {
	return &GinHandlers{manager: manager}
}

// EnsureRequest is the body for an approval pass. Force re-grants every
// approval regardless of the recorded flags.
type EnsureRequest struct {
	Force bool `json:"force"`
}

// EnsureHandler handles POST requests to grant outstanding approvals
// URL parameter: owner
func (h *GinHandlers) EnsureHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.Param("owner")
		if owner == "" {
			response.BadRequest(c, "Owner address is required")
			return
		}

		var req EnsureRequest
		if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.manager.Ensure(c.Request.Context(), owner, req.Force); err != nil {
			response.Handle(c, nil, err)
			return
		}

		result, err := h.manager.Verify(c.Request.Context(), owner)
		response.Handle(c, result, err)
	}
}

// VerifyHandler handles GET requests to read approval state from the chain
// URL parameter: owner
func (h *GinHandlers) VerifyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.Param("owner")
		if owner == "" {
			response.BadRequest(c, "Owner address is required")
			return
		}

		result, err := h.manager.Verify(c.Request.Context(), owner)
		response.Handle(c, result, err)
	}
}
