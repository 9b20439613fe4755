package credentials

import (
	"github.com/gin-gonic/gin"
	"github.com/joinQuantish/polymarket-mcp/pkg/response"
)

// GinHandlers contains HTTP handlers for credential endpoints
type GinHandlers struct {
	manager *Manager
}

// NewGinHandlers creates a new set of HTTP handlers for credential endpoints
func NewGinHandlers(manager *Manager) *GinHandlers {
	return &GinHandlers{manager: manager}
}

// CreateHandler handles POST requests to issue trading credentials
// URL parameter: owner
func (h *GinHandlers) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.Param("owner")
		if owner == "" {
			response.BadRequest(c, "Owner address is required")
			return
		}

		err := h.manager.Create(c.Request.Context(), owner)
		response.Handle(c, gin.H{"issued": err == nil}, err)
	}
}

// ResetHandler handles POST requests to clear and re-issue credentials.
// This is the only path out of a corrupted-credentials state.
// URL parameter: owner
func (h *GinHandlers) ResetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.Param("owner")
		if owner == "" {
			response.BadRequest(c, "Owner address is required")
			return
		}

		err := h.manager.Reset(c.Request.Context(), owner)
		response.Handle(c, gin.H{"reset": err == nil}, err)
	}
}
