package provisioning

import (
	"github.com/gin-gonic/gin"
	"github.com/joinQuantish/polymarket-mcp/pkg/response"
)

// GinHandlers contains HTTP handlers for account provisioning endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for provisioning endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// RegisterAccountRequest is the body for account registration. OwnerKey is
// optional: when absent a custodial key is generated server-side.
type RegisterAccountRequest struct {
	OwnerKey string `json:"owner_key,omitempty"`
}

// RegisterAccountHandler handles POST requests to register a new account
func (h *GinHandlers) RegisterAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
			response.BadRequest(c, err.Error())
			return
		}

		account, err := h.service.Register(req.OwnerKey)
		response.Handle(c, account, err)
	}
}

// GetAccountHandler handles GET requests for an account record
// URL parameter: owner
func (h *GinHandlers) GetAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.Param("owner")
		if owner == "" {
			response.BadRequest(c, "Owner address is required")
			return
		}

		account, err := h.service.GetAccount(owner)
		response.Handle(c, account, err)
	}
}

// DeployHandler handles POST requests to deploy the account's proxy wallet
// URL parameter: owner
func (h *GinHandlers) DeployHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.Param("owner")
		if owner == "" {
			response.BadRequest(c, "Owner address is required")
			return
		}

		address, err := h.service.Deploy(c.Request.Context(), owner)
		response.Handle(c, gin.H{"proxy_address": address}, err)
	}
}

// SetupHandler handles POST requests to run the full provisioning sequence
// URL parameter: owner
func (h *GinHandlers) SetupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.Param("owner")
		if owner == "" {
			response.BadRequest(c, "Owner address is required")
			return
		}

		if err := h.service.FullSetup(c.Request.Context(), owner); err != nil {
			response.Handle(c, nil, err)
			return
		}

		account, err := h.service.GetAccount(owner)
		response.Handle(c, account, err)
	}
}

// SyncRequest is the body for a state sync. ContinueSetup cascades into
// approvals and credential issuance after deployment reconciles.
type SyncRequest struct {
	ContinueSetup bool `json:"continue_setup"`
}

// SyncHandler handles POST requests to reconcile local account state with
// the chain
// URL parameter: owner
func (h *GinHandlers) SyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.Param("owner")
		if owner == "" {
			response.BadRequest(c, "Owner address is required")
			return
		}

		var req SyncRequest
		if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.SyncState(c.Request.Context(), owner, req.ContinueSetup)
		response.Handle(c, result, err)
	}
}
