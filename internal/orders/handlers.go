package orders

import (
	"github.com/gin-gonic/gin"
	"github.com/joinQuantish/polymarket-mcp/pkg/response"
)

// GinHandlers contains HTTP handlers for order endpoints
type GinHandlers struct {
	gateway *Gateway
	batches *AtomicBatchExecutor
}

// NewGinHandlers creates a new set of HTTP handlers for order endpoints
func NewGinHandlers(gateway *Gateway, batches *AtomicBatchExecutor) *GinHandlers {
	return &GinHandlers{
		gateway: gateway,
		batches: batches,
	}
}

// SubmitOrderHandler handles POST requests to place a single order
// URL parameter: owner
func (h *GinHandlers) SubmitOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.Param("owner")
		if owner == "" {
			response.BadRequest(c, "Owner address is required")
			return
		}

		var req SubmitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.gateway.Submit(c.Request.Context(), owner, &req)
		response.Handle(c, order, err)
	}
}

// BatchRequest is the body for an all-or-nothing order batch.
type BatchRequest struct {
	Orders []*SubmitRequest `json:"orders"`
}

// SubmitBatchHandler handles POST requests to place an all-or-nothing batch
// URL parameter: owner
func (h *GinHandlers) SubmitBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.Param("owner")
		if owner == "" {
			response.BadRequest(c, "Owner address is required")
			return
		}

		var req BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.batches.ExecuteBatch(c.Request.Context(), owner, req.Orders)
		response.Handle(c, result, err)
	}
}

// GetOrderHandler handles GET requests for one order record
// URL parameters: owner, order_id
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.Param("owner")
		orderID := c.Param("order_id")
		if owner == "" || orderID == "" {
			response.BadRequest(c, "Owner address and order ID are required")
			return
		}

		order, err := h.gateway.GetOrder(owner, orderID)
		response.Handle(c, order, err)
	}
}

// ListOrdersHandler handles GET requests for an account's orders
// URL parameter: owner
func (h *GinHandlers) ListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.Param("owner")
		if owner == "" {
			response.BadRequest(c, "Owner address is required")
			return
		}

		orders, err := h.gateway.ListOrders(owner)
		response.Handle(c, orders, err)
	}
}

// CancelOrderHandler handles DELETE requests to cancel one order
// URL parameters: owner, order_id
func (h *GinHandlers) CancelOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.Param("owner")
		orderID := c.Param("order_id")
		if owner == "" || orderID == "" {
			response.BadRequest(c, "Owner address and order ID are required")
			return
		}

		order, err := h.gateway.Cancel(c.Request.Context(), owner, orderID)
		response.Handle(c, order, err)
	}
}

// CancelAllHandler handles DELETE requests to cancel all resting orders
// URL parameter: owner
func (h *GinHandlers) CancelAllHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.Param("owner")
		if owner == "" {
			response.BadRequest(c, "Owner address is required")
			return
		}

		err := h.gateway.CancelAll(c.Request.Context(), owner)
		response.Handle(c, gin.H{"cancelled": err == nil}, err)
	}
}
