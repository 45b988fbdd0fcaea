package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/service"
)

// CartService is the server-side cart
type CartService interface {
	Get(ctx context.Context, cartID string) (*service.CartView, error)
	AddItem(ctx context.Context, cartID, productID string) (*service.CartView, error)
	RemoveItem(ctx context.Context, cartID, productID string) (*service.CartView, error)
	Clear(ctx context.Context, cartID string) (*service.CartView, error)
}

// AddCartItemRequest represents the add-to-cart payload
type AddCartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
}

// HandleGetCart handles GET /v1/carts/:cartId
func HandleGetCart(carts CartService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := carts.Get(c.Request.Context(), c.Param("cartId"))
		if err != nil {
			respondError(c, logger, err, "failed to load cart")
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// HandleAddCartItem handles POST /v1/carts/:cartId/items
func HandleAddCartItem(carts CartService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid request body",
				"details": err.Error(),
			})
			return
		}

		view, err := carts.AddItem(c.Request.Context(), c.Param("cartId"), req.ProductID)
		if err != nil {
			respondError(c, logger, err, "failed to add cart item")
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// HandleRemoveCartItem handles DELETE /v1/carts/:cartId/items/:productId
func HandleRemoveCartItem(carts CartService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := carts.RemoveItem(c.Request.Context(), c.Param("cartId"), c.Param("productId"))
		if err != nil {
			respondError(c, logger, err, "failed to remove cart item")
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// HandleClearCart handles DELETE /v1/carts/:cartId
func HandleClearCart(carts CartService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := carts.Clear(c.Request.Context(), c.Param("cartId"))
		if err != nil {
			respondError(c, logger, err, "failed to clear cart")
			return
		}
		c.JSON(http.StatusOK, view)
	}
}
