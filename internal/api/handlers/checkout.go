package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/service"
)

// CheckoutService issues payment intents and hosted checkout sessions
type CheckoutService interface {
	CreatePaymentIntent(ctx context.Context, req service.PaymentIntentRequest) (*service.PaymentIntentResponse, error)
	CreateCheckoutSession(ctx context.Context, req service.CheckoutSessionRequest) (*service.CheckoutSessionResponse, error)
}

// HandleCreatePaymentIntent handles POST /v1/payment-intents
func HandleCreatePaymentIntent(checkout CheckoutService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.PaymentIntentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid request body",
				"details": err.Error(),
			})
			return
		}

		resp, err := checkout.CreatePaymentIntent(c.Request.Context(), req)
		if err != nil {
			respondError(c, logger, err, "failed to create payment intent")
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// HandleCreateCheckoutSession handles POST /v1/checkout-sessions
func HandleCreateCheckoutSession(checkout CheckoutService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CheckoutSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid request body",
				"details": err.Error(),
			})
			return
		}

		resp, err := checkout.CreateCheckoutSession(c.Request.Context(), req)
		if err != nil {
			respondError(c, logger, err, "failed to create checkout session")
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}
