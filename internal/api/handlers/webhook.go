package handlers

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/service"
	"github.com/gibbarosa/storefront/pkg/errors"
)

// WebhookReceiver verifies and applies provider webhooks
type WebhookReceiver interface {
	Receive(ctx context.Context, payload []byte, signature string) (*service.ReconcileOutcome, error)
}

// HandleStripeWebhook handles POST /v1/webhooks/stripe
func HandleStripeWebhook(receiver WebhookReceiver, environment string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(c.Request.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if stderrors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}

		_, err = receiver.Receive(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
		if err != nil {
			if errors.IsAuthenticity(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if stderrors.Is(err, service.ErrEventInProgress) {
				// non-2xx makes the provider retry after the first delivery settles
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			logger.Error("Webhook could not be processed or queued", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook processing failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"received": true, "environment": environment})
	}
}
