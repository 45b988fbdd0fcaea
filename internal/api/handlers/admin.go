package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/api/middleware"
	"github.com/gibbarosa/storefront/internal/domain"
	"github.com/gibbarosa/storefront/internal/service"
)

// StockRestorer puts sold-out products back on sale
type StockRestorer interface {
	RestoreStock(ctx context.Context, productID string) error
}

// DeadLetterAdmin lists and replays queued webhook events
type DeadLetterAdmin interface {
	List(ctx context.Context, status domain.DeadLetterStatus, limit, offset int) ([]*domain.DeadLetter, error)
	Replay(ctx context.Context, id uuid.UUID) (*domain.DeadLetter, *service.ReconcileOutcome, error)
}

// RestoreStockRequest is the legacy body form of the restore stock call
type RestoreStockRequest struct {
	ProductID string `json:"productId"`
}

// DeadLetterResponse represents a queued webhook event
type DeadLetterResponse struct {
	ID            string `json:"id"`
	EventID       string `json:"eventId"`
	EventType     string `json:"eventType"`
	Status        string `json:"status"`
	Attempts      int    `json:"attempts"`
	LastError     string `json:"lastError,omitempty"`
	NextAttemptAt string `json:"nextAttemptAt"`
	CreatedAt     string `json:"createdAt"`
}

func newDeadLetterResponse(letter *domain.DeadLetter) DeadLetterResponse {
	return DeadLetterResponse{
		ID:            letter.ID.String(),
		EventID:       letter.EventID,
		EventType:     letter.EventType,
		Status:        string(letter.Status),
		Attempts:      letter.Attempts,
		LastError:     letter.LastError,
		NextAttemptAt: letter.NextAttemptAt.Format(time.RFC3339),
		CreatedAt:     letter.CreatedAt.Format(time.RFC3339),
	}
}

// HandleRestoreStock handles POST /v1/admin/products/:id/restore-stock
func HandleRestoreStock(inventory StockRestorer, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID := c.Param("id")
		if productID == "" {
			var req RestoreStockRequest
			if err := c.ShouldBindJSON(&req); err == nil {
				productID = req.ProductID
			}
		}
		if productID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Product ID is required"})
			return
		}

		if err := inventory.RestoreStock(c.Request.Context(), productID); err != nil {
			respondError(c, logger, err, "failed to restore stock")
			return
		}

		operator, _ := middleware.GetOperatorFromContext(c)
		if operator != nil {
			logger.Info("Stock restored by operator",
				zap.String("operator", operator.Name),
				zap.String("product_id", productID),
			)
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Product " + productID + " is now in stock",
		})
	}
}

// HandleListDeadLetters handles GET /v1/admin/dead-letters
func HandleListDeadLetters(deadLetters DeadLetterAdmin, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := domain.DeadLetterStatus(c.Query("status"))
		switch status {
		case "", domain.DeadLetterPending, domain.DeadLetterResolved, domain.DeadLetterExhausted:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return
		}

		limit := 50
		if limitStr := c.Query("limit"); limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
				limit = l
			}
		}
		offset := 0
		if offsetStr := c.Query("offset"); offsetStr != "" {
			if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
				offset = o
			}
		}

		letters, err := deadLetters.List(c.Request.Context(), status, limit, offset)
		if err != nil {
			respondError(c, logger, err, "failed to list dead letters")
			return
		}

		out := make([]DeadLetterResponse, len(letters))
		for i, letter := range letters {
			out[i] = newDeadLetterResponse(letter)
		}

		c.JSON(http.StatusOK, gin.H{
			"deadLetters": out,
			"limit":       limit,
			"offset":      offset,
		})
	}
}

// HandleReplayDeadLetter handles POST /v1/admin/dead-letters/:id/replay
func HandleReplayDeadLetter(deadLetters DeadLetterAdmin, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dead letter ID"})
			return
		}

		letter, outcome, err := deadLetters.Replay(c.Request.Context(), id)
		if err != nil && letter == nil {
			respondError(c, logger, err, "failed to replay dead letter")
			return
		}
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":      "replay failed",
				"details":    err.Error(),
				"deadLetter": newDeadLetterResponse(letter),
			})
			return
		}

		resp := gin.H{"deadLetter": newDeadLetterResponse(letter)}
		if outcome != nil {
			resp["action"] = outcome.Action
			if outcome.Order != nil {
				resp["orderNumber"] = outcome.Order.OrderNumber
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}
