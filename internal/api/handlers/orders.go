package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/domain"
	"github.com/gibbarosa/storefront/internal/repository"
)

// OrderResponse represents the order response
type OrderResponse struct {
	ID                string                  `json:"id"`
	OrderNumber       string                  `json:"orderNumber"`
	PaymentIntentID   string                  `json:"paymentIntentId,omitempty"`
	CheckoutSessionID string                  `json:"checkoutSessionId,omitempty"`
	CustomerName      string                  `json:"customerName"`
	Email             string                  `json:"email"`
	Currency          string                  `json:"currency"`
	TotalPrice        decimal.Decimal         `json:"totalPrice"`
	AmountDiscount    decimal.Decimal         `json:"amountDiscount"`
	Status            domain.OrderStatus      `json:"status"`
	ShippingMethod    domain.ShippingMethod   `json:"shippingMethod"`
	Notes             string                  `json:"notes,omitempty"`
	ShippingAddress   *domain.ShippingAddress `json:"shippingAddress,omitempty"`
	Items             []OrderItemResponse     `json:"items"`
	OrderDate         string                  `json:"orderDate"`
}

type OrderItemResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func newOrderResponse(order *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(order.Lines))
	for i, line := range order.Lines {
		items[i] = OrderItemResponse{ProductID: line.ProductRef, Quantity: line.Quantity}
	}

	return OrderResponse{
		ID:                order.DocumentID,
		OrderNumber:       order.OrderNumber,
		PaymentIntentID:   order.PaymentIntentID,
		CheckoutSessionID: order.CheckoutSessionID,
		CustomerName:      order.CustomerName,
		Email:             order.Email,
		Currency:          order.Currency,
		TotalPrice:        order.TotalPrice,
		AmountDiscount:    order.AmountDiscount,
		Status:            order.Status,
		ShippingMethod:    order.ShippingMethod,
		Notes:             order.Notes,
		ShippingAddress:   order.ShippingAddress,
		Items:             items,
		OrderDate:         order.OrderDate.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// HandleGetOrder handles GET /v1/admin/orders/:orderNumber
func HandleGetOrder(orders repository.OrderRepository, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderNumber := c.Param("orderNumber")
		if orderNumber == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "order number is required"})
			return
		}

		order, err := orders.GetByOrderNumber(c.Request.Context(), orderNumber)
		if err != nil {
			respondError(c, logger, err, "failed to get order")
			return
		}

		c.JSON(http.StatusOK, newOrderResponse(order))
	}
}
