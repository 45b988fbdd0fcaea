package sanity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/cms"
	"github.com/gibbarosa/storefront/internal/domain"
	apperrors "github.com/gibbarosa/storefront/pkg/errors"
)

// Client is the part of the CMS client the repositories use
type Client interface {
	Query(ctx context.Context, query string, params map[string]interface{}, out interface{}) (bool, error)
	Mutate(ctx context.Context, mutations ...cms.Mutation) (*cms.MutateResponse, error)
}

type orderRepository struct {
	client Client
	logger *zap.Logger
}

// NewOrderRepository creates a new CMS-backed order repository
func NewOrderRepository(client Client, logger *zap.Logger) *orderRepository {
	return &orderRepository{
		client: client,
		logger: logger,
	}
}

// OrderDocumentID derives the document id an order for paymentKey is stored under.
// Both webhook paths derive the same id for one payment.
func OrderDocumentID(paymentKey string) string {
	var b strings.Builder
	b.WriteString("order-")
	for _, r := range paymentKey {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

type orderLineDocument struct {
	ProductRef string `json:"productRef"`
	Quantity   int    `json:"quantity"`
}

type orderDocument struct {
	ID                      string                  `json:"_id"`
	OrderNumber             string                  `json:"orderNumber"`
	StripePaymentIntentID   string                  `json:"stripePaymentIntentId"`
	StripeCheckoutSessionID string                  `json:"stripeCheckoutSessionId"`
	StripeCustomerID        string                  `json:"stripeCustomerId"`
	CustomerName            string                  `json:"customerName"`
	Email                   string                  `json:"email"`
	Currency                string                  `json:"currency"`
	TotalPrice              float64                 `json:"totalPrice"`
	AmountDiscount          float64                 `json:"amountDiscount"`
	Status                  string                  `json:"status"`
	ShippingMethod          string                  `json:"shippingMethod"`
	Notes                   string                  `json:"notes"`
	ShippingAddress         *domain.ShippingAddress `json:"shippingAddress"`
	OrderDate               time.Time               `json:"orderDate"`
	Products                []orderLineDocument     `json:"products"`
}

func (d *orderDocument) toDomain() *domain.Order {
	lines := make([]domain.OrderLine, 0, len(d.Products))
	for _, p := range d.Products {
		lines = append(lines, domain.OrderLine{ProductRef: p.ProductRef, Quantity: p.Quantity})
	}

	return &domain.Order{
		DocumentID:        d.ID,
		OrderNumber:       d.OrderNumber,
		PaymentIntentID:   d.StripePaymentIntentID,
		CheckoutSessionID: d.StripeCheckoutSessionID,
		StripeCustomerID:  d.StripeCustomerID,
		CustomerName:      d.CustomerName,
		Email:             d.Email,
		Currency:          d.Currency,
		Lines:             lines,
		TotalPrice:        decimal.NewFromFloat(d.TotalPrice),
		AmountDiscount:    decimal.NewFromFloat(d.AmountDiscount),
		Status:            domain.OrderStatus(d.Status),
		ShippingMethod:    domain.ShippingMethod(d.ShippingMethod),
		Notes:             d.Notes,
		ShippingAddress:   d.ShippingAddress,
		OrderDate:         d.OrderDate,
	}
}

func buildOrderDocument(order *domain.Order) cms.Document {
	products := make([]map[string]interface{}, 0, len(order.Lines))
	for _, line := range order.Lines {
		products = append(products, map[string]interface{}{
			"_key":     uuid.NewString(),
			"product":  cms.NewReference(line.ProductRef),
			"quantity": line.Quantity,
		})
	}

	doc := cms.Document{
		"_id":            order.DocumentID,
		"_type":          "order",
		"orderNumber":    order.OrderNumber,
		"customerName":   order.CustomerName,
		"email":          order.Email,
		"currency":       order.Currency,
		"products":       products,
		"totalPrice":     order.TotalPrice.InexactFloat64(),
		"amountDiscount": order.AmountDiscount.InexactFloat64(),
		"status":         order.Status.String(),
		"shippingMethod": string(order.ShippingMethod),
		"orderDate":      order.OrderDate.UTC().Format(time.RFC3339),
	}

	optional := map[string]string{
		"stripePaymentIntentId":   order.PaymentIntentID,
		"stripeCheckoutSessionId": order.CheckoutSessionID,
		"stripeCustomerId":        order.StripeCustomerID,
		"notes":                   order.Notes,
	}
	for k, v := range optional {
		if v != "" {
			doc[k] = v
		}
	}
	if order.ShippingAddress != nil {
		doc["shippingAddress"] = order.ShippingAddress
	}

	return doc
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	key := order.PaymentKey()
	if key == "" {
		return nil, fmt.Errorf("order %s has no payment identifier", order.OrderNumber)
	}
	order.DocumentID = OrderDocumentID(key)

	resp, err := r.client.Mutate(ctx, cms.Create(buildOrderDocument(order)))
	if errors.Is(err, cms.ErrDocumentExists) {
		return nil, &apperrors.ErrDuplicateOrder{Key: key}
	}
	if err != nil {
		r.logger.Error("Failed to create order",
			zap.String("order_number", order.OrderNumber),
			zap.String("document_id", order.DocumentID),
			zap.Error(err),
		)
		return nil, &apperrors.DownstreamWriteFailure{Op: "create order", Err: err}
	}

	for _, res := range resp.Results {
		if res.ID != order.DocumentID || len(res.Document) == 0 {
			continue
		}
		var doc orderDocument
		if err := json.Unmarshal(res.Document, &doc); err != nil {
			r.logger.Warn("Failed to decode created order document", zap.Error(err))
			break
		}
		created := doc.toDomain()
		// Raw documents carry references, not the projected productRef
		created.Lines = order.Lines
		return created, nil
	}

	return order, nil
}

func (r *orderRepository) GetByPaymentKey(ctx context.Context, paymentKey string) (*domain.Order, error) {
	return r.getOne(ctx, cms.OrderByIDQuery, map[string]interface{}{"id": OrderDocumentID(paymentKey)}, paymentKey)
}

func (r *orderRepository) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*domain.Order, error) {
	return r.getOne(ctx, cms.OrderByPaymentIntentQuery, map[string]interface{}{"paymentIntentId": paymentIntentID}, paymentIntentID)
}

func (r *orderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return r.getOne(ctx, cms.OrderByNumberQuery, map[string]interface{}{"orderNumber": orderNumber}, orderNumber)
}

func (r *orderRepository) getOne(ctx context.Context, query string, params map[string]interface{}, id string) (*domain.Order, error) {
	var doc orderDocument
	found, err := r.client.Query(ctx, query, params, &doc)
	if err != nil {
		r.logger.Error("Failed to query order", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if !found {
		return nil, &apperrors.ErrNotFound{Resource: "order", ID: id}
	}
	return doc.toDomain(), nil
}
