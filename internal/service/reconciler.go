package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/domain"
	"github.com/gibbarosa/storefront/internal/events"
	"github.com/gibbarosa/storefront/internal/payments"
	"github.com/gibbarosa/storefront/internal/repository"
	"github.com/gibbarosa/storefront/pkg/errors"
)

const (
	unknownCustomerName  = "Unknown"
	unknownCustomerEmail = "unknown@example.com"

	// postCommitTimeout bounds inventory and event publishing for one order
	postCommitTimeout = time.Minute
)

// InventoryUpdater flags purchased products as unavailable
type InventoryUpdater interface {
	MarkSoldOut(ctx context.Context, lines []domain.OrderLine) *InventoryResult
}

type reconciler struct {
	repos     *repository.Repositories
	provider  payments.Provider
	inventory InventoryUpdater
	publisher events.OrderPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewReconciler creates the service that turns payment events into orders
func NewReconciler(
	repos *repository.Repositories,
	provider payments.Provider,
	inventory InventoryUpdater,
	publisher events.OrderPublisher,
	logger *zap.Logger,
) *reconciler {
	return &reconciler{
		repos:     repos,
		provider:  provider,
		inventory: inventory,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Dispatch handles one verified event. An error means the event must be retried.
func (r *reconciler) Dispatch(ctx context.Context, event stripe.Event) (*ReconcileOutcome, error) {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		return r.handleCheckoutSessionCompleted(ctx, &session)

	case stripe.EventTypePaymentIntentSucceeded:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		return r.handlePaymentIntentSucceeded(ctx, &intent)

	default:
		r.logger.Debug("Ignoring webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
		)
		return &ReconcileOutcome{Action: ActionIgnored}, nil
	}
}

func (r *reconciler) handlePaymentIntentSucceeded(ctx context.Context, intent *stripe.PaymentIntent) (*ReconcileOutcome, error) {
	if intent.Metadata[payments.MetaCheckoutSessionID] != "" {
		r.logger.Info("Payment intent belongs to a checkout session, skipping",
			zap.String("payment_intent_id", intent.ID),
		)
		return &ReconcileOutcome{Action: ActionSkipped}, nil
	}

	existing, err := r.repos.Order.GetByPaymentIntentID(ctx, intent.ID)
	if err == nil {
		r.logger.Info("Order already exists for payment intent",
			zap.String("payment_intent_id", intent.ID),
			zap.String("order_number", existing.OrderNumber),
		)
		return &ReconcileOutcome{Action: ActionDuplicate, Order: existing}, nil
	}
	if !errors.IsNotFound(err) {
		return nil, fmt.Errorf("look up order for %s: %w", intent.ID, err)
	}

	order := r.orderFromPaymentIntent(intent)
	return r.createOrder(ctx, order)
}

func (r *reconciler) orderFromPaymentIntent(intent *stripe.PaymentIntent) *domain.Order {
	md := intent.Metadata
	now := r.now().UTC()

	items, err := payments.DecodeOrderItems(md[payments.MetaOrderItems])
	if err != nil {
		// the order is still recorded, without lines
		r.logger.Error("Failed to parse order items from metadata",
			zap.String("payment_intent_id", intent.ID),
			zap.Error(err),
		)
	}
	if md[payments.MetaOrderItemsTruncated] == "true" {
		r.logger.Warn("Order items in metadata were truncated",
			zap.String("payment_intent_id", intent.ID),
			zap.String("total", md[payments.MetaOrderItemsTotal]),
		)
	}

	lines := make([]domain.OrderLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, domain.OrderLine{ProductRef: item.ProductID, Quantity: item.Quantity})
	}

	orderNumber := md[payments.MetaOrderNumber]
	if orderNumber == "" {
		orderNumber = payments.FallbackIntentOrderNumber(now, intent.ID)
	}

	customerName := strings.TrimSpace(md[payments.MetaFirstName] + " " + md[payments.MetaLastName])
	if md[payments.MetaFirstName] == "" || md[payments.MetaLastName] == "" {
		customerName = ""
	}
	if customerName == "" && intent.Shipping != nil {
		customerName = intent.Shipping.Name
	}
	if customerName == "" {
		customerName = unknownCustomerName
	}

	email := md[payments.MetaEmail]
	if email == "" {
		email = unknownCustomerEmail
	}

	method := domain.ShippingMethod(md[payments.MetaShippingMethod])
	if !method.IsValid() {
		method = domain.ShippingStandard
	}

	order := &domain.Order{
		OrderNumber:     orderNumber,
		PaymentIntentID: intent.ID,
		CustomerName:    customerName,
		Email:           email,
		Currency:        string(intent.Currency),
		Lines:           lines,
		TotalPrice:      FromMinorUnits(intent.Amount),
		AmountDiscount:  FromMinorUnits(0),
		Status:          domain.OrderStatusPaid,
		ShippingMethod:  method,
		Notes:           md[payments.MetaNotes],
		OrderDate:       now,
	}
	if intent.Customer != nil {
		order.StripeCustomerID = intent.Customer.ID
	}
	if sh := intent.Shipping; sh != nil && sh.Address != nil {
		order.ShippingAddress = &domain.ShippingAddress{
			Address:    sh.Address.Line1,
			Apartment:  sh.Address.Line2,
			City:       sh.Address.City,
			State:      sh.Address.State,
			PostalCode: sh.Address.PostalCode,
			Country:    sh.Address.Country,
			Phone:      sh.Phone,
		}
	}
	return order
}

func (r *reconciler) handleCheckoutSessionCompleted(ctx context.Context, session *stripe.CheckoutSession) (*ReconcileOutcome, error) {
	var paymentIntentID string
	if session.PaymentIntent != nil {
		paymentIntentID = session.PaymentIntent.ID
	}

	key := paymentIntentID
	if key == "" {
		key = session.ID
	}
	existing, err := r.repos.Order.GetByPaymentKey(ctx, key)
	if err == nil {
		r.logger.Info("Order already exists for checkout session",
			zap.String("session_id", session.ID),
			zap.String("order_number", existing.OrderNumber),
		)
		return &ReconcileOutcome{Action: ActionDuplicate, Order: existing}, nil
	}
	if !errors.IsNotFound(err) {
		return nil, fmt.Errorf("look up order for %s: %w", session.ID, err)
	}

	items, err := r.provider.ListSessionLineItems(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch line items for %s: %w", session.ID, err)
	}

	order := r.orderFromCheckoutSession(session, paymentIntentID, items)
	return r.createOrder(ctx, order)
}

func (r *reconciler) orderFromCheckoutSession(session *stripe.CheckoutSession, paymentIntentID string, items []payments.SessionLineItem) *domain.Order {
	md := session.Metadata
	now := r.now().UTC()

	lines := make([]domain.OrderLine, 0, len(items))
	for _, item := range items {
		qty := int(item.Quantity)
		if qty < 1 {
			qty = 1
		}
		lines = append(lines, domain.OrderLine{ProductRef: item.ProductRef, Quantity: qty})
	}

	orderNumber := md["orderNumber"]
	if orderNumber == "" {
		orderNumber = payments.FallbackSessionOrderNumber(now)
	}

	customerName := md["customerName"]
	email := md["customerEmail"]
	if details := session.CustomerDetails; details != nil {
		if customerName == "" {
			customerName = details.Name
		}
		if email == "" {
			email = details.Email
		}
	}
	if customerName == "" {
		customerName = unknownCustomerName
	}
	if email == "" {
		email = unknownCustomerEmail
	}

	order := &domain.Order{
		OrderNumber:       orderNumber,
		PaymentIntentID:   paymentIntentID,
		CheckoutSessionID: session.ID,
		CustomerName:      customerName,
		Email:             email,
		Currency:          string(session.Currency),
		Lines:             lines,
		TotalPrice:        FromMinorUnits(session.AmountTotal),
		AmountDiscount:    FromMinorUnits(0),
		Status:            domain.OrderStatusPaid,
		ShippingMethod:    domain.ShippingStandard,
		OrderDate:         now,
	}
	if session.TotalDetails != nil {
		order.AmountDiscount = FromMinorUnits(session.TotalDetails.AmountDiscount)
	}
	if session.Customer != nil {
		order.StripeCustomerID = session.Customer.ID
	}
	if md["shippingAddress"] != "" || md["shippingCity"] != "" {
		order.ShippingAddress = &domain.ShippingAddress{
			Address:    md["shippingAddress"],
			City:       md["shippingCity"],
			PostalCode: md["shippingZip"],
			Country:    md["shippingCountry"],
			Phone:      md["customerPhone"],
		}
	}
	return order
}

// createOrder writes the order once. A concurrent or repeated delivery for the
// same payment gets the stored order back and leaves inventory alone.
func (r *reconciler) createOrder(ctx context.Context, order *domain.Order) (*ReconcileOutcome, error) {
	created, err := r.repos.Order.Create(ctx, order)
	if errors.IsDuplicate(err) {
		existing, getErr := r.repos.Order.GetByPaymentKey(ctx, order.PaymentKey())
		if getErr != nil {
			return nil, fmt.Errorf("fetch existing order for %s: %w", order.PaymentKey(), getErr)
		}
		r.logger.Info("Duplicate order suppressed",
			zap.String("payment_key", order.PaymentKey()),
			zap.String("order_number", existing.OrderNumber),
		)
		return &ReconcileOutcome{Action: ActionDuplicate, Order: existing}, nil
	}
	if err != nil {
		return nil, err
	}

	r.logger.Info("Order created",
		zap.String("order_number", created.OrderNumber),
		zap.String("payment_intent_id", created.PaymentIntentID),
		zap.String("checkout_session_id", created.CheckoutSessionID),
		zap.Int("lines", len(created.Lines)),
	)

	// the order is committed and a redelivery will not repeat these steps
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postCommitTimeout)
	defer cancel()

	inventory := r.inventory.MarkSoldOut(sideCtx, created.Lines)

	if err := r.publisher.PublishOrderCreated(sideCtx, created); err != nil {
		r.logger.Error("Failed to publish order event",
			zap.String("order_number", created.OrderNumber),
			zap.Error(err),
		)
	}

	return &ReconcileOutcome{Action: ActionOrderCreated, Order: created, Inventory: inventory}, nil
}
