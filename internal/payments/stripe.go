package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/pkg/errors"
)

type StripeProvider struct {
	sc     *client.API
	logger *zap.Logger
}

// NewStripeProvider creates a provider backed by the Stripe API
func NewStripeProvider(secretKey string, logger *zap.Logger) *StripeProvider {
	return &StripeProvider{
		sc:     client.New(secretKey, nil),
		logger: logger,
	}
}

func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(req.ReceiptEmail)
	}
	if s := req.Shipping; s != nil {
		params.Shipping = &stripe.ShippingDetailsParams{
			Name:  stripe.String(s.Name),
			Phone: stripe.String(s.Phone),
			Address: &stripe.AddressParams{
				Line1:      stripe.String(s.Line1),
				Line2:      stripe.String(s.Line2),
				City:       stripe.String(s.City),
				State:      stripe.String(s.State),
				PostalCode: stripe.String(s.PostalCode),
				Country:    stripe.String(s.Country),
			},
		}
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := p.sc.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Lines))
	for _, line := range req.Lines {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:     stripe.String(line.Name),
			Metadata: map[string]string{"id": line.ProductID},
		}
		if line.Description != "" {
			productData.Description = stripe.String(line.Description)
		}
		if line.ImageURL != "" {
			productData.Images = stripe.StringSlice([]string{line.ImageURL})
		}

		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(req.Currency),
				UnitAmount:  stripe.Int64(line.UnitAmountMinor),
				ProductData: productData,
			},
			Quantity: stripe.Int64(line.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:                stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:           lineItems,
		SuccessURL:          stripe.String(req.SuccessURL),
		CancelURL:           stripe.String(req.CancelURL),
		AllowPromotionCodes: stripe.Bool(true),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.PaymentIntentMetadata,
		},
	}
	params.Context = ctx

	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	} else {
		params.CustomerCreation = stripe.String(string(stripe.CheckoutSessionCustomerCreationAlways))
		if req.CustomerEmail != "" {
			params.CustomerEmail = stripe.String(req.CustomerEmail)
		}
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	sess, err := p.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

func (p *StripeProvider) FindCustomerByEmail(ctx context.Context, email string) (string, bool, error) {
	params := &stripe.CustomerListParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := p.sc.Customers.List(params)
	if iter.Next() {
		return iter.Customer().ID, true, nil
	}
	if err := iter.Err(); err != nil {
		return "", false, fmt.Errorf("list customers: %w", err)
	}
	return "", false, nil
}

func (p *StripeProvider) ListSessionLineItems(ctx context.Context, sessionID string) ([]SessionLineItem, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{
		Session: stripe.String(sessionID),
	}
	params.Context = ctx
	params.AddExpand("data.price.product")

	var items []SessionLineItem
	iter := p.sc.CheckoutSessions.ListLineItems(params)
	for iter.Next() {
		li := iter.LineItem()

		var ref string
		if li.Price != nil && li.Price.Product != nil {
			ref = li.Price.Product.Metadata["id"]
		}
		if ref == "" {
			p.logger.Warn("Session line item has no product reference",
				zap.String("session_id", sessionID),
				zap.String("line_item_id", li.ID),
			)
			continue
		}

		items = append(items, SessionLineItem{ProductRef: ref, Quantity: li.Quantity})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list session line items: %w", err)
	}

	return items, nil
}

// SignatureVerifier checks the Stripe-Signature header against the endpoint secret
type SignatureVerifier struct {
	secret string
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: secret}
}

func (v *SignatureVerifier) Verify(payload []byte, signature string) (stripe.Event, error) {
	if signature == "" {
		return stripe.Event{}, &errors.AuthenticityError{Reason: "missing signature header"}
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, &errors.AuthenticityError{Reason: err.Error()}
	}
	return event, nil
}

// ParseEvent decodes a payload that was verified when it was first received
func ParseEvent(payload []byte) (stripe.Event, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return stripe.Event{}, fmt.Errorf("parse event: %w", err)
	}
	return event, nil
}
