package payments

import (
	"context"

	"github.com/stripe/stripe-go/v81"
)

// ShippingDetails is the delivery contact passed to the provider
type ShippingDetails struct {
	Name       string
	Phone      string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// IntentRequest describes a payment intent to create
type IntentRequest struct {
	AmountMinor    int64
	Currency       string
	Description    string
	ReceiptEmail   string
	Metadata       map[string]string
	Shipping       *ShippingDetails
	IdempotencyKey string
}

// Intent is a created payment intent
type Intent struct {
	ID           string
	ClientSecret string
}

// SessionLine is one priced line of a hosted checkout session
type SessionLine struct {
	ProductID       string
	Name            string
	Description     string
	ImageURL        string
	UnitAmountMinor int64
	Quantity        int64
}

// SessionRequest describes a hosted checkout session to create
type SessionRequest struct {
	Currency              string
	Lines                 []SessionLine
	CustomerID            string
	CustomerEmail         string
	Metadata              map[string]string
	PaymentIntentMetadata map[string]string
	SuccessURL            string
	CancelURL             string
	IdempotencyKey        string
}

// Session is a created hosted checkout session
type Session struct {
	ID  string
	URL string
}

// SessionLineItem is a purchased product as reported by a completed session
type SessionLineItem struct {
	ProductRef string
	Quantity   int64
}

// Provider is the payment provider surface the services depend on
type Provider interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
	FindCustomerByEmail(ctx context.Context, email string) (string, bool, error)
	ListSessionLineItems(ctx context.Context, sessionID string) ([]SessionLineItem, error)
}

// EventVerifier authenticates a raw webhook delivery
type EventVerifier interface {
	Verify(payload []byte, signature string) (stripe.Event, error)
}
