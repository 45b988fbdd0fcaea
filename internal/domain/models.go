package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gibbarosa/storefront/pkg/errors"
)

// LocalizedText holds a CMS string in every storefront language
type LocalizedText map[Language]string

// In returns the text for lang, falling back to English and then to any value present
func (t LocalizedText) In(lang Language) string {
	if v := t[lang]; v != "" {
		return v
	}
	if v := t[LanguageEN]; v != "" {
		return v
	}
	for _, v := range t {
		if v != "" {
			return v
		}
	}
	return ""
}

// Product is the catalog snapshot carried in a cart line
type Product struct {
	ID       string                       `json:"id"`
	Slug     string                       `json:"slug,omitempty"`
	Name     LocalizedText                `json:"name"`
	Prices   map[Currency]decimal.Decimal `json:"prices"`
	ImageRef string                       `json:"imageRef,omitempty"`
	InStock  bool                         `json:"inStock"`
}

// UnitPrice returns the price in currency and whether one is set
func (p Product) UnitPrice(currency Currency) (decimal.Decimal, bool) {
	price, ok := p.Prices[currency]
	return price, ok
}

// CartLine is one product in a cart. Product ids are unique within a cart.
type CartLine struct {
	ProductID string  `json:"productId"`
	Product   Product `json:"product"`
	Quantity  int     `json:"quantity"`
}

// ShippingAddress is the delivery address stored on an order
type ShippingAddress struct {
	Address    string `json:"address"`
	Apartment  string `json:"apartment,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// OrderLine references a purchased product
type OrderLine struct {
	ProductRef string `json:"productRef"`
	Quantity   int    `json:"quantity"`
}

// Order is created exactly once per successful payment
type Order struct {
	DocumentID        string
	OrderNumber       string
	PaymentIntentID   string
	CheckoutSessionID string
	StripeCustomerID  string
	CustomerName      string
	Email             string
	Currency          string
	Lines             []OrderLine
	TotalPrice        decimal.Decimal
	AmountDiscount    decimal.Decimal
	Status            OrderStatus
	ShippingMethod    ShippingMethod
	Notes             string
	ShippingAddress   *ShippingAddress
	OrderDate         time.Time
}

// PaymentKey is the payment identifier the order is unique by
func (o *Order) PaymentKey() string {
	if o.PaymentIntentID != "" {
		return o.PaymentIntentID
	}
	return o.CheckoutSessionID
}

// TransitionTo moves the order to status if the lifecycle allows it
func (o *Order) TransitionTo(status OrderStatus) error {
	if !o.Status.CanTransitionTo(status) {
		return &errors.ErrInvalidStateTransition{From: o.Status, To: status}
	}
	o.Status = status
	return nil
}

// Operator is a back-office user allowed to call admin routes
type Operator struct {
	ID         uuid.UUID
	Name       string
	APIKeyHash string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DeadLetter is a webhook event whose processing failed and awaits retry
type DeadLetter struct {
	ID            uuid.UUID
	EventID       string
	EventType     string
	Payload       []byte
	LastError     string
	Attempts      int
	Status        DeadLetterStatus
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
