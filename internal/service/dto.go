package service

import (
	"github.com/shopspring/decimal"

	"github.com/gibbarosa/storefront/internal/domain"
)

// PaymentIntentRequest is the checkout form posted by the storefront
type PaymentIntentRequest struct {
	Items       []PaymentIntentItem `json:"items"`
	Shipping    ShippingForm        `json:"shipping"`
	Currency    string              `json:"currency"`
	TotalAmount decimal.Decimal     `json:"totalAmount"`
}

type PaymentIntentItem struct {
	ProductID string           `json:"productId"`
	Name      string           `json:"name"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Quantity  int              `json:"quantity"`
}

type ShippingForm struct {
	Email          string `json:"email"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Company        string `json:"company,omitempty"`
	Address        string `json:"address"`
	Apartment      string `json:"apartment,omitempty"`
	City           string `json:"city"`
	Country        string `json:"country"`
	State          string `json:"state,omitempty"`
	PostalCode     string `json:"postalCode"`
	Phone          string `json:"phone"`
	ShippingMethod string `json:"shippingMethod"`
	Notes          string `json:"notes,omitempty"`
}

// PaymentIntentResponse carries what the browser needs to confirm payment
type PaymentIntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	OrderNumber     string `json:"orderNumber"`
}

// CheckoutSessionRequest starts a hosted checkout for the cart
type CheckoutSessionRequest struct {
	Items    []domain.CartLine `json:"items"`
	Metadata CheckoutMetadata  `json:"metadata"`
}

type CheckoutMetadata struct {
	OrderNumber     string `json:"orderNumber"`
	CustomerName    string `json:"customerName"`
	CustomerEmail   string `json:"customerEmail"`
	CustomerPhone   string `json:"customerPhone,omitempty"`
	ShippingAddress string `json:"shippingAddress,omitempty"`
	ShippingCity    string `json:"shippingCity,omitempty"`
	ShippingZip     string `json:"shippingZip,omitempty"`
	ShippingCountry string `json:"shippingCountry,omitempty"`
}

type CheckoutSessionResponse struct {
	URL         string `json:"url"`
	SessionID   string `json:"sessionId"`
	OrderNumber string `json:"orderNumber"`
}

// CartView is a server-side cart with its totals per currency
type CartView struct {
	CartID string                     `json:"cartId"`
	Items  []domain.CartLine          `json:"items"`
	Totals map[string]decimal.Decimal `json:"totals"`
}

// InventoryResult reports what an inventory pass did per product ref
type InventoryResult struct {
	Updated []string `json:"updated"`
	Failed  []string `json:"failed"`
	Skipped []string `json:"skipped"`
}

// ReconcileAction names what the reconciler did with an event
type ReconcileAction string

const (
	ActionOrderCreated ReconcileAction = "order_created"
	ActionDuplicate    ReconcileAction = "duplicate"
	ActionSkipped      ReconcileAction = "skipped"
	ActionIgnored      ReconcileAction = "ignored"
	ActionDeadLettered ReconcileAction = "dead_lettered"
)

// ReconcileOutcome is the result of dispatching one event
type ReconcileOutcome struct {
	Action    ReconcileAction
	Order     *domain.Order
	Inventory *InventoryResult
}
