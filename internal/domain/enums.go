package domain

import "strings"

// OrderStatus represents the lifecycle status of a storefront order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) String() string {
	return string(s)
}

// IsValid checks if the order status is valid
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending,
		OrderStatusPaid,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a status transition is valid
func (s OrderStatus) CanTransitionTo(newStatus OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return newStatus == OrderStatusPaid ||
			newStatus == OrderStatusCancelled
	case OrderStatusPaid:
		return newStatus == OrderStatusShipped ||
			newStatus == OrderStatusCancelled
	case OrderStatusShipped:
		return newStatus == OrderStatusDelivered
	case OrderStatusDelivered, OrderStatusCancelled:
		return false // Terminal states
	default:
		return false
	}
}

// Currency is an ISO currency code the shop prices in
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyPLN Currency = "PLN"
)

// ParseCurrency accepts any casing ("eur", "EUR") and reports whether the shop supports it
func ParseCurrency(s string) (Currency, bool) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CurrencyEUR, CurrencyPLN:
		return c, true
	default:
		return "", false
	}
}

// Lower returns the code in the lowercase form the payment provider expects
func (c Currency) Lower() string {
	return strings.ToLower(string(c))
}

// ShippingMethod is the delivery option picked at checkout
type ShippingMethod string

const (
	ShippingStandard ShippingMethod = "standard"
	ShippingExpress  ShippingMethod = "express"
)

// IsValid checks if the shipping method is one we offer
func (m ShippingMethod) IsValid() bool {
	return m == ShippingStandard || m == ShippingExpress
}

// Language is a storefront locale used for multilingual CMS fields
type Language string

const (
	LanguagePL Language = "PL"
	LanguageFR Language = "FR"
	LanguageEN Language = "EN"
)

// DeadLetterStatus tracks a failed webhook event through its retries
type DeadLetterStatus string

const (
	DeadLetterPending   DeadLetterStatus = "pending"
	DeadLetterResolved  DeadLetterStatus = "resolved"
	DeadLetterExhausted DeadLetterStatus = "exhausted"
)

// IsValid checks if the dead letter status is valid
func (s DeadLetterStatus) IsValid() bool {
	switch s {
	case DeadLetterPending, DeadLetterResolved, DeadLetterExhausted:
		return true
	default:
		return false
	}
}
