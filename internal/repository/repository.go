package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/gibbarosa/storefront/internal/domain"
)

// OrderRepository stores orders in the CMS
type OrderRepository interface {
	// Create inserts the order under an id derived from its payment key.
	// It returns *errors.ErrDuplicateOrder when an order already exists for that payment.
	Create(ctx context.Context, order *domain.Order) (*domain.Order, error)
	GetByPaymentKey(ctx context.Context, paymentKey string) (*domain.Order, error)
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*domain.Order, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
}

// ProductRepository reads and flags catalog products
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	SetInStock(ctx context.Context, id string, inStock bool) error
	ListSoldOut(ctx context.Context, offset, limit int) ([]*domain.Product, error)
}

// OperatorRepository holds back-office credentials
type OperatorRepository interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*domain.Operator, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Operator, error)
	Create(ctx context.Context, operator *domain.Operator) error
	Update(ctx context.Context, operator *domain.Operator) error
}

// DeadLetterRepository queues webhook events whose processing failed
type DeadLetterRepository interface {
	// Add records a failed event, or bumps the existing entry for the same event id
	Add(ctx context.Context, letter *domain.DeadLetter) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DeadLetter, error)
	ListDue(ctx context.Context, limit int) ([]*domain.DeadLetter, error)
	ListByStatus(ctx context.Context, status domain.DeadLetterStatus, limit, offset int) ([]*domain.DeadLetter, error)
	MarkResolved(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, letter *domain.DeadLetter) error
}

// Repositories groups every store the services use
type Repositories struct {
	Order      OrderRepository
	Product    ProductRepository
	Operator   OperatorRepository
	DeadLetter DeadLetterRepository
}
