package sanity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/domain"
	apperrors "github.com/gibbarosa/storefront/pkg/errors"
)

func newTestOrder(piID string) *domain.Order {
	return &domain.Order{
		OrderNumber:     "ORD-123456-7",
		PaymentIntentID: piID,
		CustomerName:    "Anna Nowak",
		Email:           "anna@example.com",
		Currency:        "eur",
		Lines:           []domain.OrderLine{{ProductRef: "p1", Quantity: 2}},
		TotalPrice:      decimal.RequireFromString("135"),
		AmountDiscount:  decimal.Zero,
		Status:          domain.OrderStatusPaid,
		ShippingMethod:  domain.ShippingExpress,
		ShippingAddress: &domain.ShippingAddress{Address: "Marszałkowska 1", City: "Warszawa", PostalCode: "00-001", Country: "PL"},
		OrderDate:       time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestOrderDocumentID(t *testing.T) {
	assert.Equal(t, "order-pi_3Abc", OrderDocumentID("pi_3Abc"))
	assert.Equal(t, "order-cs_test_a1", OrderDocumentID("cs_test_a1"))
	assert.Equal(t, "order-a-b", OrderDocumentID("a/b"))
}

func TestCreateOrder_Success(t *testing.T) {
	client := newFakeClient()
	repo := NewOrderRepository(client, zap.NewNop())
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestOrder("pi_1"))
	require.NoError(t, err)
	assert.Equal(t, "order-pi_1", created.DocumentID)
	assert.Equal(t, "ORD-123456-7", created.OrderNumber)

	fetched, err := repo.GetByPaymentIntentID(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "Anna Nowak", fetched.CustomerName)
	assert.Equal(t, domain.OrderStatusPaid, fetched.Status)
	assert.True(t, decimal.RequireFromString("135").Equal(fetched.TotalPrice))
	require.Len(t, fetched.Lines, 1)
	assert.Equal(t, domain.OrderLine{ProductRef: "p1", Quantity: 2}, fetched.Lines[0])
	require.NotNil(t, fetched.ShippingAddress)
	assert.Equal(t, "Warszawa", fetched.ShippingAddress.City)
}

func TestCreateOrder_DuplicatePaymentIsRejected(t *testing.T) {
	client := newFakeClient()
	repo := NewOrderRepository(client, zap.NewNop())
	ctx := context.Background()

	_, err := repo.Create(ctx, newTestOrder("pi_1"))
	require.NoError(t, err)

	second := newTestOrder("pi_1")
	second.OrderNumber = "ORD-999999-1"
	_, err = repo.Create(ctx, second)

	require.Error(t, err)
	assert.True(t, apperrors.IsDuplicate(err))
	assert.Len(t, client.docs, 1)
}

func TestCreateOrder_SessionAndIntentShareDocument(t *testing.T) {
	client := newFakeClient()
	repo := NewOrderRepository(client, zap.NewNop())
	ctx := context.Background()

	fromSession := newTestOrder("pi_1")
	fromSession.CheckoutSessionID = "cs_1"
	_, err := repo.Create(ctx, fromSession)
	require.NoError(t, err)

	_, err = repo.Create(ctx, newTestOrder("pi_1"))
	assert.True(t, apperrors.IsDuplicate(err))

	existing, err := repo.GetByPaymentKey(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "cs_1", existing.CheckoutSessionID)
}

func TestCreateOrder_RequiresPaymentKey(t *testing.T) {
	repo := NewOrderRepository(newFakeClient(), zap.NewNop())
	_, err := repo.Create(context.Background(), newTestOrder(""))
	assert.Error(t, err)
}

func TestCreateOrder_DownstreamFailure(t *testing.T) {
	client := newFakeClient()
	client.mutateErr = errors.New("connection reset")
	repo := NewOrderRepository(client, zap.NewNop())

	_, err := repo.Create(context.Background(), newTestOrder("pi_1"))

	var failure *apperrors.DownstreamWriteFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, "create order", failure.Op)
}

func TestGetOrder_NotFound(t *testing.T) {
	repo := NewOrderRepository(newFakeClient(), zap.NewNop())
	ctx := context.Background()

	_, err := repo.GetByPaymentIntentID(ctx, "pi_missing")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = repo.GetByOrderNumber(ctx, "ORD-0")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = repo.GetByPaymentKey(ctx, "pi_missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestGetOrder_ByNumber(t *testing.T) {
	repo := NewOrderRepository(newFakeClient(), zap.NewNop())
	ctx := context.Background()

	_, err := repo.Create(ctx, newTestOrder("pi_7"))
	require.NoError(t, err)

	order, err := repo.GetByOrderNumber(ctx, "ORD-123456-7")
	require.NoError(t, err)
	assert.Equal(t, "pi_7", order.PaymentIntentID)
}
