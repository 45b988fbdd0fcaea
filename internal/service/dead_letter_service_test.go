package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/domain"
	apperrors "github.com/gibbarosa/storefront/pkg/errors"
)

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 30*time.Second, RetryDelay(0))
	assert.Equal(t, 30*time.Second, RetryDelay(1))
	assert.Equal(t, time.Minute, RetryDelay(2))
	assert.Equal(t, 4*time.Minute, RetryDelay(4))
	assert.Equal(t, time.Hour, RetryDelay(20))
}

func queueLetter(t *testing.T, repo *fakeDeadLetterRepo, payload []byte) *domain.DeadLetter {
	t.Helper()
	letter := &domain.DeadLetter{
		EventID:       mustEvent(t, payload).ID,
		EventType:     string(mustEvent(t, payload).Type),
		Payload:       payload,
		LastError:     "cms returned 503",
		NextAttemptAt: time.Now().Add(-time.Second),
	}
	require.NoError(t, repo.Add(context.Background(), letter))
	return letter
}

func TestProcessDue_ResolvesOnceCMSRecovers(t *testing.T) {
	f := newReconcilerFixture(eurProduct("p1", "60"))
	letters := newFakeDeadLetterRepo()
	svc := NewDeadLetterService(letters, f.rec, 3, zap.NewNop())
	ctx := context.Background()

	letter := queueLetter(t, letters, eventJSON(t, "evt_1", stripe.EventTypePaymentIntentSucceeded,
		intentObject("pi_1", intentMetadata(`[{"productId":"p1","quantity":1}]`))))

	f.orders.createErr = errors.New("cms returned 503")
	resolved, err := svc.ProcessDue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, resolved)

	stored, err := letters.GetByID(ctx, letter.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Attempts)
	assert.Equal(t, domain.DeadLetterPending, stored.Status)
	assert.True(t, stored.NextAttemptAt.After(time.Now()))

	// not due yet
	resolved, err = svc.ProcessDue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, resolved)

	f.orders.createErr = nil
	_, _, err = svc.Replay(ctx, letter.ID)
	require.NoError(t, err)

	stored, err = letters.GetByID(ctx, letter.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeadLetterResolved, stored.Status)
	assert.Equal(t, 1, f.orders.count())
	assert.False(t, f.products.inStock("p1"))
}

func TestRetry_ExhaustsAfterMaxAttempts(t *testing.T) {
	f := newReconcilerFixture()
	f.orders.createErr = errors.New("cms returned 503")
	letters := newFakeDeadLetterRepo()
	svc := NewDeadLetterService(letters, f.rec, 2, zap.NewNop())
	ctx := context.Background()

	letter := queueLetter(t, letters, eventJSON(t, "evt_1", stripe.EventTypePaymentIntentSucceeded, intentObject("pi_1", intentMetadata(`[]`))))

	_, err := svc.Retry(ctx, letter)
	require.Error(t, err)
	_, err = svc.Retry(ctx, letter)
	require.Error(t, err)

	stored, err := letters.GetByID(ctx, letter.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Attempts)
	assert.Equal(t, domain.DeadLetterExhausted, stored.Status)

	exhausted, err := svc.List(ctx, domain.DeadLetterExhausted, 10, 0)
	require.NoError(t, err)
	assert.Len(t, exhausted, 1)
}

func TestRetry_UnreadablePayloadIsExhausted(t *testing.T) {
	f := newReconcilerFixture()
	letters := newFakeDeadLetterRepo()
	svc := NewDeadLetterService(letters, f.rec, 5, zap.NewNop())

	letter := &domain.DeadLetter{EventID: "evt_bad", EventType: "unknown", Payload: []byte(`"not an event"`)}
	require.NoError(t, letters.Add(context.Background(), letter))

	_, err := svc.Retry(context.Background(), letter)
	require.Error(t, err)

	stored, err := letters.GetByID(context.Background(), letter.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeadLetterExhausted, stored.Status)
}

func TestReplay_UnknownLetter(t *testing.T) {
	f := newReconcilerFixture()
	svc := NewDeadLetterService(newFakeDeadLetterRepo(), f.rec, 0, zap.NewNop())

	_, _, err := svc.Replay(context.Background(), uuid.New())
	assert.True(t, apperrors.IsNotFound(err))
}
