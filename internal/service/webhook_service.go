package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/domain"
	"github.com/gibbarosa/storefront/internal/idempotency"
	"github.com/gibbarosa/storefront/internal/payments"
	"github.com/gibbarosa/storefront/internal/repository"
)

// settleTimeout bounds the bookkeeping that runs after the provider request is gone
const settleTimeout = 10 * time.Second

// ErrEventInProgress is returned while another delivery of the same event holds its claim
var ErrEventInProgress = errors.New("webhook event is already being processed")

// EventDispatcher applies one verified payment event
type EventDispatcher interface {
	Dispatch(ctx context.Context, event stripe.Event) (*ReconcileOutcome, error)
}

type webhookService struct {
	verifier    payments.EventVerifier
	dispatcher  EventDispatcher
	claims      idempotency.Claimer
	deadLetters repository.DeadLetterRepository
	logger      *zap.Logger
	now         func() time.Time
}

// NewWebhookService creates the entry point for provider webhooks
func NewWebhookService(
	verifier payments.EventVerifier,
	dispatcher EventDispatcher,
	claims idempotency.Claimer,
	deadLetters repository.DeadLetterRepository,
	logger *zap.Logger,
) *webhookService {
	if claims == nil {
		claims = idempotency.NoopClaimer{}
	}
	return &webhookService{
		verifier:    verifier,
		dispatcher:  dispatcher,
		claims:      claims,
		deadLetters: deadLetters,
		logger:      logger,
		now:         time.Now,
	}
}

// Receive verifies and dispatches a raw webhook body.
// A failed dispatch is queued as a dead letter and is not an error for the caller.
// An error is returned when the event could be neither verified nor queued,
// or while another delivery of it is still in flight.
func (s *webhookService) Receive(ctx context.Context, payload []byte, signature string) (*ReconcileOutcome, error) {
	event, err := s.verifier.Verify(payload, signature)
	if err != nil {
		s.logger.Warn("Rejected webhook", zap.Error(err))
		return nil, err
	}

	logger := s.logger.With(
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
	)

	state, err := s.claims.Claim(ctx, event.ID)
	if err != nil {
		// the atomic create still guards against duplicates
		logger.Warn("Failed to claim webhook event, processing anyway", zap.Error(err))
		state = idempotency.ClaimAcquired
	}
	switch state {
	case idempotency.ClaimDone:
		logger.Info("Webhook event already handled")
		return &ReconcileOutcome{Action: ActionDuplicate}, nil
	case idempotency.ClaimInProgress:
		logger.Info("Webhook event is being handled by another delivery")
		return nil, ErrEventInProgress
	}

	outcome, dispatchErr := s.dispatcher.Dispatch(ctx, event)

	// the claim and the dead letter must settle even if the provider hung up
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	if dispatchErr == nil {
		s.complete(settleCtx, logger, event.ID)
		logger.Info("Webhook event processed", zap.String("action", string(outcome.Action)))
		return outcome, nil
	}

	logger.Error("Failed to process webhook event", zap.Error(dispatchErr))

	letter := &domain.DeadLetter{
		EventID:       event.ID,
		EventType:     string(event.Type),
		Payload:       payload,
		LastError:     dispatchErr.Error(),
		NextAttemptAt: s.now().UTC(),
	}
	if err := s.deadLetters.Add(settleCtx, letter); err != nil {
		logger.Error("Failed to queue dead letter", zap.Error(err))
		if relErr := s.claims.Release(settleCtx, event.ID); relErr != nil {
			logger.Error("Failed to release webhook claim", zap.Error(relErr))
		}
		return nil, fmt.Errorf("queue dead letter for %s: %w", event.ID, err)
	}
	s.complete(settleCtx, logger, event.ID)

	logger.Warn("Webhook event queued for retry", zap.String("dead_letter_id", letter.ID.String()))
	return &ReconcileOutcome{Action: ActionDeadLettered}, nil
}

// complete turns the lease into a permanent claim. On failure the lease just
// expires and a redelivery hits the atomic create instead.
func (s *webhookService) complete(ctx context.Context, logger *zap.Logger, eventID string) {
	if err := s.claims.Complete(ctx, eventID); err != nil {
		logger.Warn("Failed to complete webhook claim", zap.Error(err))
	}
}
