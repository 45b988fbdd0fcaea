package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/domain"
	"github.com/gibbarosa/storefront/internal/payments"
	"github.com/gibbarosa/storefront/internal/repository"
)

const (
	DefaultDeadLetterMaxAttempts = 8

	baseRetryDelay = 30 * time.Second
	maxRetryDelay  = time.Hour
)

type deadLetterService struct {
	repo        repository.DeadLetterRepository
	dispatcher  EventDispatcher
	maxAttempts int
	logger      *zap.Logger
	now         func() time.Time
}

// NewDeadLetterService creates the service that retries failed webhook events
func NewDeadLetterService(repo repository.DeadLetterRepository, dispatcher EventDispatcher, maxAttempts int, logger *zap.Logger) *deadLetterService {
	if maxAttempts <= 0 {
		maxAttempts = DefaultDeadLetterMaxAttempts
	}
	return &deadLetterService{
		repo:        repo,
		dispatcher:  dispatcher,
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         time.Now,
	}
}

// RetryDelay is the wait before the next attempt once attempts have failed
func RetryDelay(attempts int) time.Duration {
	if attempts < 1 {
		return baseRetryDelay
	}
	delay := baseRetryDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}

// ProcessDue retries every letter whose next attempt is due and returns how many resolved
func (s *deadLetterService) ProcessDue(ctx context.Context, limit int) (int, error) {
	letters, err := s.repo.ListDue(ctx, limit)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, letter := range letters {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.Retry(ctx, letter); err == nil {
			resolved++
		}
	}
	return resolved, nil
}

// Retry dispatches a stored event once more and records the result on the letter
func (s *deadLetterService) Retry(ctx context.Context, letter *domain.DeadLetter) (*ReconcileOutcome, error) {
	logger := s.logger.With(
		zap.String("dead_letter_id", letter.ID.String()),
		zap.String("event_id", letter.EventID),
	)

	event, err := payments.ParseEvent(letter.Payload)
	if err != nil {
		logger.Error("Dead letter payload is unreadable", zap.Error(err))
		letter.Attempts++
		letter.LastError = err.Error()
		letter.Status = domain.DeadLetterExhausted
		if markErr := s.repo.MarkFailed(ctx, letter); markErr != nil {
			logger.Error("Failed to update dead letter", zap.Error(markErr))
		}
		return nil, err
	}

	outcome, err := s.dispatcher.Dispatch(ctx, event)
	if err != nil {
		letter.Attempts++
		letter.LastError = err.Error()
		if letter.Attempts >= s.maxAttempts {
			letter.Status = domain.DeadLetterExhausted
			logger.Error("Dead letter exhausted its attempts",
				zap.Int("attempts", letter.Attempts),
				zap.Error(err),
			)
		} else {
			letter.Status = domain.DeadLetterPending
			letter.NextAttemptAt = s.now().UTC().Add(RetryDelay(letter.Attempts))
			logger.Warn("Dead letter retry failed",
				zap.Int("attempts", letter.Attempts),
				zap.Time("next_attempt_at", letter.NextAttemptAt),
				zap.Error(err),
			)
		}
		if markErr := s.repo.MarkFailed(ctx, letter); markErr != nil {
			logger.Error("Failed to update dead letter", zap.Error(markErr))
		}
		return nil, err
	}

	if err := s.repo.MarkResolved(ctx, letter.ID); err != nil {
		logger.Error("Failed to resolve dead letter", zap.Error(err))
		return outcome, err
	}
	letter.Attempts++
	letter.Status = domain.DeadLetterResolved
	letter.LastError = ""

	logger.Info("Dead letter resolved", zap.String("action", string(outcome.Action)))
	return outcome, nil
}

// Replay retries one letter on demand, whatever its schedule or status
func (s *deadLetterService) Replay(ctx context.Context, id uuid.UUID) (*domain.DeadLetter, *ReconcileOutcome, error) {
	letter, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if letter.Status == domain.DeadLetterResolved {
		return letter, nil, nil
	}

	outcome, err := s.Retry(ctx, letter)
	return letter, outcome, err
}

func (s *deadLetterService) List(ctx context.Context, status domain.DeadLetterStatus, limit, offset int) ([]*domain.DeadLetter, error) {
	return s.repo.ListByStatus(ctx, status, limit, offset)
}
