package idempotency

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClaimState is what a claim attempt found for an event
type ClaimState int

const (
	// ClaimAcquired means the caller now owns the event
	ClaimAcquired ClaimState = iota
	// ClaimInProgress means another delivery holds a live lease on the event
	ClaimInProgress
	// ClaimDone means the event was already processed or queued for retry
	ClaimDone
)

const (
	stateProcessing = "processing"
	stateDone       = "done"

	DefaultLease = 5 * time.Minute
)

// Claimer marks webhook events as taken so redeliveries can be skipped.
// A claim starts as a short lease and only becomes permanent through Complete.
type Claimer interface {
	Claim(ctx context.Context, eventID string) (ClaimState, error)
	Complete(ctx context.Context, eventID string) error
	Release(ctx context.Context, eventID string) error
}

type Store struct {
	rdb   *redis.Client
	ttl   time.Duration
	lease time.Duration
}

// NewStore keeps completed events for ttl. A lease that is never completed
// expires after lease, so a crashed delivery does not block redeliveries.
func NewStore(rdb *redis.Client, ttl, lease time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if lease <= 0 {
		lease = DefaultLease
	}
	return &Store{rdb: rdb, ttl: ttl, lease: lease}
}

func (s *Store) Key(eventID string) string {
	return fmt.Sprintf("idem:webhook:%s", eventID)
}

func (s *Store) Claim(ctx context.Context, eventID string) (ClaimState, error) {
	ok, err := s.rdb.SetNX(ctx, s.Key(eventID), stateProcessing, s.lease).Result()
	if err != nil {
		return ClaimInProgress, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	if ok {
		return ClaimAcquired, nil
	}

	state, err := s.rdb.Get(ctx, s.Key(eventID)).Result()
	if stderrors.Is(err, redis.Nil) {
		// lease expired between the two calls; the next delivery will take it
		return ClaimInProgress, nil
	}
	if err != nil {
		return ClaimInProgress, fmt.Errorf("read claim for event %s: %w", eventID, err)
	}
	if state == stateDone {
		return ClaimDone, nil
	}
	return ClaimInProgress, nil
}

func (s *Store) Complete(ctx context.Context, eventID string) error {
	if err := s.rdb.Set(ctx, s.Key(eventID), stateDone, s.ttl).Err(); err != nil {
		return fmt.Errorf("complete event %s: %w", eventID, err)
	}
	return nil
}

func (s *Store) Release(ctx context.Context, eventID string) error {
	if err := s.rdb.Del(ctx, s.Key(eventID)).Err(); err != nil {
		return fmt.Errorf("release event %s: %w", eventID, err)
	}
	return nil
}

// NoopClaimer lets every event through; used when Redis is not configured
type NoopClaimer struct{}

func (NoopClaimer) Claim(context.Context, string) (ClaimState, error) { return ClaimAcquired, nil }

func (NoopClaimer) Complete(context.Context, string) error { return nil }

func (NoopClaimer) Release(context.Context, string) error { return nil }
