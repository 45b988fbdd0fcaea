package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultBatchSize = 50

// DueProcessor retries the dead letters whose next attempt has come
type DueProcessor interface {
	ProcessDue(ctx context.Context, limit int) (int, error)
}

// DeadLetterRetrier polls the dead letter queue until its context ends
type DeadLetterRetrier struct {
	processor DueProcessor
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
}

func NewDeadLetterRetrier(processor DueProcessor, interval time.Duration, logger *zap.Logger) *DeadLetterRetrier {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &DeadLetterRetrier{
		processor: processor,
		interval:  interval,
		batchSize: defaultBatchSize,
		logger:    logger,
	}
}

// Run blocks, draining due letters on every tick
func (w *DeadLetterRetrier) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Dead letter retrier started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ticker.C:
			w.tick(ctx)
		case <-ctx.Done():
			w.logger.Info("Dead letter retrier stopped")
			return
		}
	}
}

func (w *DeadLetterRetrier) tick(ctx context.Context) {
	resolved, err := w.processor.ProcessDue(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("Failed to process dead letters", zap.Error(err))
		return
	}
	if resolved > 0 {
		w.logger.Info("Dead letters resolved", zap.Int("count", resolved))
	}
}
