package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/domain"
	"github.com/gibbarosa/storefront/pkg/errors"
)

type deadLetterRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeadLetterRepository creates a new webhook dead letter repository
func NewDeadLetterRepository(db *sql.DB, logger *zap.Logger) *deadLetterRepository {
	return &deadLetterRepository{
		db:     db,
		logger: logger,
	}
}

const deadLetterColumns = `id, event_id, event_type, payload, last_error, attempts, status, next_attempt_at, created_at, updated_at`

// Add stores a failed event. A second failure of the same event reopens its entry.
func (r *deadLetterRepository) Add(ctx context.Context, letter *domain.DeadLetter) error {
	query := `
		INSERT INTO webhook_dead_letters (id, event_id, event_type, payload, last_error, attempts, status, next_attempt_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, 0, 'pending', $6, NOW(), NOW())
		ON CONFLICT (event_id) DO UPDATE
		SET last_error = EXCLUDED.last_error,
		    status = 'pending',
		    next_attempt_at = EXCLUDED.next_attempt_at,
		    updated_at = NOW()
		RETURNING ` + deadLetterColumns

	if letter.ID == uuid.Nil {
		letter.ID = uuid.New()
	}
	if letter.NextAttemptAt.IsZero() {
		letter.NextAttemptAt = time.Now()
	}

	row := r.db.QueryRowContext(ctx, query,
		letter.ID,
		letter.EventID,
		letter.EventType,
		string(letter.Payload),
		letter.LastError,
		letter.NextAttemptAt,
	)
	if err := scanDeadLetter(row, letter); err != nil {
		r.logger.Error("Failed to add dead letter",
			zap.String("event_id", letter.EventID),
			zap.Error(err),
		)
		return err
	}

	return nil
}

func (r *deadLetterRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeadLetter, error) {
	query := `SELECT ` + deadLetterColumns + ` FROM webhook_dead_letters WHERE id = $1`

	var letter domain.DeadLetter
	err := scanDeadLetter(r.db.QueryRowContext(ctx, query, id), &letter)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "dead letter", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get dead letter by ID", zap.Error(err))
		return nil, err
	}

	return &letter, nil
}

// ListDue returns pending letters whose next attempt time has passed, oldest first
func (r *deadLetterRepository) ListDue(ctx context.Context, limit int) ([]*domain.DeadLetter, error) {
	query := `
		SELECT ` + deadLetterColumns + `
		FROM webhook_dead_letters
		WHERE status = 'pending' AND next_attempt_at <= NOW()
		ORDER BY next_attempt_at ASC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to list due dead letters", zap.Error(err))
		return nil, err
	}
	return collectDeadLetters(rows)
}

// ListByStatus lists letters newest first; an empty status lists all of them
func (r *deadLetterRepository) ListByStatus(ctx context.Context, status domain.DeadLetterStatus, limit, offset int) ([]*domain.DeadLetter, error) {
	query := `
		SELECT ` + deadLetterColumns + `
		FROM webhook_dead_letters
		WHERE ($1::text = '' OR status = $1::text)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, string(status), limit, offset)
	if err != nil {
		r.logger.Error("Failed to list dead letters", zap.Error(err))
		return nil, err
	}
	return collectDeadLetters(rows)
}

func (r *deadLetterRepository) MarkResolved(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE webhook_dead_letters
		SET status = 'resolved', attempts = attempts + 1, last_error = '', updated_at = NOW()
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to resolve dead letter", zap.Error(err))
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &errors.ErrNotFound{Resource: "dead letter", ID: id.String()}
	}
	return nil
}

// MarkFailed records a failed retry with the attempt count, error and schedule held on letter
func (r *deadLetterRepository) MarkFailed(ctx context.Context, letter *domain.DeadLetter) error {
	query := `
		UPDATE webhook_dead_letters
		SET attempts = $2, last_error = $3, status = $4, next_attempt_at = $5, updated_at = NOW()
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query,
		letter.ID,
		letter.Attempts,
		letter.LastError,
		string(letter.Status),
		letter.NextAttemptAt,
	)
	if err != nil {
		r.logger.Error("Failed to update dead letter", zap.Error(err))
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &errors.ErrNotFound{Resource: "dead letter", ID: letter.ID.String()}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDeadLetter(row rowScanner, letter *domain.DeadLetter) error {
	var status string
	err := row.Scan(
		&letter.ID,
		&letter.EventID,
		&letter.EventType,
		&letter.Payload,
		&letter.LastError,
		&letter.Attempts,
		&status,
		&letter.NextAttemptAt,
		&letter.CreatedAt,
		&letter.UpdatedAt,
	)
	letter.Status = domain.DeadLetterStatus(status)
	return err
}

func collectDeadLetters(rows *sql.Rows) ([]*domain.DeadLetter, error) {
	defer rows.Close()

	var letters []*domain.DeadLetter
	for rows.Next() {
		var letter domain.DeadLetter
		if err := scanDeadLetter(rows, &letter); err != nil {
			return nil, err
		}
		letters = append(letters, &letter)
	}
	return letters, rows.Err()
}
