package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/checkin-service/internal/domain"
)

// SessionRepository is the session directory, read for response enrichment
// only. Redemption decisions never consult it.
type SessionRepository interface {
	GetByID(ctx context.Context, id string, kind domain.SessionKind) (*domain.TrainingSession, error)
}

type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository returns a Postgres-backed implementation.
func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepository{pool: pool}
}

func (r *sessionRepository) GetByID(ctx context.Context, id string, kind domain.SessionKind) (*domain.TrainingSession, error) {
	const query = `
        SELECT id, title, kind, scheduled_at, location, created_at
        FROM training_sessions WHERE id=$1 AND kind=$2`
	var session domain.TrainingSession
	if err := r.pool.QueryRow(ctx, query, id, kind).Scan(
		&session.ID,
		&session.Title,
		&session.Kind,
		&session.ScheduledAt,
		&session.Location,
		&session.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &session, nil
}
