package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/checkin-service/internal/domain"
)

// TokenRepository encapsulates qr token persistence. Consume and Expire are
// single conditional updates; they are the only writers of token state.
type TokenRepository interface {
	Create(ctx context.Context, token *domain.Token) error
	GetByID(ctx context.Context, id string) (*domain.Token, error)
	// GetBySignature resolves the row matching the presented payload fields.
	GetBySignature(ctx context.Context, playerID, signature string, issuedAtMillis int64) (*domain.Token, error)
	// Consume atomically transitions ACTIVE -> CONSUMED. When the row is no
	// longer ACTIVE it reports consumed=false and the state it found;
	// pgx.ErrNoRows when no such token exists at all.
	Consume(ctx context.Context, id, scannerID string, at time.Time) (bool, domain.TokenState, error)
	// Expire atomically transitions ACTIVE -> EXPIRED. pgx.ErrNoRows when the
	// token is missing or already consumed/expired.
	Expire(ctx context.Context, id string) error
}

type tokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository returns a Postgres-backed implementation.
func NewTokenRepository(pool *pgxpool.Pool) TokenRepository {
	return &tokenRepository{pool: pool}
}

func (r *tokenRepository) Create(ctx context.Context, token *domain.Token) error {
	const query = `
        INSERT INTO qr_tokens (id, player_id, session_id, session_kind, signature, issued_at_ms, expires_at, state)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		token.ID,
		token.PlayerID,
		token.SessionID,
		token.SessionKind,
		token.Signature,
		token.IssuedAtMillis,
		token.ExpiresAt,
		token.State,
	).Scan(&token.CreatedAt)
}

func (r *tokenRepository) GetByID(ctx context.Context, id string) (*domain.Token, error) {
	const query = `
        SELECT id, player_id, session_id, session_kind, signature, issued_at_ms, expires_at, state, consumed_at, consumed_by, created_at
        FROM qr_tokens WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *tokenRepository) GetBySignature(ctx context.Context, playerID, signature string, issuedAtMillis int64) (*domain.Token, error) {
	const query = `
        SELECT id, player_id, session_id, session_kind, signature, issued_at_ms, expires_at, state, consumed_at, consumed_by, created_at
        FROM qr_tokens WHERE player_id=$1 AND signature=$2 AND issued_at_ms=$3`
	return r.fetchSingle(ctx, query, playerID, signature, issuedAtMillis)
}

func (r *tokenRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Token, error) {
	var token domain.Token
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&token.ID,
		&token.PlayerID,
		&token.SessionID,
		&token.SessionKind,
		&token.Signature,
		&token.IssuedAtMillis,
		&token.ExpiresAt,
		&token.State,
		&token.ConsumedAt,
		&token.ConsumedBy,
		&token.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *tokenRepository) Consume(ctx context.Context, id, scannerID string, at time.Time) (bool, domain.TokenState, error) {
	const query = `
        UPDATE qr_tokens SET state=$1, consumed_at=$2, consumed_by=$3
        WHERE id=$4 AND state=$5`
	cmd, err := r.pool.Exec(ctx, query,
		domain.TokenStateConsumed,
		at,
		scannerID,
		id,
		domain.TokenStateActive,
	)
	if err != nil {
		return false, "", err
	}
	if cmd.RowsAffected() == 1 {
		return true, domain.TokenStateConsumed, nil
	}

	// Lost the race or the token was administratively expired; report which.
	var state domain.TokenState
	if err := r.pool.QueryRow(ctx, `SELECT state FROM qr_tokens WHERE id=$1`, id).Scan(&state); err != nil {
		return false, "", err
	}
	return false, state, nil
}

func (r *tokenRepository) Expire(ctx context.Context, id string) error {
	const query = `UPDATE qr_tokens SET state=$1 WHERE id=$2 AND state=$3`
	cmd, err := r.pool.Exec(ctx, query, domain.TokenStateExpired, id, domain.TokenStateActive)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
