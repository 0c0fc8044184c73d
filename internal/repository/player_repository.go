package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/checkin-service/internal/domain"
)

// PlayerRepository is the participant directory.
type PlayerRepository interface {
	Create(ctx context.Context, player *domain.Player) error
	Update(ctx context.Context, player *domain.Player) error
	GetByID(ctx context.Context, id string) (*domain.Player, error)
	GetByEmail(ctx context.Context, email string) (*domain.Player, error)
}

type playerRepository struct {
	pool *pgxpool.Pool
}

// NewPlayerRepository returns a Postgres-backed implementation.
func NewPlayerRepository(pool *pgxpool.Pool) PlayerRepository {
	return &playerRepository{pool: pool}
}

func (r *playerRepository) Create(ctx context.Context, player *domain.Player) error {
	const query = `
        INSERT INTO players (name, email, password_hash, team_name, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		player.Name,
		player.Email,
		player.PasswordHash,
		player.TeamName,
		player.Status,
	).Scan(&player.ID, &player.CreatedAt, &player.UpdatedAt)
}

func (r *playerRepository) Update(ctx context.Context, player *domain.Player) error {
	const query = `
        UPDATE players SET name=$1, email=$2, password_hash=$3, team_name=$4, status=$5, updated_at=NOW()
        WHERE id=$6`
	cmd, err := r.pool.Exec(ctx, query,
		player.Name,
		player.Email,
		player.PasswordHash,
		player.TeamName,
		player.Status,
		player.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *playerRepository) GetByID(ctx context.Context, id string) (*domain.Player, error) {
	const query = `
        SELECT id, name, email, password_hash, team_name, status, created_at, updated_at
        FROM players WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *playerRepository) GetByEmail(ctx context.Context, email string) (*domain.Player, error) {
	const query = `
        SELECT id, name, email, password_hash, team_name, status, created_at, updated_at
        FROM players WHERE email=$1`
	return r.fetchSingle(ctx, query, email)
}

func (r *playerRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Player, error) {
	var player domain.Player
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&player.ID,
		&player.Name,
		&player.Email,
		&player.PasswordHash,
		&player.TeamName,
		&player.Status,
		&player.CreatedAt,
		&player.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &player, nil
}
