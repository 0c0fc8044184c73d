package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/checkin-service/internal/domain"
)

// MaxAuditPageSize caps caller-supplied page sizes.
const MaxAuditPageSize = 100

// AuditRepository is the append-only attempt trail. Entries are never
// mutated or deleted.
type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	ListByPlayer(ctx context.Context, playerID string, limit, offset int) ([]domain.AuditEntry, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository returns a Postgres-backed implementation.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO audit_entries (id, player_id, session_id, action, metadata)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING recorded_at`
	return r.pool.QueryRow(ctx, query,
		entry.ID,
		entry.PlayerID,
		entry.SessionID,
		entry.Action,
		metadata,
	).Scan(&entry.RecordedAt)
}

func (r *auditRepository) ListByPlayer(ctx context.Context, playerID string, limit, offset int) ([]domain.AuditEntry, error) {
	if limit <= 0 || limit > MaxAuditPageSize {
		limit = MaxAuditPageSize
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, player_id, session_id, action, metadata, recorded_at
        FROM audit_entries WHERE player_id=$1
        ORDER BY recorded_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, playerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		var metadata []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.PlayerID,
			&entry.SessionID,
			&entry.Action,
			&metadata,
			&entry.RecordedAt,
		); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, err
			}
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
