package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/checkin-service/internal/domain"
)

// AttendanceRepository persists per (player, session, kind) check-in outcomes.
type AttendanceRepository interface {
	// Upsert inserts the record or, when the tuple already exists, updates the
	// existing row in place (last write wins on status).
	Upsert(ctx context.Context, record *domain.AttendanceRecord) error
	Get(ctx context.Context, playerID, sessionID string, kind domain.SessionKind) (*domain.AttendanceRecord, error)
	ListBySession(ctx context.Context, sessionID string, kind domain.SessionKind) ([]domain.AttendanceRecord, error)
}

type attendanceRepository struct {
	pool *pgxpool.Pool
}

// NewAttendanceRepository returns a Postgres-backed implementation.
func NewAttendanceRepository(pool *pgxpool.Pool) AttendanceRepository {
	return &attendanceRepository{pool: pool}
}

func (r *attendanceRepository) Upsert(ctx context.Context, record *domain.AttendanceRecord) error {
	const query = `
        INSERT INTO attendance_records (id, player_id, session_id, session_kind, status, check_in_time, source, recorded_by, location, notes)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT (player_id, session_id, session_kind) DO UPDATE SET
            status=EXCLUDED.status,
            check_in_time=EXCLUDED.check_in_time,
            source=EXCLUDED.source,
            recorded_by=EXCLUDED.recorded_by,
            location=COALESCE(EXCLUDED.location, attendance_records.location),
            notes=COALESCE(EXCLUDED.notes, attendance_records.notes),
            updated_at=NOW()
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		record.ID,
		record.PlayerID,
		record.SessionID,
		record.SessionKind,
		record.Status,
		record.CheckInTime,
		record.Source,
		record.RecordedBy,
		record.Location,
		record.Notes,
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
}

func (r *attendanceRepository) Get(ctx context.Context, playerID, sessionID string, kind domain.SessionKind) (*domain.AttendanceRecord, error) {
	const query = `
        SELECT id, player_id, session_id, session_kind, status, check_in_time, source, recorded_by, location, notes, created_at, updated_at
        FROM attendance_records WHERE player_id=$1 AND session_id=$2 AND session_kind=$3`
	var record domain.AttendanceRecord
	if err := r.pool.QueryRow(ctx, query, playerID, sessionID, kind).Scan(
		&record.ID,
		&record.PlayerID,
		&record.SessionID,
		&record.SessionKind,
		&record.Status,
		&record.CheckInTime,
		&record.Source,
		&record.RecordedBy,
		&record.Location,
		&record.Notes,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *attendanceRepository) ListBySession(ctx context.Context, sessionID string, kind domain.SessionKind) ([]domain.AttendanceRecord, error) {
	const query = `
        SELECT id, player_id, session_id, session_kind, status, check_in_time, source, recorded_by, location, notes, created_at, updated_at
        FROM attendance_records WHERE session_id=$1 AND session_kind=$2 ORDER BY check_in_time ASC`
	rows, err := r.pool.Query(ctx, query, sessionID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttendance(rows)
}

func scanAttendance(rows pgx.Rows) ([]domain.AttendanceRecord, error) {
	var result []domain.AttendanceRecord
	for rows.Next() {
		var record domain.AttendanceRecord
		if err := rows.Scan(
			&record.ID,
			&record.PlayerID,
			&record.SessionID,
			&record.SessionKind,
			&record.Status,
			&record.CheckInTime,
			&record.Source,
			&record.RecordedBy,
			&record.Location,
			&record.Notes,
			&record.CreatedAt,
			&record.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
