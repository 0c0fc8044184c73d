package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/checkin-service/internal/domain"
)

type attendanceKey struct {
	playerID  string
	sessionID string
	kind      domain.SessionKind
}

// AttendanceStore is an in-memory AttendanceRepository.
type AttendanceStore struct {
	mu      sync.Mutex
	records map[attendanceKey]*domain.AttendanceRecord
}

// NewAttendanceStore builds an empty store.
func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{records: make(map[attendanceKey]*domain.AttendanceRecord)}
}

func (s *AttendanceStore) Upsert(_ context.Context, record *domain.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attendanceKey{record.PlayerID, record.SessionID, record.SessionKind}
	now := time.Now().UTC()
	if existing, ok := s.records[key]; ok {
		existing.Status = record.Status
		existing.CheckInTime = record.CheckInTime
		existing.Source = record.Source
		existing.RecordedBy = record.RecordedBy
		if record.Location != nil {
			existing.Location = record.Location
		}
		if record.Notes != nil {
			existing.Notes = record.Notes
		}
		existing.UpdatedAt = now
		*record = *existing
		return nil
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = now
	record.UpdatedAt = now
	clone := *record
	s.records[key] = &clone
	return nil
}

func (s *AttendanceStore) Get(_ context.Context, playerID, sessionID string, kind domain.SessionKind) (*domain.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[attendanceKey{playerID, sessionID, kind}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *record
	return &clone, nil
}

func (s *AttendanceStore) ListBySession(_ context.Context, sessionID string, kind domain.SessionKind) ([]domain.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.AttendanceRecord
	for key, record := range s.records {
		if key.sessionID == sessionID && key.kind == kind {
			result = append(result, *record)
		}
	}
	return result, nil
}

// Len reports how many attendance rows exist, for duplicate checks in tests.
func (s *AttendanceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
