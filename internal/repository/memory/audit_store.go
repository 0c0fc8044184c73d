package memory

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/repository"
)

// AuditStore is an in-memory, append-only AuditRepository.
type AuditStore struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

// NewAuditStore builds an empty store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) Append(_ context.Context, entry *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *AuditStore) ListByPlayer(_ context.Context, playerID string, limit, offset int) ([]domain.AuditEntry, error) {
	if limit <= 0 || limit > repository.MaxAuditPageSize {
		limit = repository.MaxAuditPageSize
	}
	if offset < 0 {
		offset = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []domain.AuditEntry
	for i := len(s.entries) - 1; i >= 0; i-- { // newest first
		if s.entries[i].PlayerID == playerID {
			matched = append(matched, s.entries[i])
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Entries returns a snapshot of everything appended, oldest first.
func (s *AuditStore) Entries() []domain.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditEntry{}, s.entries...)
}
