// Package memory provides in-memory repository implementations used by
// service tests. Token consumption is guarded by a mutex so the
// exactly-once contract of the Postgres conditional update holds here too.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/checkin-service/internal/domain"
)

// TokenStore is an in-memory TokenRepository.
type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]*domain.Token
}

// NewTokenStore builds an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]*domain.Token)}
}

func (s *TokenStore) Create(_ context.Context, token *domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	clone := *token
	s.tokens[token.ID] = &clone
	return nil
}

func (s *TokenStore) GetByID(_ context.Context, id string) (*domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *token
	return &clone, nil
}

func (s *TokenStore) GetBySignature(_ context.Context, playerID, signature string, issuedAtMillis int64) (*domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range s.tokens {
		if token.PlayerID == playerID && token.Signature == signature && token.IssuedAtMillis == issuedAtMillis {
			clone := *token
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *TokenStore) Consume(_ context.Context, id, scannerID string, at time.Time) (bool, domain.TokenState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	if !ok {
		return false, "", pgx.ErrNoRows
	}
	if token.State != domain.TokenStateActive {
		return false, token.State, nil
	}
	token.State = domain.TokenStateConsumed
	token.ConsumedAt = &at
	token.ConsumedBy = &scannerID
	return true, domain.TokenStateConsumed, nil
}

func (s *TokenStore) Expire(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	if !ok || token.State != domain.TokenStateActive {
		return pgx.ErrNoRows
	}
	token.State = domain.TokenStateExpired
	return nil
}
