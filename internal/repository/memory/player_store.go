package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/checkin-service/internal/domain"
)

// PlayerStore is an in-memory PlayerRepository.
type PlayerStore struct {
	mu      sync.Mutex
	players map[string]*domain.Player
}

// NewPlayerStore builds a store pre-seeded with the given players.
func NewPlayerStore(players ...domain.Player) *PlayerStore {
	s := &PlayerStore{players: make(map[string]*domain.Player)}
	for i := range players {
		p := players[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		s.players[p.ID] = &p
	}
	return s
}

func (s *PlayerStore) Create(_ context.Context, player *domain.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if player.ID == "" {
		player.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	player.CreatedAt = now
	player.UpdatedAt = now
	clone := *player
	s.players[player.ID] = &clone
	return nil
}

func (s *PlayerStore) Update(_ context.Context, player *domain.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[player.ID]; !ok {
		return pgx.ErrNoRows
	}
	player.UpdatedAt = time.Now().UTC()
	clone := *player
	s.players[player.ID] = &clone
	return nil
}

func (s *PlayerStore) GetByID(_ context.Context, id string) (*domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *player
	return &clone, nil
}

func (s *PlayerStore) GetByEmail(_ context.Context, email string) (*domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, player := range s.players {
		if player.Email == email {
			clone := *player
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}
