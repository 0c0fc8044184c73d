package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/checkin-service/internal/auth"
	"github.com/spec-kit/checkin-service/internal/config"
	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/repository"
)

// AuthService coordinates registration and login flows. It is the concrete
// authorization gate in front of the check-in core.
type AuthService struct {
	players    repository.PlayerRepository
	staff      repository.StaffRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	PlayerRepo repository.PlayerRepository
	StaffRepo  repository.StaffRepository
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		players:    deps.PlayerRepo,
		staff:      deps.StaffRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// RegisterPlayer creates a new player account.
func (s *AuthService) RegisterPlayer(ctx context.Context, name, email, password string, teamName *string) (*domain.Player, string, time.Time, error) {
	if _, err := s.players.GetByEmail(ctx, email); err == nil {
		return nil, "", time.Time{}, errors.New("email already registered")
	} else if err != nil && err != pgx.ErrNoRows {
		return nil, "", time.Time{}, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	player := &domain.Player{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		TeamName:     teamName,
		Status:       domain.PlayerStatusActive,
	}
	if err := s.players.Create(ctx, player); err != nil {
		return nil, "", time.Time{}, err
	}

	token, exp, err := s.tokenMgr.GenerateToken(player.ID, domain.SubjectTypePlayer, nil)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return player, token, exp, nil
}

// LoginPlayer authenticates a player.
func (s *AuthService) LoginPlayer(ctx context.Context, email, password string) (*domain.Player, string, time.Time, error) {
	player, err := s.players.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if player.Status != domain.PlayerStatusActive {
		return nil, "", time.Time{}, errors.New("player inactive")
	}
	if err := auth.ComparePassword(player.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, errors.New("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(player.ID, domain.SubjectTypePlayer, nil)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return player, token, exp, nil
}

// LoginStaff authenticates a supervisor and returns a role-bearing token.
func (s *AuthService) LoginStaff(ctx context.Context, email, password string) (*domain.StaffMember, string, time.Time, error) {
	staff, err := s.staff.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if !staff.Active {
		return nil, "", time.Time{}, errors.New("staff inactive")
	}
	if err := auth.ComparePassword(staff.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, errors.New("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(staff.ID, domain.SubjectTypeStaff, &staff.Role)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return staff, token, exp, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
