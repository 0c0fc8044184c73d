package domain

import "time"

// PlayerStatus marks whether a player account is usable.
type PlayerStatus string

const (
	PlayerStatusActive   PlayerStatus = "ACTIVE"
	PlayerStatusInactive PlayerStatus = "INACTIVE"
)

// Player is a participant in the attendance directory.
type Player struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	TeamName     *string
	Status       PlayerStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
