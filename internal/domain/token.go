package domain

import "time"

// SessionKind routes a token to the right session directory.
type SessionKind string

const (
	SessionKindTraining SessionKind = "TRAINING"
	SessionKindMatch    SessionKind = "MATCH"
	SessionKindEvent    SessionKind = "EVENT"
	SessionKindIdentity SessionKind = "IDENTITY"
)

// TokenState enumerates the token lifecycle. State only moves forward:
// ACTIVE -> CONSUMED or ACTIVE -> EXPIRED, never back.
type TokenState string

const (
	TokenStateActive   TokenState = "ACTIVE"
	TokenStateConsumed TokenState = "CONSUMED"
	TokenStateExpired  TokenState = "EXPIRED"
)

// SessionUnbound is the sentinel session id for tokens not bound to a
// specific session (generic identity codes).
const SessionUnbound = "player-id"

// Token is the signed, time-boxed check-in credential.
type Token struct {
	ID             string
	PlayerID       string
	SessionID      string
	SessionKind    SessionKind
	Signature      string
	IssuedAtMillis int64
	ExpiresAt      time.Time
	State          TokenState
	ConsumedAt     *time.Time
	ConsumedBy     *string
	CreatedAt      time.Time
}

// Bound reports whether the token targets a specific session.
func (t *Token) Bound() bool {
	return t.SessionID != SessionUnbound
}
