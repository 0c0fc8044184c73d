package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"
)

// DisplayLength is how many hex characters of the digest are shown when a
// code is rendered for humans. The full digest is always what crosses the
// trust boundary; truncation is presentation only.
const DisplayLength = 16

// SecretProvider supplies the current signing key and, during a rotation
// grace period, the previous one so tokens issued just before the switch
// stay valid through their expiry window.
type SecretProvider interface {
	Current() []byte
	Previous() ([]byte, bool)
}

// RotatingSecrets is a SecretProvider that can be rotated at runtime.
type RotatingSecrets struct {
	mu       sync.RWMutex
	current  []byte
	previous []byte
}

// NewRotatingSecrets builds a provider. previous may be empty when no
// rotation is in progress.
func NewRotatingSecrets(current, previous string) *RotatingSecrets {
	rs := &RotatingSecrets{current: []byte(current)}
	if previous != "" {
		rs.previous = []byte(previous)
	}
	return rs
}

// Current returns the active signing key.
func (rs *RotatingSecrets) Current() []byte {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.current
}

// Previous returns the pre-rotation key when one is held.
func (rs *RotatingSecrets) Previous() ([]byte, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	if len(rs.previous) == 0 {
		return nil, false
	}
	return rs.previous, true
}

// Rotate installs a new current key, demoting the old one to previous.
func (rs *RotatingSecrets) Rotate(next string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.previous = rs.current
	rs.current = []byte(next)
}

// Signer derives keyed signatures binding a player, a session and an
// issuance timestamp. The same derivation serves issuance and validation.
type Signer struct {
	secrets SecretProvider
}

// New builds a Signer over the given secret provider.
func New(secrets SecretProvider) *Signer {
	return &Signer{secrets: secrets}
}

// Sign returns the hex HMAC-SHA256 digest for the claimed fields under the
// current key.
func (s *Signer) Sign(playerID, sessionID string, issuedAtMillis int64) string {
	return derive(s.secrets.Current(), playerID, sessionID, issuedAtMillis)
}

// Verify re-derives the signature from the claimed fields and compares it
// against the presented value in constant time. A token signed with the
// previous key is still accepted while the provider holds one.
func (s *Signer) Verify(playerID, sessionID string, issuedAtMillis int64, presented string) bool {
	expected := derive(s.secrets.Current(), playerID, sessionID, issuedAtMillis)
	if constantTimeEqual(expected, presented) {
		return true
	}
	if prev, ok := s.secrets.Previous(); ok {
		return constantTimeEqual(derive(prev, playerID, sessionID, issuedAtMillis), presented)
	}
	return false
}

// DisplayCode truncates a full digest to the rendered length.
func DisplayCode(signature string) string {
	if len(signature) <= DisplayLength {
		return signature
	}
	return signature[:DisplayLength]
}

func derive(secret []byte, playerID, sessionID string, issuedAtMillis int64) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%s|%s|%d", playerID, sessionID, issuedAtMillis)
	return hex.EncodeToString(mac.Sum(nil))
}

func constantTimeEqual(expected, presented string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}
