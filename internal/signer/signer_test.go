package signer_test

import (
	"strings"
	"testing"

	"github.com/spec-kit/checkin-service/internal/signer"
)

func TestSign_Deterministic(t *testing.T) {
	s := signer.New(signer.NewRotatingSecrets("secret-a", ""))

	sig1 := s.Sign("player-42", "session-7", 1700000000000)
	sig2 := s.Sign("player-42", "session-7", 1700000000000)
	if sig1 != sig2 {
		t.Errorf("expected identical signatures, got %q vs %q", sig1, sig2)
	}
	if len(sig1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(sig1))
	}
}

func TestSign_FieldsChangeSignature(t *testing.T) {
	s := signer.New(signer.NewRotatingSecrets("secret-a", ""))
	base := s.Sign("player-42", "session-7", 1700000000000)

	cases := []struct {
		name      string
		playerID  string
		sessionID string
		issuedAt  int64
	}{
		{"player differs", "player-43", "session-7", 1700000000000},
		{"session differs", "player-42", "session-8", 1700000000000},
		{"timestamp differs", "player-42", "session-7", 1700000000001},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if s.Sign(tc.playerID, tc.sessionID, tc.issuedAt) == base {
				t.Error("expected a different signature")
			}
		})
	}
}

func TestVerify_AcceptsOwnSignature(t *testing.T) {
	s := signer.New(signer.NewRotatingSecrets("secret-a", ""))
	sig := s.Sign("player-42", "session-7", 1700000000000)

	if !s.Verify("player-42", "session-7", 1700000000000, sig) {
		t.Error("expected verification to succeed")
	}
}

func TestVerify_RejectsTamperedSignature(t *testing.T) {
	s := signer.New(signer.NewRotatingSecrets("secret-a", ""))
	sig := s.Sign("player-42", "session-7", 1700000000000)

	flipped := flipHexChar(sig, 0)
	if s.Verify("player-42", "session-7", 1700000000000, flipped) {
		t.Error("expected tampered signature to be rejected")
	}
	if s.Verify("player-42", "session-7", 1700000000000, sig[:signer.DisplayLength]) {
		t.Error("expected truncated signature to be rejected at the trust boundary")
	}
}

func TestVerify_PreviousKeyGrace(t *testing.T) {
	old := signer.New(signer.NewRotatingSecrets("secret-a", ""))
	sig := old.Sign("player-42", "session-7", 1700000000000)

	rotated := signer.NewRotatingSecrets("secret-b", "secret-a")
	s := signer.New(rotated)
	if !s.Verify("player-42", "session-7", 1700000000000, sig) {
		t.Error("expected token signed with previous key to verify during grace")
	}

	noGrace := signer.New(signer.NewRotatingSecrets("secret-b", ""))
	if noGrace.Verify("player-42", "session-7", 1700000000000, sig) {
		t.Error("expected old signature to fail without grace key")
	}
}

func TestRotate_DemotesCurrentKey(t *testing.T) {
	secrets := signer.NewRotatingSecrets("secret-a", "")
	s := signer.New(secrets)
	sig := s.Sign("player-42", "session-7", 1700000000000)

	secrets.Rotate("secret-b")
	if !s.Verify("player-42", "session-7", 1700000000000, sig) {
		t.Error("expected signature under demoted key to verify after rotation")
	}
	if s.Sign("player-42", "session-7", 1700000000000) == sig {
		t.Error("expected new current key to produce a different signature")
	}
}

func TestDisplayCode(t *testing.T) {
	s := signer.New(signer.NewRotatingSecrets("secret-a", ""))
	sig := s.Sign("player-42", "session-7", 1700000000000)

	code := signer.DisplayCode(sig)
	if len(code) != signer.DisplayLength {
		t.Errorf("expected %d chars, got %d", signer.DisplayLength, len(code))
	}
	if !strings.HasPrefix(sig, code) {
		t.Error("display code should be a prefix of the full digest")
	}
}

func flipHexChar(s string, i int) string {
	b := []byte(s)
	if b[i] == 'a' {
		b[i] = 'b'
	} else {
		b[i] = 'a'
	}
	return string(b)
}
