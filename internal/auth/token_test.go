package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/checkin-service/internal/domain"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("jwt-secret", 60)
	role := domain.StaffRoleCoach

	signed, expiresAt, err := tm.GenerateToken("staff-1", domain.SubjectTypeStaff, &role)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Error("expected a future expiry")
	}

	claims, err := tm.ParseToken(signed)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.SubjectID != "staff-1" {
		t.Errorf("expected subject staff-1, got %s", claims.SubjectID)
	}
	if claims.Subject != domain.SubjectTypeStaff {
		t.Errorf("expected STAFF subject, got %s", claims.Subject)
	}
	if claims.Role == nil || *claims.Role != domain.StaffRoleCoach {
		t.Error("expected COACH role claim")
	}
}

func TestTokenManager_PlayerTokenHasNoRole(t *testing.T) {
	tm := NewTokenManager("jwt-secret", 60)

	signed, _, err := tm.GenerateToken("player-1", domain.SubjectTypePlayer, nil)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := tm.ParseToken(signed)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Role != nil {
		t.Errorf("expected nil role for player token, got %v", *claims.Role)
	}
}

func TestTokenManager_RejectsWrongSecret(t *testing.T) {
	issuer := NewTokenManager("secret-a", 60)
	verifier := NewTokenManager("secret-b", 60)

	signed, _, err := issuer.GenerateToken("staff-1", domain.SubjectTypeStaff, nil)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := verifier.ParseToken(signed); err == nil {
		t.Error("expected verification failure across secrets")
	}
}

func TestTokenManager_RejectsTamperedToken(t *testing.T) {
	tm := NewTokenManager("jwt-secret", 60)

	signed, _, err := tm.GenerateToken("staff-1", domain.SubjectTypeStaff, nil)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	parts := strings.Split(signed, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %d parts", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := tm.ParseToken(tampered); err == nil {
		t.Error("expected rejection of tampered signature")
	}
}
