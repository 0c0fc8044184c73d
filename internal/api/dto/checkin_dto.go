package dto

import (
	"time"

	"github.com/spec-kit/checkin-service/internal/domain"
)

// GenerateQRRequest payload.
type GenerateQRRequest struct {
	PlayerID    string             `json:"player_id"`
	SessionID   string             `json:"session_id"`
	SessionKind domain.SessionKind `json:"session_kind"`
}

// QRTokenResponse is the full rendered payload handed back for display.
// Signature is the full digest; DisplayCode is the human-facing truncation.
type QRTokenResponse struct {
	TokenID     string             `json:"token_id"`
	PlayerID    string             `json:"player_id"`
	SessionID   string             `json:"session_id"`
	SessionKind domain.SessionKind `json:"session_kind"`
	IssuedAtMs  int64              `json:"issued_at_ms"`
	Signature   string             `json:"signature"`
	DisplayCode string             `json:"display_code"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

// ScanQRRequest payload. session_id/kind/issued_at_ms/signature come from the
// decoded code; claimed_session_id is what the scanner believes it is scanning
// for.
type ScanQRRequest struct {
	PlayerID         string             `json:"player_id"`
	SessionID        string             `json:"session_id"`
	SessionKind      domain.SessionKind `json:"session_kind"`
	IssuedAtMs       int64              `json:"issued_at_ms"`
	Signature        string             `json:"signature"`
	ClaimedSessionID *string            `json:"claimed_session_id,omitempty"`
}

// ScanQRResponse reports a successful redemption.
type ScanQRResponse struct {
	PlayerID    string              `json:"player_id"`
	PlayerName  string              `json:"player_name,omitempty"`
	TeamName    *string             `json:"team_name,omitempty"`
	SessionID   string              `json:"session_id"`
	SessionKind domain.SessionKind  `json:"session_kind"`
	Session     *SessionSummary     `json:"session,omitempty"`
	Attendance  *AttendanceResponse `json:"attendance,omitempty"`
	CheckedInAt *time.Time          `json:"checked_in_at,omitempty"`
	Warning     string              `json:"warning,omitempty"`
}

// SessionSummary enriches scan responses.
type SessionSummary struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Kind        domain.SessionKind `json:"kind"`
	ScheduledAt time.Time          `json:"scheduled_at"`
	Location    *string            `json:"location,omitempty"`
}

// ManualAttendanceRequest payload.
type ManualAttendanceRequest struct {
	PlayerID    string                  `json:"player_id"`
	SessionID   string                  `json:"session_id"`
	SessionKind domain.SessionKind      `json:"session_kind"`
	Status      domain.AttendanceStatus `json:"status"`
	Location    *string                 `json:"location,omitempty"`
	Notes       *string                 `json:"notes,omitempty"`
}

// AttendanceResponse describes one ledger row.
type AttendanceResponse struct {
	ID          string                  `json:"id"`
	PlayerID    string                  `json:"player_id"`
	SessionID   string                  `json:"session_id"`
	SessionKind domain.SessionKind      `json:"session_kind"`
	Status      domain.AttendanceStatus `json:"status"`
	CheckInTime time.Time               `json:"check_in_time"`
	Source      domain.AttendanceSource `json:"source"`
	RecordedBy  string                  `json:"recorded_by"`
	Location    *string                 `json:"location,omitempty"`
	Notes       *string                 `json:"notes,omitempty"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// AuditEntryResponse describes one audit trail entry.
type AuditEntryResponse struct {
	ID         string               `json:"id"`
	PlayerID   string               `json:"player_id"`
	SessionID  *string              `json:"session_id,omitempty"`
	Action     domain.AuditAction   `json:"action"`
	Metadata   domain.AuditMetadata `json:"metadata"`
	RecordedAt time.Time            `json:"recorded_at"`
}
