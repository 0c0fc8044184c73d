package events

import (
	"time"

	"github.com/spec-kit/checkin-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTokenIssued          EventType = "token_issued"
	EventTokenRedeemed        EventType = "token_redeemed"
	EventScanRejected         EventType = "scan_rejected"
	EventAttendanceOverridden EventType = "attendance_overridden"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type     domain.SubjectType `json:"type"`
	PlayerID *string            `json:"player_id,omitempty"`
	StaffID  *string            `json:"staff_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	PlayerID  string      `json:"player_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TokenIssuedPayload payload.
type TokenIssuedPayload struct {
	TokenID     string             `json:"token_id"`
	SessionID   string             `json:"session_id"`
	SessionKind domain.SessionKind `json:"session_kind"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

// TokenRedeemedPayload payload.
type TokenRedeemedPayload struct {
	TokenID     string             `json:"token_id"`
	SessionID   string             `json:"session_id"`
	SessionKind domain.SessionKind `json:"session_kind"`
	ScannerID   string             `json:"scanner_id"`
}

// ScanRejectedPayload payload.
type ScanRejectedPayload struct {
	SessionID string `json:"session_id,omitempty"`
	Reason    string `json:"reason"`
	ScannerID string `json:"scanner_id,omitempty"`
}

// AttendanceOverriddenPayload payload.
type AttendanceOverriddenPayload struct {
	SessionID   string                  `json:"session_id"`
	SessionKind domain.SessionKind      `json:"session_kind"`
	Status      domain.AttendanceStatus `json:"status"`
	RecordedBy  string                  `json:"recorded_by"`
}
