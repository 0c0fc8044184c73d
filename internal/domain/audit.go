package domain

import "time"

// AuditAction identifies what an audit entry records.
type AuditAction string

const (
	AuditGenerate             AuditAction = "generate"
	AuditScanSuccess          AuditAction = "scan_success"
	AuditScanMalformed        AuditAction = "scan_malformed"
	AuditScanExpired          AuditAction = "scan_expired"
	AuditScanInvalidSignature AuditAction = "scan_invalid_signature"
	AuditScanSessionMismatch  AuditAction = "scan_session_mismatch"
	AuditScanNotFound         AuditAction = "scan_not_found"
	AuditScanAlreadyUsed      AuditAction = "scan_already_used"
	AuditTokenExpired         AuditAction = "expire"
	AuditManualAttendance     AuditAction = "manual_attendance"
)

// AuditMetadata captures the known context shapes per action. Extra carries
// forward-compatible key/value pairs that have no dedicated field yet.
type AuditMetadata struct {
	Actor            string            `json:"actor,omitempty"`
	IP               string            `json:"ip,omitempty"`
	UserAgent        string            `json:"user_agent,omitempty"`
	Reason           string            `json:"reason,omitempty"`
	ClaimedSessionID *string           `json:"claimed_session_id,omitempty"`
	Warning          string            `json:"warning,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// AuditEntry is an immutable record of one attempted operation.
// Entries are append-only; nothing in the service mutates or deletes them.
type AuditEntry struct {
	ID         string
	PlayerID   string
	SessionID  *string
	Action     AuditAction
	Metadata   AuditMetadata
	RecordedAt time.Time
}
