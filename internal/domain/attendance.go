package domain

import "time"

// AttendanceStatus enumerates check-in outcomes.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceExcused AttendanceStatus = "EXCUSED"
)

// AttendanceSource records how a check-in was captured.
type AttendanceSource string

const (
	SourceQR     AttendanceSource = "QR"
	SourceManual AttendanceSource = "MANUAL"
)

// AttendanceRecord is the per (player, session, kind) check-in outcome.
// The tuple is unique; repeated redemptions or overrides update the same row.
type AttendanceRecord struct {
	ID          string
	PlayerID    string
	SessionID   string
	SessionKind SessionKind
	Status      AttendanceStatus
	CheckInTime time.Time
	Source      AttendanceSource
	RecordedBy  string
	Location    *string
	Notes       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidAttendanceStatus reports whether s is a known status value.
func ValidAttendanceStatus(s AttendanceStatus) bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	}
	return false
}

// ValidSessionKind reports whether k is a known session kind.
func ValidSessionKind(k SessionKind) bool {
	switch k {
	case SessionKindTraining, SessionKindMatch, SessionKindEvent, SessionKindIdentity:
		return true
	}
	return false
}
