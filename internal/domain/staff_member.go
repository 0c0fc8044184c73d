package domain

import "time"

// SubjectType distinguishes authenticated caller kinds.
type SubjectType string

const (
	SubjectTypePlayer SubjectType = "PLAYER"
	SubjectTypeStaff  SubjectType = "STAFF"
)

// StaffRole enumerates supervisor roles.
type StaffRole string

const (
	StaffRoleCoach StaffRole = "COACH"
	StaffRoleAdmin StaffRole = "ADMIN"
)

// StaffMember is a supervisor allowed to scan, expire and override.
type StaffMember struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         StaffRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
