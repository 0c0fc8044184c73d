package domain

import "time"

// TrainingSession is a scheduled activity players check in to. Used for
// response enrichment only; redemption decisions never depend on it.
type TrainingSession struct {
	ID          string
	Title       string
	Kind        SessionKind
	ScheduledAt time.Time
	Location    *string
	CreatedAt   time.Time
}
