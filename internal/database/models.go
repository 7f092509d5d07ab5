package database

import (
	"time"
)

// CleanupReport is the persisted outcome of one cleanup run. Rows are
// append-only: one per run, never updated or deleted by the bot.
//
// Invariant: Deleted + SkippedTooOld + SkippedPinned + NonTarget equals the
// number of messages observed by the run, and Deleted is zero for dry runs.
type CleanupReport struct {
	ID        uint      `db:"id"`
	Timestamp time.Time `db:"timestamp"`

	Deleted       int `db:"deleted"`
	SkippedTooOld int `db:"skipped_too_old"`
	SkippedPinned int `db:"skipped_pinned"`
	NonTarget     int `db:"non_target"`

	DryRun bool `db:"dry_run"`
}

// Total returns the number of messages the run observed.
func (r *CleanupReport) Total() int {
	return r.Deleted + r.SkippedTooOld + r.SkippedPinned + r.NonTarget
}
