// Package cleanup implements the retention policy and the engine that applies
// it to a channel's message history.
package cleanup

import (
	"time"

	"sweepbot/internal/channel"
)

// Disposition is the single classification assigned to each message during a
// cleanup run.
type Disposition int

const (
	// DispositionDelete marks a message eligible for deletion in this run.
	DispositionDelete Disposition = iota
	// DispositionSkipTooOld marks a message past the platform's deletion-age
	// limit for the execution path in use.
	DispositionSkipTooOld
	// DispositionSkipPinned marks a pinned message, which is never deleted.
	DispositionSkipPinned
	// DispositionNonTarget marks a message younger than the retention window.
	DispositionNonTarget
)

// String returns the disposition name used in logs and metrics labels.
func (d Disposition) String() string {
	switch d {
	case DispositionDelete:
		return "delete"
	case DispositionSkipTooOld:
		return "skipped_too_old"
	case DispositionSkipPinned:
		return "skipped_pinned"
	case DispositionNonTarget:
		return "non_target"
	default:
		return "unknown"
	}
}

// HardAgeLimitDays is the platform's individual-deletion age restriction:
// messages older than this cannot be deleted one at a time.
const HardAgeLimitDays = 14

// Policy is the immutable per-run retention configuration.
type Policy struct {
	// DeleteAfterDays is the retention window; messages older than this are
	// eligible for deletion.
	DeleteAfterDays int

	// HardAgeLimitDays caps individual deletion. Zero means the platform
	// default (HardAgeLimitDays constant).
	HardAgeLimitDays int

	// BulkAgeLimitDays caps bulk-delete eligibility when BulkDelete is set.
	// Zero leaves the bulk path uncapped at classification time; the channel
	// client is responsible for whatever the platform's own bulk call rejects.
	BulkAgeLimitDays int

	// BulkDelete selects the batched execution strategy instead of
	// one-at-a-time deletion.
	BulkDelete bool

	// DryRun simulates the run end to end without issuing mutating calls.
	DryRun bool
}

func (p Policy) hardLimit() int {
	if p.HardAgeLimitDays > 0 {
		return p.HardAgeLimitDays
	}
	return HardAgeLimitDays
}

// Classify assigns exactly one disposition to a message. The now argument is
// captured once per run so the threshold does not drift across the traversal.
//
// Precedence: pinned messages are always skipped; messages inside the
// retention window are non-targets; messages past the deletion-age limit for
// the active execution path are skipped; everything else is deleted.
func (p Policy) Classify(m channel.Message, now time.Time) Disposition {
	if m.Pinned {
		return DispositionSkipPinned
	}

	age := now.Sub(m.CreatedAt)
	if age < time.Duration(p.DeleteAfterDays)*24*time.Hour {
		return DispositionNonTarget
	}

	if p.BulkDelete {
		if p.BulkAgeLimitDays > 0 && age > time.Duration(p.BulkAgeLimitDays)*24*time.Hour {
			return DispositionSkipTooOld
		}
	} else if age > time.Duration(p.hardLimit())*24*time.Hour {
		return DispositionSkipTooOld
	}

	return DispositionDelete
}
