package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"sweepbot/internal/channel"
	"sweepbot/internal/database"
	"sweepbot/internal/metrics"
)

// bulkChunkSize is the platform's maximum batch size for bulk deletion.
const bulkChunkSize = 100

// Engine orchestrates a full cleanup run over one channel: traversal,
// classification, deletion, and report persistence.
type Engine struct {
	client  channel.Client
	store   database.Store
	metrics *metrics.Metrics
	logger  *slog.Logger

	// guard serializes all mutating operations against the channel. The
	// announcement scheduler shares it; see NewEngine.
	guard *sync.Mutex
}

// NewEngine creates a cleanup engine. The guard mutex must be the same one
// handed to the announcement scheduler for this channel, so that a cleanup
// run and a pin update never interleave.
func NewEngine(client channel.Client, store database.Store, m *metrics.Metrics, logger *slog.Logger, guard *sync.Mutex) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		client:  client,
		store:   store,
		metrics: m,
		logger:  logger.With("component", "cleanup_engine"),
		guard:   guard,
	}
}

// Run scans the channel's full history, deletes eligible messages per the
// policy, and persists one CleanupReport. Per-message deletion failures are
// logged and never abort the run. An unresolvable channel or a traversal
// error aborts the run with no persisted report; callers get the error and
// retry on the next scheduled trigger.
func (e *Engine) Run(ctx context.Context, channelID string, policy Policy) (*database.CleanupReport, error) {
	if e.guard != nil {
		e.guard.Lock()
		defer e.guard.Unlock()
	}

	startTime := time.Now()

	ch, err := e.client.ResolveChannel(ctx, channelID)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to resolve channel, aborting cleanup run",
			"channel_id", channelID, "error", err)
		e.metrics.RecordRun("aborted", time.Since(startTime))
		return nil, fmt.Errorf("failed to resolve channel %s: %w", channelID, err)
	}

	e.logger.InfoContext(ctx, "Starting cleanup run",
		"channel_id", ch.ID,
		"channel_name", ch.Name,
		"delete_after_days", policy.DeleteAfterDays,
		"bulk_delete", policy.BulkDelete,
		"dry_run", policy.DryRun)

	// One threshold for the whole traversal; the eligibility cutoff must not
	// drift while paging through an arbitrarily long history.
	now := time.Now().UTC()

	var (
		total         int
		deleted       int
		skippedTooOld int
		skippedPinned int
		pendingBulk   []string
	)

	err = e.client.Messages(ctx, ch.ID, func(batch []channel.Message) error {
		for _, m := range batch {
			total++

			switch policy.Classify(m, now) {
			case DispositionSkipPinned:
				skippedPinned++

			case DispositionSkipTooOld:
				skippedTooOld++
				e.logger.WarnContext(ctx, "Skipping message past deletion-age limit",
					"message_id", m.ID, "author", m.Author, "age_days", int(now.Sub(m.CreatedAt).Hours()/24))

			case DispositionNonTarget:
				// Derived at the end; nothing to count here.

			case DispositionDelete:
				if policy.DryRun {
					e.logger.InfoContext(ctx, "DRY-RUN: would delete message",
						"message_id", m.ID, "author", m.Author, "age_days", int(now.Sub(m.CreatedAt).Hours()/24))
					continue
				}
				if policy.BulkDelete {
					pendingBulk = append(pendingBulk, m.ID)
					continue
				}
				if delErr := e.deleteOne(ctx, ch.ID, m); delErr == nil {
					deleted++
				}
			}
		}
		return nil
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "Fatal error during history traversal, no report persisted",
			"channel_id", ch.ID, "error", err)
		e.metrics.RecordRun("aborted", time.Since(startTime))
		return nil, fmt.Errorf("history traversal failed for channel %s: %w", ch.ID, err)
	}

	deleted += e.flushBulk(ctx, ch.ID, pendingBulk)

	// non_target is derived rather than accumulated so the partition invariant
	// holds even when deletions fail mid-run.
	nonTarget := total - deleted - skippedTooOld - skippedPinned

	report := &database.CleanupReport{
		Timestamp:     time.Now().UTC(),
		Deleted:       deleted,
		SkippedTooOld: skippedTooOld,
		SkippedPinned: skippedPinned,
		NonTarget:     nonTarget,
		DryRun:        policy.DryRun,
	}

	if e.store != nil {
		if appendErr := e.store.AppendReport(ctx, report); appendErr != nil {
			// Persistence failure never fails the run; the summary line below
			// keeps operators informed even with a broken store.
			e.logger.ErrorContext(ctx, "Failed to persist cleanup report", "error", appendErr)
		}
	}

	duration := time.Since(startTime)
	e.logger.InfoContext(ctx, "Cleanup summary",
		"channel_id", ch.ID,
		"deleted", deleted,
		"skipped_too_old", skippedTooOld,
		"skipped_pinned", skippedPinned,
		"non_target", nonTarget,
		"total", total,
		"dry_run", policy.DryRun,
		"duration", duration)

	e.metrics.RecordRun("completed", duration)
	e.metrics.RecordMessages(DispositionDelete.String(), deleted)
	e.metrics.RecordMessages(DispositionSkipTooOld.String(), skippedTooOld)
	e.metrics.RecordMessages(DispositionSkipPinned.String(), skippedPinned)
	e.metrics.RecordMessages(DispositionNonTarget.String(), nonTarget)

	return report, nil
}

// deleteOne removes a single message, swallowing per-item failures. Deleting
// a message that no longer exists is a no-op, not an error.
func (e *Engine) deleteOne(ctx context.Context, channelID string, m channel.Message) error {
	err := e.client.Delete(ctx, channelID, m.ID)
	if err == nil {
		e.logger.DebugContext(ctx, "Deleted message", "message_id", m.ID, "author", m.Author)
		return nil
	}
	if errors.Is(err, channel.ErrNotFound) {
		e.logger.DebugContext(ctx, "Message already gone, skipping", "message_id", m.ID)
		return err
	}
	e.logger.ErrorContext(ctx, "Failed to delete message",
		"message_id", m.ID, "author", m.Author, "error", err)
	return err
}

// flushBulk issues bulk deletions in platform-sized chunks and returns the
// number of messages deleted. A failed chunk contributes zero to the count
// and is logged; remaining chunks are still attempted.
func (e *Engine) flushBulk(ctx context.Context, channelID string, ids []string) int {
	deleted := 0
	for start := 0; start < len(ids); start += bulkChunkSize {
		end := min(start+bulkChunkSize, len(ids))
		chunk := ids[start:end]

		if err := e.client.BulkDelete(ctx, channelID, chunk); err != nil {
			e.logger.ErrorContext(ctx, "Bulk delete failed for chunk",
				"chunk_size", len(chunk), "error", err)
			continue
		}
		deleted += len(chunk)
		e.logger.DebugContext(ctx, "Bulk deleted chunk", "chunk_size", len(chunk))
	}
	return deleted
}
