package tasks

import (
	"context"
	"fmt"

	"sweepbot/internal/cleanup"
)

// newCleanupTask creates the scheduled task that runs the retention cleanup
// engine against the configured channel. Presence updates around the run are
// cosmetic and best-effort.
func newCleanupTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "cleanup")

	policy := cleanup.Policy{
		DeleteAfterDays:  deps.Config.Cleanup.DeleteAfterDays,
		HardAgeLimitDays: deps.Config.Cleanup.HardAgeLimitDays,
		BulkAgeLimitDays: deps.Config.Cleanup.BulkAgeLimitDays,
		BulkDelete:       deps.Config.Cleanup.BulkDelete,
		DryRun:           deps.Config.Cleanup.DryRun,
	}
	channelID := deps.Config.Discord.ChannelID

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting scheduled cleanup run", "dry_run", policy.DryRun)

		if err := deps.Client.SetPresence(ctx, deps.Config.Discord.PresenceBusy); err != nil {
			log.DebugContext(ctx, "Failed to set busy presence", "error", err)
		}
		defer func() {
			if err := deps.Client.SetPresence(ctx, deps.Config.Discord.PresenceIdle); err != nil {
				log.DebugContext(ctx, "Failed to set idle presence", "error", err)
			}
		}()

		report, err := deps.Engine.Run(ctx, channelID, policy)
		if err != nil {
			return fmt.Errorf("cleanup run failed: %w", err)
		}

		log.InfoContext(ctx, "Scheduled cleanup run completed",
			"deleted", report.Deleted,
			"total", report.Total(),
			"dry_run", report.DryRun)
		return nil
	}
}
