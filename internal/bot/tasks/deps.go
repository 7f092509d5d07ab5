// Package tasks implements the scheduled tasks fired by the bot's trigger:
// the daily cleanup run and periodic database maintenance.
package tasks

import (
	"log/slog"

	"sweepbot/internal/channel"
	"sweepbot/internal/cleanup"
	"sweepbot/internal/config"
	"sweepbot/internal/database"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Engine *cleanup.Engine
	Client channel.Client
	Config *config.Config
}
