// Package main contains the entrypoint for the sweepbot channel janitor.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sweepbot/internal/announce"
	"sweepbot/internal/bot"
	"sweepbot/internal/bot/tasks"
	"sweepbot/internal/cleanup"
	"sweepbot/internal/config"
	"sweepbot/internal/database"
	"sweepbot/internal/discord"
	"sweepbot/internal/logger"
	"sweepbot/internal/metrics"
	"sweepbot/internal/web"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger, db,
// discord client, engine, scheduler, web server), handles graceful shutdown,
// and returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	// Optional .env for local development; real deployments set SWEEP_* directly.
	if err := godotenv.Load(); err == nil {
		slog.Debug("Loaded environment from .env file")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	client, err := discord.NewClient(cfg.Discord.Token, log)
	if err != nil {
		log.Error("Failed to create Discord client", "error", err)
		return 1
	}

	m := metrics.New()

	// One mutex serializes every channel-mutating path: a cleanup run and a
	// pin update must never interleave on the same channel.
	var channelGuard sync.Mutex

	engine := cleanup.NewEngine(client, store, m, log, &channelGuard)

	var announcer *announce.Scheduler
	if cfg.Announce.Enabled {
		announcer = announce.NewScheduler(client, cfg.Discord.ChannelID, announce.Replies{
			Usage:     cfg.Announce.MsgUsage,
			Past:      cfg.Announce.MsgPast,
			NotNewer:  cfg.Announce.MsgNotNewer,
			Identical: cfg.Announce.MsgIdentical,
			Applied:   cfg.Announce.MsgApplied,
			Error:     cfg.Announce.MsgError,
		}, log, &channelGuard)
	}

	taskDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Engine: engine,
		Client: client,
		Config: cfg,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(taskDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	var webServer *web.Server
	if cfg.Web.Enabled {
		webServer = web.NewServer(cfg.Web, store, m, log)
	}

	app := bot.NewBot(log, cfg, client, announcer, sched, webServer)

	log.Info("Starting sweepbot...",
		"channel_id", cfg.Discord.ChannelID,
		"delete_after_days", cfg.Cleanup.DeleteAfterDays,
		"dry_run", cfg.Cleanup.DryRun)
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
