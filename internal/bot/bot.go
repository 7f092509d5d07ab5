// Package bot wires the bot's components together and manages their
// lifecycle: the gateway session, the scheduled-task trigger, and the status
// web server.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"sweepbot/internal/announce"
	"sweepbot/internal/channel"
	"sweepbot/internal/config"
	"sweepbot/internal/discord"
	"sweepbot/internal/web"
)

// Bot represents the application and manages its components' lifecycle.
type Bot struct {
	logger    *slog.Logger
	cfg       *config.Config
	client    *discord.Client
	announcer *announce.Scheduler
	scheduler *Scheduler
	web       *web.Server
}

// NewBot creates a bot instance. The announcer and web server may be nil when
// disabled by configuration.
func NewBot(
	logger *slog.Logger,
	cfg *config.Config,
	client *discord.Client,
	announcer *announce.Scheduler,
	scheduler *Scheduler,
	webServer *web.Server,
) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		cfg:       cfg,
		client:    client,
		announcer: announcer,
		scheduler: scheduler,
		web:       webServer,
	}
}

// Run starts all components and blocks until the context is cancelled or a
// component fails.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	if b.announcer != nil {
		targetChannel := b.cfg.Discord.ChannelID
		b.client.OnMessage(func(msgCtx context.Context, msg channel.Message) {
			if msg.ChannelID != targetChannel {
				return
			}
			b.announcer.HandleMessage(msgCtx, msg)
		})
	}

	if err := b.client.Open(); err != nil {
		return fmt.Errorf("failed to open gateway session: %w", err)
	}
	defer func() {
		if err := b.client.Close(); err != nil {
			b.logger.Error("Error closing gateway session", "error", err)
		}
	}()

	if err := b.client.SetPresence(ctx, b.cfg.Discord.PresenceIdle); err != nil {
		b.logger.Debug("Failed to set initial presence", "error", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	if b.web != nil {
		g.Go(func() error {
			if err := b.web.Run(gCtx); err != nil {
				b.logger.Error("Web server failed", "error", err)
				return fmt.Errorf("web server failed: %w", err)
			}
			return nil
		})
	}

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
