// Package config provides configuration loading, validation, and defaults.
// Values come from defaults, then config.yaml, then SWEEP_* environment
// variables, and are validated before use.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the application configuration for all components: logging,
// the Discord connection, cleanup policy, announcement replies, scheduled
// tasks, storage, and the status web server.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	Announce  AnnounceConfig  `mapstructure:"announce"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Web       WebConfig       `mapstructure:"web"`
}

// LoggerConfig controls log level and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DiscordConfig holds the bot credential and the single target channel.
type DiscordConfig struct {
	Token     string `mapstructure:"token"      validate:"required"`
	ChannelID string `mapstructure:"channel_id" validate:"required"`

	PresenceIdle string `mapstructure:"presence_idle"`
	PresenceBusy string `mapstructure:"presence_busy"`
}

// CleanupConfig is the retention policy applied on every cleanup run.
type CleanupConfig struct {
	DeleteAfterDays  int  `mapstructure:"delete_after_days"   validate:"min=0"`
	HardAgeLimitDays int  `mapstructure:"hard_age_limit_days" validate:"min=0"`
	BulkAgeLimitDays int  `mapstructure:"bulk_age_limit_days" validate:"min=0"`
	BulkDelete       bool `mapstructure:"bulk_delete"`
	DryRun           bool `mapstructure:"dry_run"`
}

// AnnounceConfig controls the pinned announcement scheduler and its
// user-facing reply texts.
type AnnounceConfig struct {
	Enabled bool `mapstructure:"enabled"`

	MsgUsage     string `mapstructure:"msg_usage"`
	MsgPast      string `mapstructure:"msg_past"`
	MsgNotNewer  string `mapstructure:"msg_not_newer"`
	MsgIdentical string `mapstructure:"msg_identical"`
	MsgApplied   string `mapstructure:"msg_applied"`
	MsgError     string `mapstructure:"msg_error"`
}

// TaskConfig configures one scheduled task.
type TaskConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Schedule is a cron expression; the cleanup default fires daily at 03:00.
	Schedule string `mapstructure:"schedule"`
	// RunOnStart triggers the task once at process startup, before its
	// first scheduled firing.
	RunOnStart bool `mapstructure:"run_on_start"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// DatabaseConfig locates the SQLite run-history database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// WebConfig controls the read-only status/history server.
type WebConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	ListenAddr     string   `mapstructure:"listen_addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoadConfig reads configuration from the given YAML file (optional), layered
// over defaults and under SWEEP_* environment variables, then validates it.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("SWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only walks keys viper has already seen (defaults or file).
	// The required credentials carry no defaults, so bind them explicitly or
	// env-only deployments would fail validation.
	v.MustBindEnv("discord.token")
	v.MustBindEnv("discord.channel_id")

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		slog.Info("Configuration file not found, using defaults and environment", "path", path)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)

	v.SetDefault("discord.presence_idle", "待機中 ⏳")
	v.SetDefault("discord.presence_busy", "掃除中 🧹")

	v.SetDefault("cleanup.delete_after_days", 7)
	v.SetDefault("cleanup.hard_age_limit_days", 14)
	v.SetDefault("cleanup.bulk_age_limit_days", 0)
	v.SetDefault("cleanup.bulk_delete", false)
	v.SetDefault("cleanup.dry_run", true)

	v.SetDefault("announce.enabled", true)
	v.SetDefault("announce.msg_usage", "Usage: !reset YYYY-MM-DD HH:MM (UTC)")
	v.SetDefault("announce.msg_past", "That time is already in the past.")
	v.SetDefault("announce.msg_not_newer", "A later reset is already scheduled; keeping it.")
	v.SetDefault("announce.msg_identical", "That reset is already pinned.")
	v.SetDefault("announce.msg_applied", "Next reset scheduled for %s UTC.")
	v.SetDefault("announce.msg_error", "Could not update the schedule. Please try again later.")

	v.SetDefault("scheduler.tasks", map[string]TaskConfig{
		"cleanup": {
			Enabled:    true,
			Schedule:   "0 3 * * *",
			RunOnStart: true,
		},
		"sql_maintenance": {
			Enabled:  true,
			Schedule: "0 4 * * 0",
		},
	})

	v.SetDefault("database.path", "sweepbot-history.db")

	v.SetDefault("web.enabled", true)
	v.SetDefault("web.listen_addr", ":8080")
	v.SetDefault("web.allowed_origins", []string{"http://localhost:3000"})
}
