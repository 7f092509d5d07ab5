package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"sweepbot/internal/bot/tasks"
	"sweepbot/internal/config"
)

// Scheduler manages scheduled tasks using the gocron library. Tasks marked
// run_on_start fire once at startup; the once-only guard is explicit
// process-lifecycle state on this instance, so a reconnect or a second Start
// call never re-runs the startup batch.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	mu        sync.Mutex
	running   bool

	startupRan bool
}

// NewScheduler creates a new scheduler instance using gocron.
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "scheduler")

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    log,
		cfg:       cfg,
		taskMap:   taskMap,
	}, nil
}

// Start schedules all enabled tasks, fires the run-on-start batch once, and
// starts the scheduler's internal ticking. Task errors are logged here and
// never propagate to the trigger: the next scheduled firing always stands.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	if s.cfg == nil || len(s.cfg.Tasks) == 0 {
		s.logger.Warn("No scheduler tasks configured.")
		s.scheduler.Start()
		s.running = true
		return nil
	}

	scheduledCount := 0
	for taskName, taskConfig := range s.cfg.Tasks {
		if !taskConfig.Enabled {
			s.logger.Info("Skipping disabled task", "task_name", taskName)
			continue
		}

		taskFunc, exists := s.taskMap[taskName]
		if !exists {
			s.logger.Warn("Scheduled task configured but not found in registry, skipping", "task_name", taskName)
			continue
		}

		if taskConfig.Schedule == "" {
			s.logger.Warn("Scheduled task enabled but has empty schedule, skipping", "task_name", taskName)
			continue
		}

		_, err := s.scheduler.NewJob(
			gocron.CronJob(taskConfig.Schedule, false),
			gocron.NewTask(s.runTask, context.Background(), taskName, taskFunc),
			gocron.WithName(taskName),
			// A run must never overlap itself or a late previous firing.
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			s.logger.Error("Failed to schedule task", "task_name", taskName, "schedule", taskConfig.Schedule, "error", err)
			continue
		}

		s.logger.Info("Scheduled task", "task_name", taskName, "schedule", taskConfig.Schedule)
		scheduledCount++
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler initialized and started", "tasks_scheduled", scheduledCount)

	s.fireStartupTasks()

	return nil
}

// fireStartupTasks runs every enabled run_on_start task once, in the
// background. Caller must hold s.mu.
func (s *Scheduler) fireStartupTasks() {
	if s.startupRan {
		s.logger.Info("Startup tasks already fired, skipping")
		return
	}
	s.startupRan = true

	for taskName, taskConfig := range s.cfg.Tasks {
		if !taskConfig.Enabled || !taskConfig.RunOnStart {
			continue
		}
		taskFunc, exists := s.taskMap[taskName]
		if !exists {
			continue
		}

		s.logger.Info("Firing startup task", "task_name", taskName)
		go s.runTask(context.Background(), taskName, taskFunc)
	}
}

// runTask wraps a task func with logging and timing.
func (s *Scheduler) runTask(ctx context.Context, name string, taskFunc tasks.ScheduledTaskFunc) {
	s.logger.Info("Running scheduled task", "task_name", name)
	startTime := time.Now()

	if taskErr := taskFunc(ctx); taskErr != nil {
		s.logger.Error("Scheduled task failed", "task_name", name, "error", taskErr)
	}

	s.logger.Info("Finished scheduled task", "task_name", name, "duration", time.Since(startTime))
}

// Stop gracefully stops the scheduler, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Info("Scheduler is not running, nothing to stop.")
		return nil
	}

	s.logger.Debug("Stopping scheduler gracefully (waiting for jobs)...")
	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully.")
	}

	s.running = false
	return err
}
