package bot

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"sweepbot/internal/bot/tasks"
	"sweepbot/internal/config"
)

func waitForCount(t *testing.T, counter *atomic.Int32, want int32) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		if counter.Load() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("task fired %d times, want %d", counter.Load(), want)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSchedulerStartupTaskFiresOnce(t *testing.T) {
	t.Parallel()

	var fired atomic.Int32
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"cleanup": func(ctx context.Context) error {
			fired.Add(1)
			return nil
		},
	}
	cfg := &config.SchedulerConfig{
		Tasks: map[string]config.TaskConfig{
			"cleanup": {Enabled: true, Schedule: "0 3 * * *", RunOnStart: true},
		},
	}

	s, err := NewScheduler(nil, cfg, taskMap)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() {
		if err := s.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	}()

	waitForCount(t, &fired, 1)

	// The startup batch is once-per-process: a second firing attempt is a no-op.
	s.mu.Lock()
	s.fireStartupTasks()
	s.mu.Unlock()

	time.Sleep(50 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("startup task fired %d times, want exactly 1", got)
	}
}

func TestSchedulerStartTwiceFails(t *testing.T) {
	t.Parallel()

	s, err := NewScheduler(nil, &config.SchedulerConfig{}, nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop() //nolint:errcheck

	if err := s.Start(); err == nil {
		t.Error("second Start() error = nil, want already-running error")
	}
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	t.Parallel()

	s, err := NewScheduler(nil, &config.SchedulerConfig{}, nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() before Start() error = %v, want nil", err)
	}
}

func TestSchedulerSkipsDisabledAndUnknownTasks(t *testing.T) {
	t.Parallel()

	var fired atomic.Int32
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"registered_but_disabled": func(ctx context.Context) error {
			fired.Add(1)
			return nil
		},
	}
	cfg := &config.SchedulerConfig{
		Tasks: map[string]config.TaskConfig{
			"registered_but_disabled": {Enabled: false, Schedule: "* * * * *", RunOnStart: true},
			"never_registered":        {Enabled: true, Schedule: "* * * * *", RunOnStart: true},
			"no_schedule":             {Enabled: true, Schedule: "", RunOnStart: false},
		},
	}

	s, err := NewScheduler(nil, cfg, taskMap)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop() //nolint:errcheck

	time.Sleep(50 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("disabled task fired %d times, want 0", got)
	}
}

func TestSchedulerTaskErrorDoesNotPropagate(t *testing.T) {
	t.Parallel()

	var fired atomic.Int32
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"flaky": func(ctx context.Context) error {
			fired.Add(1)
			return context.DeadlineExceeded
		},
	}
	cfg := &config.SchedulerConfig{
		Tasks: map[string]config.TaskConfig{
			"flaky": {Enabled: true, Schedule: "0 3 * * *", RunOnStart: true},
		},
	}

	s, err := NewScheduler(nil, cfg, taskMap)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v (task errors must stay inside the runner)", err)
	}
	defer s.Stop() //nolint:errcheck

	waitForCount(t, &fired, 1)
}
