package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store is the history store: an append-only record of cleanup runs.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// AppendReport inserts one cleanup run record. Reports are immutable once
	// appended.
	AppendReport(ctx context.Context, report *CleanupReport) error

	// RecentReports retrieves up to 'limit' reports, most recent first.
	RecentReports(ctx context.Context, limit int) ([]CleanupReport, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AppendReport inserts one cleanup run record.
func (s *sqlxStore) AppendReport(ctx context.Context, report *CleanupReport) error {
	if report == nil {
		return fmt.Errorf("cannot append nil report")
	}
	if report.Timestamp.IsZero() {
		report.Timestamp = time.Now().UTC()
	}

	query := `
        INSERT INTO cleanup_history (timestamp, deleted, skipped_too_old, skipped_pinned, non_target, dry_run)
        VALUES (:timestamp, :deleted, :skipped_too_old, :skipped_pinned, :non_target, :dry_run);
    `

	result, err := s.db.NamedExecContext(ctx, query, report)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error appending cleanup report", "error", err)
		return fmt.Errorf("failed to append cleanup report: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // integer overflow conversion is acceptable here
		report.ID = uint(id)
	} else {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after appending report", "error", err)
	}

	s.logger.DebugContext(ctx, "Cleanup report appended",
		"report_id", report.ID,
		"deleted", report.Deleted,
		"dry_run", report.DryRun)
	return nil
}

// RecentReports retrieves up to 'limit' reports ordered most recent first.
// Rows are append-only, so insertion id and timestamp ordering agree.
func (s *sqlxStore) RecentReports(ctx context.Context, limit int) ([]CleanupReport, error) {
	if limit <= 0 {
		limit = 20
		s.logger.DebugContext(ctx, "No limit provided, using default", "default_limit", limit)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var reports []CleanupReport
	query := `
        SELECT id, timestamp, deleted, skipped_too_old, skipped_pinned, non_target, dry_run
        FROM cleanup_history
        ORDER BY id DESC
        LIMIT ?;
    `

	err := s.db.SelectContext(ctx, &reports, query, limit)

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching reports", "error", err)
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting recent reports", "limit", limit, "error", err)
		return nil, fmt.Errorf("failed to get recent cleanup reports: %w", err)
	}

	s.logger.DebugContext(ctx, "Fetched recent reports", "count", len(reports))
	return reports, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}
