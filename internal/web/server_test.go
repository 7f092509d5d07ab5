package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sweepbot/internal/config"
	"sweepbot/internal/database"
	"sweepbot/internal/web"
)

type stubStore struct {
	reports []database.CleanupReport
	err     error
}

func (s *stubStore) Ping(ctx context.Context) error { return nil }

func (s *stubStore) AppendReport(ctx context.Context, report *database.CleanupReport) error {
	return nil
}

func (s *stubStore) RecentReports(ctx context.Context, limit int) ([]database.CleanupReport, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.reports) {
		return s.reports[:limit], nil
	}
	return s.reports, nil
}

func (s *stubStore) RunSQLMaintenance(ctx context.Context) error { return nil }

func newTestServer(store database.Store) *web.Server {
	return web.NewServer(config.WebConfig{
		Enabled:    true,
		ListenAddr: ":0",
	}, store, nil, nil)
}

func sampleReports() []database.CleanupReport {
	base := time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)
	return []database.CleanupReport{
		{ID: 2, Timestamp: base, Deleted: 4, SkippedTooOld: 1, SkippedPinned: 2, NonTarget: 9, DryRun: false},
		{ID: 1, Timestamp: base.Add(-24 * time.Hour), Deleted: 0, NonTarget: 12, DryRun: true},
	}
}

func TestHandleStatus(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubStore{reports: sampleReports()})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /status status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "2025-06-02 03:00:00") {
		t.Errorf("status page missing last-run timestamp:\n%s", body)
	}
	if !strings.Contains(body, "Deleted:</strong> 4") {
		t.Errorf("status page missing deleted count:\n%s", body)
	}
}

func TestHandleStatusNoRuns(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubStore{})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /status status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No cleanup runs recorded yet") {
		t.Errorf("status page should state that no runs are recorded:\n%s", rec.Body.String())
	}
}

func TestHandleHistory(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubStore{reports: sampleReports()})

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /history status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "2025-06-02 03:00:00") || !strings.Contains(body, "2025-06-01 03:00:00") {
		t.Errorf("history page missing run rows:\n%s", body)
	}
}

func TestHandleAPIHistory(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubStore{reports: sampleReports()})

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/history status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var out []struct {
		Timestamp     time.Time `json:"timestamp"`
		Deleted       int       `json:"deleted"`
		SkippedTooOld int       `json:"skipped_too_old"`
		SkippedPinned int       `json:"skipped_pinned"`
		NonTarget     int       `json:"non_target"`
		DryRun        bool      `json:"dry_run"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode /api/history response: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("API returned %d reports, want 2", len(out))
	}
	if out[0].Deleted != 4 || out[0].SkippedPinned != 2 {
		t.Errorf("API latest report = %+v, want deleted=4 skipped_pinned=2", out[0])
	}
	if !out[1].DryRun {
		t.Errorf("API oldest report = %+v, want dry_run=true", out[1])
	}
}

func TestHandlersReportStoreFailure(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubStore{err: errors.New("database locked")})

	for _, path := range []string{"/status", "/history", "/api/history"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("GET %s status = %d, want 500", path, rec.Code)
		}
	}
}

func TestMutatingMethodsRejected(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubStore{})

	req := httptest.NewRequest(http.MethodPost, "/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /status status = %d, want 405", rec.Code)
	}
}
