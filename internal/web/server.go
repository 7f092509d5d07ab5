// Package web serves the read-only status and history pages. It is a pure
// consumer of the history store: bot state is never reconstructed from logs.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"sweepbot/internal/config"
	"sweepbot/internal/database"
	"sweepbot/internal/metrics"
)

const historyPageLimit = 20

var statusTmpl = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>sweepbot status</title>
    <meta http-equiv="refresh" content="10">
    <style>body{font-family:sans-serif;line-height:1.6;margin:2em;}</style>
</head>
<body>
    <h2>🧹 sweepbot status</h2>
    {{if .HasRun}}
    <ul>
        <li><strong>Last run (UTC):</strong> {{.Timestamp}}</li>
        <li><strong>Deleted:</strong> {{.Deleted}}</li>
        <li><strong>Skipped (too old):</strong> {{.SkippedTooOld}}</li>
        <li><strong>Skipped (pinned):</strong> {{.SkippedPinned}}</li>
        <li><strong>Non-target:</strong> {{.NonTarget}}</li>
        <li><strong>Dry run:</strong> {{.DryRun}}</li>
    </ul>
    {{else}}
    <p>No cleanup runs recorded yet.</p>
    {{end}}
    <p><a href="/history">📈 History</a></p>
</body>
</html>
`))

var historyTmpl = template.Must(template.New("history").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>sweepbot history</title>
    <style>
        body {font-family:sans-serif;margin:2em;}
        table {border-collapse:collapse;width:100%;}
        th, td {padding:0.6em;border:1px solid #ccc;text-align:center;}
        th {background:#f2f2f2;}
    </style>
</head>
<body>
    <h2>📊 Cleanup history</h2>
    <table>
        <tr><th>Run (UTC)</th><th>Deleted</th><th>Too old</th><th>Pinned</th><th>Non-target</th><th>Dry run</th></tr>
        {{range .}}
        <tr>
            <td>{{.Timestamp.Format "2006-01-02 15:04:05"}}</td>
            <td>{{.Deleted}}</td>
            <td>{{.SkippedTooOld}}</td>
            <td>{{.SkippedPinned}}</td>
            <td>{{.NonTarget}}</td>
            <td>{{.DryRun}}</td>
        </tr>
        {{end}}
    </table>
    <p><a href="/status">⬅ Status</a></p>
</body>
</html>
`))

// Server is the read-only HTTP server for run history and metrics.
type Server struct {
	httpServer *http.Server
	store      database.Store
	logger     *slog.Logger
}

// NewServer builds the router and returns an unstarted server.
func NewServer(cfg config.WebConfig, store database.Store, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{
		store:  store,
		logger: logger.With("component", "web"),
	}

	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/history", s.handleAPIHistory).Methods(http.MethodGet)
	if m != nil {
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet},
	})

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      c.Handler(r),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting web server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Web server shutdown failed", "error", err)
			return err
		}
		s.logger.Info("Web server stopped gracefully.")
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler exposes the configured handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	reports, err := s.store.RecentReports(r.Context(), 1)
	if err != nil {
		s.logger.Error("Failed to load latest report", "error", err)
		http.Error(w, "failed to load status", http.StatusInternalServerError)
		return
	}

	data := struct {
		HasRun        bool
		Timestamp     string
		Deleted       int
		SkippedTooOld int
		SkippedPinned int
		NonTarget     int
		DryRun        bool
	}{}
	if len(reports) > 0 {
		rep := reports[0]
		data.HasRun = true
		data.Timestamp = rep.Timestamp.UTC().Format("2006-01-02 15:04:05")
		data.Deleted = rep.Deleted
		data.SkippedTooOld = rep.SkippedTooOld
		data.SkippedPinned = rep.SkippedPinned
		data.NonTarget = rep.NonTarget
		data.DryRun = rep.DryRun
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusTmpl.Execute(w, data); err != nil {
		s.logger.Error("Failed to render status page", "error", err)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	reports, err := s.store.RecentReports(r.Context(), historyPageLimit)
	if err != nil {
		s.logger.Error("Failed to load history", "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := historyTmpl.Execute(w, reports); err != nil {
		s.logger.Error("Failed to render history page", "error", err)
	}
}

func (s *Server) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	reports, err := s.store.RecentReports(r.Context(), historyPageLimit)
	if err != nil {
		s.logger.Error("Failed to load history", "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}

	type reportJSON struct {
		Timestamp     time.Time `json:"timestamp"`
		Deleted       int       `json:"deleted"`
		SkippedTooOld int       `json:"skipped_too_old"`
		SkippedPinned int       `json:"skipped_pinned"`
		NonTarget     int       `json:"non_target"`
		DryRun        bool      `json:"dry_run"`
	}
	out := make([]reportJSON, 0, len(reports))
	for _, rep := range reports {
		out = append(out, reportJSON{
			Timestamp:     rep.Timestamp.UTC(),
			Deleted:       rep.Deleted,
			SkippedTooOld: rep.SkippedTooOld,
			SkippedPinned: rep.SkippedPinned,
			NonTarget:     rep.NonTarget,
			DryRun:        rep.DryRun,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Error("Failed to encode history JSON", "error", err)
	}
}
