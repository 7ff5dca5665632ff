// Package server exposes the operator HTTP API: read access to the local
// collections, sync controls, blob cache stats, and backup management.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/lifedb/lifedb/internal/backup"
	"github.com/lifedb/lifedb/internal/blob"
	"github.com/lifedb/lifedb/internal/rehydrate"
	"github.com/lifedb/lifedb/internal/snapshot"
	"github.com/lifedb/lifedb/internal/syncsvc"
)

// Server holds the handler dependencies.
type Server struct {
	snap    *snapshot.Store
	blobs   *blob.Store
	engine  *syncsvc.Engine
	rehyd   *rehydrate.Rehydrator
	backups *backup.Manager
	version string
}

// New creates the server.
func New(snap *snapshot.Store, blobs *blob.Store, engine *syncsvc.Engine, backups *backup.Manager, version string) *Server {
	return &Server{
		snap:    snap,
		blobs:   blobs,
		engine:  engine,
		rehyd:   rehydrate.New(blobs),
		backups: backups,
		version: version,
	}
}

// Router returns the configured HTTP handler.
func (s *Server) Router() http.Handler {
	mux := &http.ServeMux{}
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/items", s.handleListItems)
	mux.HandleFunc("POST /api/items", s.handleCreateItem)
	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("GET /api/sync/status", s.handleSyncStatus)
	mux.HandleFunc("POST /api/sync", s.handleManualSync)
	mux.HandleFunc("POST /api/sync/force", s.handleForceResync)
	mux.HandleFunc("POST /api/sync/upload-all", s.handleUploadAll)
	mux.HandleFunc("GET /api/blobs/stats", s.handleBlobStats)
	mux.HandleFunc("POST /api/blobs/sweep", s.handleBlobSweep)
	mux.HandleFunc("GET /api/backups", s.handleListBackups)
	mux.HandleFunc("POST /api/backups", s.handleCreateBackup)
	mux.HandleFunc("POST /api/backups/{name}/restore", s.handleRestoreBackup)
	return logRequests(mux)
}

// logRequests logs every request with its duration and status.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		slog.InfoContext(r.Context(), "HTTP request",
			"method", r.Method, "path", r.URL.Path,
			"status", sw.status, "took", time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
