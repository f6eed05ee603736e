// Package api exposes the photo library over HTTP. All reads serve from
// the in-memory library; mutations go through it so every change is
// persisted and the cloud mirror is notified.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/jverhagen/fotomemo/internal/library"
	"github.com/jverhagen/fotomemo/internal/store"
	fmsync "github.com/jverhagen/fotomemo/internal/sync"
)

// maxRequestBody is the maximum allowed request body size (1 MB). Image
// bytes never travel through request bodies; imports read from disk.
const maxRequestBody int64 = 1 << 20

// pendingDeleteTTL is how long a delete confirmation token stays valid.
const pendingDeleteTTL = 5 * time.Minute

type pendingDelete struct {
	ids     []string
	expires time.Time
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	lib        *library.Library
	files      store.FileStore
	mirror     *fmsync.Mirror
	corsOrigin string
	thumbWidth int
	mux        *http.ServeMux

	mu      sync.Mutex
	pending map[string]pendingDelete
}

// Options configures the API server.
type Options struct {
	CORSOrigin     string
	ThumbnailWidth int
}

// New creates a new API server.
func New(lib *library.Library, files store.FileStore, mirror *fmsync.Mirror, opts Options) *Server {
	if opts.CORSOrigin == "" {
		opts.CORSOrigin = "*"
	}
	if opts.ThumbnailWidth <= 0 {
		opts.ThumbnailWidth = 320
	}
	srv := &Server{
		lib:        lib,
		files:      files,
		mirror:     mirror,
		corsOrigin: opts.CORSOrigin,
		thumbWidth: opts.ThumbnailWidth,
		mux:        http.NewServeMux(),
		pending:    make(map[string]pendingDelete),
	}
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(limitBody(jsonContent(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/library", s.handleLibrary)
	s.mux.HandleFunc("POST /api/folder", s.handleSelectFolder)
	s.mux.HandleFunc("POST /api/folder/rescan", s.handleRescan)

	s.mux.HandleFunc("GET /api/items", s.handleListItems)
	s.mux.HandleFunc("PATCH /api/items/{id}", s.handleUpdateItem)
	s.mux.HandleFunc("POST /api/items/move", s.handleMoveItems)
	s.mux.HandleFunc("POST /api/items/delete", s.handleRequestDelete)
	s.mux.HandleFunc("POST /api/items/delete/confirm", s.handleConfirmDelete)
	s.mux.HandleFunc("GET /api/items/{id}/preview", s.handlePreview)
	s.mux.HandleFunc("GET /api/items/{id}/thumbnail", s.handleThumbnail)

	s.mux.HandleFunc("GET /api/view", s.handleGetView)
	s.mux.HandleFunc("PUT /api/view", s.handleSetView)

	s.mux.HandleFunc("GET /api/categories", s.handleListCategories)
	s.mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	s.mux.HandleFunc("PATCH /api/categories/{name}", s.handleRenameCategory)
	s.mux.HandleFunc("DELETE /api/categories/{name}", s.handleDeleteCategory)

	s.mux.HandleFunc("POST /api/sync/signin", s.handleSignIn)
	s.mux.HandleFunc("POST /api/sync/signout", s.handleSignOut)
	s.mux.HandleFunc("GET /api/sync/status", s.handleSyncStatus)
	s.mux.HandleFunc("POST /api/sync/flush", s.handleSyncFlush)
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody restricts the request body to maxRequestBody bytes.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}

func jsonContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
