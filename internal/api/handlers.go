package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/nfnt/resize"

	"github.com/jverhagen/fotomemo/internal/importer"
	"github.com/jverhagen/fotomemo/internal/library"
	"github.com/jverhagen/fotomemo/internal/model"
	"github.com/jverhagen/fotomemo/internal/store"
	fmsync "github.com/jverhagen/fotomemo/internal/sync"
)

// ---------------------------------------------------------------------------
// GET /api/library
// ---------------------------------------------------------------------------

type libraryResponse struct {
	FolderName     string                 `json:"folder_name"`
	FolderPath     string                 `json:"folder_path"`
	Categories     []library.CategoryView `json:"categories"`
	ActiveView     string                 `json:"active_view"`
	ActiveCategory string                 `json:"active_category,omitempty"`
	Total          int                    `json:"total"`
}

func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	view, category := s.lib.ActiveView()
	writeJSON(w, http.StatusOK, libraryResponse{
		FolderName:     s.lib.FolderName(),
		FolderPath:     s.lib.FolderPath(),
		Categories:     s.lib.Overview(),
		ActiveView:     view,
		ActiveCategory: category,
		Total:          len(s.lib.Items()),
	})
}

// ---------------------------------------------------------------------------
// POST /api/folder
// ---------------------------------------------------------------------------

type folderRequest struct {
	Path string `json:"path"`
}

type importResponse struct {
	FolderName string `json:"folder_name"`
	Scanned    int    `json:"scanned"`
	Added      int    `json:"added"`
	Total      int    `json:"total"`
}

func (s *Server) handleSelectFolder(w http.ResponseWriter, r *http.Request) {
	var req folderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	name := filepath.Base(req.Path)
	if err := s.lib.SetFolder(r.Context(), req.Path, name); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record folder")
		return
	}
	s.importFolder(w, r, req.Path)
}

// ---------------------------------------------------------------------------
// POST /api/folder/rescan
// ---------------------------------------------------------------------------

func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	path := s.lib.FolderPath()
	if path == "" {
		writeError(w, http.StatusConflict, "no folder selected")
		return
	}
	s.importFolder(w, r, path)
}

// importFolder scans a directory and merges its images into the library.
// Existing items keep their category, name and notes.
func (s *Server) importFolder(w http.ResponseWriter, r *http.Request, path string) {
	sources, err := importer.ReadFolder(path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read folder: "+path)
		return
	}
	files := importer.Process(sources)

	added, err := s.lib.Import(r.Context(), files)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to import files")
		return
	}
	writeJSON(w, http.StatusOK, importResponse{
		FolderName: s.lib.FolderName(),
		Scanned:    len(files),
		Added:      added,
		Total:      len(s.lib.Items()),
	})
}

// ---------------------------------------------------------------------------
// GET /api/items
// ---------------------------------------------------------------------------

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	var items []model.Item
	if category := r.URL.Query().Get("category"); category != "" {
		items = s.lib.ItemsIn(category)
	} else {
		items = s.lib.Items()
	}
	if items == nil {
		items = []model.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// ---------------------------------------------------------------------------
// PATCH /api/items/{id}
// ---------------------------------------------------------------------------

type updateItemRequest struct {
	CustomName string `json:"custom_name"`
	Category   string `json:"category"`
	Notes      string `json:"notes"`
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := s.lib.UpdateItem(r.Context(), id, req.CustomName, req.Category, req.Notes)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update item")
		return
	}

	item, _ := s.lib.Item(id)
	writeJSON(w, http.StatusOK, item)
}

// ---------------------------------------------------------------------------
// POST /api/items/move
// ---------------------------------------------------------------------------

type moveRequest struct {
	IDs      []string `json:"ids"`
	Category string   `json:"category"`
}

func (s *Server) handleMoveItems(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids are required")
		return
	}

	if err := s.lib.MoveItems(r.Context(), req.IDs, req.Category); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to move items")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"moved": len(req.IDs)})
}

// ---------------------------------------------------------------------------
// POST /api/items/delete + /api/items/delete/confirm
//
// Deleting is destructive (bytes included), so it is a two-step flow: the
// first call returns a short-lived token, the second call spends it.
// ---------------------------------------------------------------------------

type deleteRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleRequestDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids are required")
		return
	}

	token := uuid.New().String()
	s.mu.Lock()
	now := time.Now()
	for t, p := range s.pending {
		if now.After(p.expires) {
			delete(s.pending, t)
		}
	}
	s.pending[token] = pendingDelete{ids: req.IDs, expires: now.Add(pendingDeleteTTL)}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"count": len(req.IDs),
	})
}

type confirmRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.mu.Lock()
	p, ok := s.pending[req.Token]
	delete(s.pending, req.Token)
	s.mu.Unlock()

	if !ok || time.Now().After(p.expires) {
		writeError(w, http.StatusGone, "unknown or expired delete token")
		return
	}

	deleted, err := s.lib.DeleteItems(r.Context(), p.ids)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete items")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// ---------------------------------------------------------------------------
// GET /api/items/{id}/preview
// ---------------------------------------------------------------------------

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	buf, mimeType, err := s.files.LoadBlob(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load image")
		return
	}

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(buf)
}

// ---------------------------------------------------------------------------
// GET /api/items/{id}/thumbnail
// ---------------------------------------------------------------------------

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	buf, mimeType, err := s.files.LoadBlob(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load image")
		return
	}

	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		// Formats the decoder does not know are served as-is.
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", mimeType)
		w.WriteHeader(http.StatusOK)
		w.Write(buf)
		return
	}

	thumb := resize.Thumbnail(uint(s.thumbWidth), uint(s.thumbWidth), img, resize.Lanczos3)
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "max-age=3600")
	w.WriteHeader(http.StatusOK)
	jpeg.Encode(w, thumb, &jpeg.Options{Quality: 85})
}

// ---------------------------------------------------------------------------
// GET + PUT /api/view
// ---------------------------------------------------------------------------

type viewState struct {
	View     string `json:"view"`
	Category string `json:"category,omitempty"`
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	view, category := s.lib.ActiveView()
	writeJSON(w, http.StatusOK, viewState{View: view, Category: category})
}

func (s *Server) handleSetView(w http.ResponseWriter, r *http.Request) {
	var req viewState
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.lib.SetActiveView(req.View, req.Category)
	view, category := s.lib.ActiveView()
	writeJSON(w, http.StatusOK, viewState{View: view, Category: category})
}

// ---------------------------------------------------------------------------
// Categories
// ---------------------------------------------------------------------------

type categoryRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.lib.Overview())
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.lib.CreateCategory(r.Context(), req.Name); err != nil {
		writeCategoryError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

func (s *Server) handleRenameCategory(w http.ResponseWriter, r *http.Request) {
	oldName := r.PathValue("name")

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.lib.RenameCategory(r.Context(), oldName, req.Name); err != nil {
		writeCategoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": req.Name})
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if err := s.lib.DeleteCategory(r.Context(), name); err != nil {
		writeCategoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

// writeCategoryError maps category rule violations onto HTTP statuses.
func writeCategoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrEmptyCategory):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrReservedCategory):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrCategoryExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrUnknownCategory):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "category operation failed")
	}
}

// ---------------------------------------------------------------------------
// Sync
// ---------------------------------------------------------------------------

type signInRequest struct {
	AccessToken string `json:"access_token"`
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AccessToken == "" {
		writeError(w, http.StatusBadRequest, "access_token is required")
		return
	}

	if err := s.mirror.SignIn(r.Context(), req.AccessToken); err != nil {
		writeError(w, http.StatusInternalServerError, "sign-in failed")
		return
	}
	writeJSON(w, http.StatusOK, s.mirror.Status(r.Context()))
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.mirror.SignOut()
	writeJSON(w, http.StatusOK, s.mirror.Status(r.Context()))
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mirror.Status(r.Context()))
}

func (s *Server) handleSyncFlush(w http.ResponseWriter, r *http.Request) {
	err := s.mirror.Flush(r.Context())
	if errors.Is(err, fmsync.ErrNotSignedIn) {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, "push failed")
		return
	}
	writeJSON(w, http.StatusOK, s.mirror.Status(r.Context()))
}
