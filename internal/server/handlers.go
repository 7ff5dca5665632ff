package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/lifedb/lifedb/internal/models"
)

// successResponse wraps a successful API response.
type successResponse struct {
	Data any `json:"data"`
}

// errorResponse wraps an error API response.
type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already out, log only.
		slog.Debug("Failed to encode response", "err", err)
	}
}

func respondSuccess(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, successResponse{Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

// handleListItems returns the local item collection with blob-backed
// attachments rehydrated.
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.snap.Items()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondSuccess(w, http.StatusOK, s.rehyd.Run(items))
}

// handleCreateItem stores a new item. The id and timestamps are always
// server-minted; anything the client sends for them is discarded.
func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var item models.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		respondError(w, http.StatusBadRequest, "invalid item payload")
		return
	}
	if item.Title == "" {
		respondError(w, http.StatusBadRequest, "title is required")
		return
	}
	if item.Type == "" {
		respondError(w, http.StatusBadRequest, "type is required")
		return
	}
	created, err := s.snap.CreateItem(item)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondSuccess(w, http.StatusCreated, created)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var cat models.Category
	if err := json.NewDecoder(r.Body).Decode(&cat); err != nil {
		respondError(w, http.StatusBadRequest, "invalid category payload")
		return
	}
	if cat.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	created, err := s.snap.CreateCategory(cat)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondSuccess(w, http.StatusCreated, created)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.snap.Categories()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondSuccess(w, http.StatusOK, cats)
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, s.engine.Status())
}

// handleManualSync triggers a sync cycle. If one is already running the
// request is accepted and dropped; the caller polls status for the outcome.
func (s *Server) handleManualSync(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ManualSync(r.Context()); err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondSuccess(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleForceResync(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ForceResync(r.Context()); err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondSuccess(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleUploadAll(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.SafeUploadAll(r.Context()); err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondSuccess(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleBlobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.blobs.Stats()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondSuccess(w, http.StatusOK, stats)
}

func (s *Server) handleBlobSweep(w http.ResponseWriter, r *http.Request) {
	removed, err := s.blobs.Sweep()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondSuccess(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	infos, err := s.backups.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondSuccess(w, http.StatusOK, infos)
}

func (s *Server) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	name, err := s.backups.Save()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondSuccess(w, http.StatusCreated, map[string]string{"name": name})
}

func (s *Server) handleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.backups.Restore(name); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, fs.ErrNotExist) {
			status = http.StatusNotFound
		}
		respondError(w, status, err.Error())
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"restored": name})
}
