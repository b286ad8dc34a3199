package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/facetrail/facetrail/internal/archive"
	"github.com/facetrail/facetrail/internal/faceseq"
)

// ArchiveHandler handles the snapshot archive endpoints.
type ArchiveHandler struct {
	store     *Store
	snapshots *archive.Store
}

// NewArchiveHandler creates an archive handler.
func NewArchiveHandler(store *Store, snapshots *archive.Store) *ArchiveHandler {
	return &ArchiveHandler{
		store:     store,
		snapshots: snapshots,
	}
}

// List returns all archived sequences.
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.snapshots.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list archive")
		return
	}
	if entries == nil {
		entries = []archive.Entry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// Save snapshots the current sequence into the archive under name.
func (h *ArchiveHandler) Save(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := h.store.SaveTo(r.Context(), h.snapshots, name); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save sequence")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"saved":  name,
		"frames": h.store.Stats().Frames,
	})
}

// Load replaces the current sequence with an archived snapshot.
func (h *ArchiveHandler) Load(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := h.store.LoadFrom(r.Context(), h.snapshots, name); err != nil {
		switch {
		case errors.Is(err, archive.ErrNotFound):
			respondError(w, http.StatusNotFound, "sequence not found")
		case errors.Is(err, faceseq.ErrCorruptData):
			respondError(w, http.StatusInternalServerError, "stored sequence is corrupt")
		default:
			respondError(w, http.StatusInternalServerError, "failed to load sequence")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"loaded": name,
		"frames": h.store.Stats().Frames,
	})
}

// Delete removes an archived snapshot.
func (h *ArchiveHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := h.snapshots.Delete(r.Context(), name); err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			respondError(w, http.StatusNotFound, "sequence not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete sequence")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"deleted": name})
}
