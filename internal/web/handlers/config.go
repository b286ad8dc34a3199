package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/facetrail/facetrail/internal/config"
)

// ConfigHandler handles configuration endpoints.
type ConfigHandler struct {
	config *config.Config
	store  *Store
}

// NewConfigHandler creates a new config handler.
func NewConfigHandler(cfg *config.Config, store *Store) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
		store:  store,
	}
}

// RenderInfo reports the configured annotation styles.
type RenderInfo struct {
	LandmarkColor string `json:"landmark_color"`
	BoxColor      string `json:"box_color"`
	Thickness     int    `json:"thickness"`
}

// ConfigResponse represents the active sequence configuration.
type ConfigResponse struct {
	UID        string     `json:"uid"`
	FrameScale float64    `json:"frame_scale"`
	TrackFaces bool       `json:"track_faces"`
	MinIoU     float64    `json:"min_iou"`
	Render     RenderInfo `json:"render"`
}

// ConfigUpdateRequest represents the request body for updating the sequence
// configuration. Absent fields are left unchanged.
type ConfigUpdateRequest struct {
	FrameScale *float64 `json:"frame_scale,omitempty"`
	TrackFaces *bool    `json:"track_faces,omitempty"`
	MinIoU     *float64 `json:"min_iou,omitempty"`
}

func (h *ConfigHandler) configResponse() ConfigResponse {
	settings := h.store.Settings()
	return ConfigResponse{
		UID:        settings.UID,
		FrameScale: settings.FrameScale,
		TrackFaces: settings.TrackFaces,
		MinIoU:     settings.MinIoU,
		Render: RenderInfo{
			LandmarkColor: h.config.Render.LandmarkColor,
			BoxColor:      h.config.Render.BoxColor,
			Thickness:     h.config.Render.Thickness,
		},
	}
}

// Get returns the active configuration.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.configResponse())
}

// Update changes the sequence configuration. New settings apply to frames
// added afterwards; stored frames are not reprocessed.
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req ConfigUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if req.FrameScale != nil {
		if err := h.store.SetFrameScale(*req.FrameScale); err != nil {
			respondError(w, http.StatusBadRequest, "invalid frame scale")
			return
		}
	}
	if req.MinIoU != nil {
		if err := h.store.SetMinIoU(*req.MinIoU); err != nil {
			respondError(w, http.StatusBadRequest, "invalid min IoU")
			return
		}
	}
	if req.TrackFaces != nil {
		h.store.SetTrackFaces(*req.TrackFaces)
	}

	respondJSON(w, http.StatusOK, h.configResponse())
}
