package handlers

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg" // register decoder for frame uploads
	"image/png"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/facetrail/facetrail/internal/config"
	"github.com/facetrail/facetrail/internal/constants"
	"github.com/facetrail/facetrail/internal/faceseq"
	"github.com/facetrail/facetrail/internal/render"
)

// SequenceHandler handles the tracked sequence endpoints.
type SequenceHandler struct {
	store     *Store
	landmarks render.Style
	boxes     render.Style
}

// NewSequenceHandler creates a sequence handler drawing annotations with the
// configured render styles.
func NewSequenceHandler(cfg *config.Config, store *Store) *SequenceHandler {
	landmarks, boxes := renderStyles(cfg.Render)
	return &SequenceHandler{
		store:     store,
		landmarks: landmarks,
		boxes:     boxes,
	}
}

// renderStyles converts configured hex colors into drawing styles, falling
// back to the package defaults on malformed values.
func renderStyles(cfg config.RenderConfig) (landmarks, boxes render.Style) {
	landmarks = render.DefaultLandmarkStyle
	boxes = render.DefaultBoxStyle
	if c, err := render.ParseColor(cfg.LandmarkColor); err == nil {
		landmarks.Color = c
	}
	if c, err := render.ParseColor(cfg.BoxColor); err == nil {
		boxes.Color = c
	}
	if cfg.Thickness > 0 {
		landmarks.Thickness = cfg.Thickness
		boxes.Thickness = cfg.Thickness
	}
	return landmarks, boxes
}

// BoxResponse is a face bounding box in x/y/width/height form.
type BoxResponse struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// PointResponse is one landmark point.
type PointResponse struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// FaceResponse represents one detected face in API responses.
type FaceResponse struct {
	ID        int             `json:"id"`
	BBox      BoxResponse     `json:"bbox"`
	Landmarks []PointResponse `json:"landmarks"`
}

// FrameResponse represents one processed frame.
type FrameResponse struct {
	ID     int            `json:"id"`
	Width  int            `json:"width"`
	Height int            `json:"height"`
	Faces  []FaceResponse `json:"faces"`
}

// SequenceResponse represents the stored sequence.
type SequenceResponse struct {
	UID        string          `json:"uid"`
	FrameScale float64         `json:"frame_scale"`
	TrackFaces bool            `json:"track_faces"`
	Frames     []FrameResponse `json:"frames"`
}

// StatsResponse summarizes the stored sequence.
type StatsResponse struct {
	Frames            int     `json:"frames"`
	Faces             int     `json:"faces"`
	Tracks            int     `json:"tracks"`
	MeanFacesPerFrame float64 `json:"mean_faces_per_frame"`
	MaxFacesInFrame   int     `json:"max_faces_in_frame"`
	MeanTrackLength   float64 `json:"mean_track_length"`
	StdDevTrackLength float64 `json:"stddev_track_length"`
	MedianTrackLength float64 `json:"median_track_length"`
	LongestTrack      int     `json:"longest_track"`
}

func faceToResponse(f faceseq.Face) FaceResponse {
	resp := FaceResponse{
		ID: f.ID,
		BBox: BoxResponse{
			X:      f.BBox.Min.X,
			Y:      f.BBox.Min.Y,
			Width:  f.BBox.Dx(),
			Height: f.BBox.Dy(),
		},
		Landmarks: make([]PointResponse, len(f.Landmarks)),
	}
	for i, p := range f.Landmarks {
		resp.Landmarks[i] = PointResponse{X: p.X, Y: p.Y}
	}
	return resp
}

func frameToResponse(fr *faceseq.Frame) FrameResponse {
	resp := FrameResponse{
		ID:     fr.ID,
		Width:  fr.Width,
		Height: fr.Height,
		Faces:  make([]FaceResponse, len(fr.Faces)),
	}
	for i := range fr.Faces {
		resp.Faces[i] = faceToResponse(fr.Faces[i])
	}
	return resp
}

func statsToResponse(st faceseq.Stats) StatsResponse {
	return StatsResponse{
		Frames:            st.Frames,
		Faces:             st.Faces,
		Tracks:            st.Tracks,
		MeanFacesPerFrame: st.MeanFacesPerFrame,
		MaxFacesInFrame:   st.MaxFacesInFrame,
		MeanTrackLength:   st.MeanTrackLength,
		StdDevTrackLength: st.StdDevTrackLength,
		MedianTrackLength: st.MedianTrackLength,
		LongestTrack:      st.LongestTrack,
	}
}

// AddFrame processes an uploaded image and appends the resulting frame.
func (h *SequenceHandler) AddFrame(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, _, err := r.FormFile("frame")
	if err != nil {
		respondError(w, http.StatusBadRequest, "frame file is required")
		return
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid image")
		return
	}

	id := -1
	if v := r.FormValue("id"); v != "" {
		id, err = strconv.Atoi(v)
		if err != nil || id < 0 {
			respondError(w, http.StatusBadRequest, "invalid frame id")
			return
		}
	}

	frame, err := h.store.AddFrame(r.Context(), img, id)
	if err != nil {
		switch {
		case errors.Is(err, faceseq.ErrInvalidState):
			respondError(w, http.StatusConflict, "no detection backend loaded")
		case errors.Is(err, faceseq.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, "invalid frame input")
		default:
			respondError(w, http.StatusInternalServerError, "failed to process frame")
		}
		return
	}

	respondJSON(w, http.StatusCreated, frameToResponse(frame))
}

// Get returns the stored sequence with all frames.
func (h *SequenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings := h.store.Settings()
	frames := h.store.Frames()

	response := SequenceResponse{
		UID:        settings.UID,
		FrameScale: settings.FrameScale,
		TrackFaces: settings.TrackFaces,
		Frames:     make([]FrameResponse, len(frames)),
	}
	for i := range frames {
		response.Frames[i] = frameToResponse(frames[i])
	}

	respondJSON(w, http.StatusOK, response)
}

// GetFrame returns a single frame by ID.
func (h *SequenceHandler) GetFrame(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid frame id")
		return
	}

	frame := h.store.Frame(id)
	if frame == nil {
		respondError(w, http.StatusNotFound, "frame not found")
		return
	}

	respondJSON(w, http.StatusOK, frameToResponse(frame))
}

// Stats returns summary statistics for the stored sequence.
func (h *SequenceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, statsToResponse(h.store.Stats()))
}

// Clear removes all frames from the sequence.
func (h *SequenceHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.store.Clear()
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// Report renders the HTML tracking report for the stored sequence.
func (h *SequenceHandler) Report(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.store.WriteReport(&buf); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to render report")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Render returns a frame annotated with its face geometry as a PNG. GET
// draws on a blank canvas sized like the original frame; POST draws over an
// uploaded copy of the frame image. The labels query parameter adds landmark
// index labels.
func (h *SequenceHandler) Render(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid frame id")
		return
	}

	frame := h.store.Frame(id)
	if frame == nil {
		respondError(w, http.StatusNotFound, "frame not found")
		return
	}

	var canvas *image.RGBA
	if r.Method == http.MethodPost {
		if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
			respondError(w, http.StatusBadRequest, "failed to parse multipart form")
			return
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			respondError(w, http.StatusBadRequest, "image file is required")
			return
		}
		defer file.Close()

		img, _, err := image.Decode(file)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid image")
			return
		}
		canvas = render.Canvas(img)
	} else {
		canvas = image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	}

	labels := false
	if v := r.URL.Query().Get("labels"); v != "" {
		labels, _ = strconv.ParseBool(v)
	}

	render.Frame(canvas, frame, h.landmarks, h.boxes, labels)

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	png.Encode(w, canvas)
}
