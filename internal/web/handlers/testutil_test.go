package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/facetrail/facetrail/internal/config"
	"github.com/facetrail/facetrail/internal/detect/mock"
	"github.com/facetrail/facetrail/internal/faceseq"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Render: config.RenderConfig{
			LandmarkColor: "#00ff00",
			BoxColor:      "#ff0000",
			Thickness:     1,
		},
	}
}

// newTestStore creates a store around a tracked sequence with a scripted
// detector serving the given face sets, one per frame.
func newTestStore(t *testing.T, frames ...[]image.Rectangle) *Store {
	t.Helper()
	det := mock.NewMockDetector(5, frames...)
	seq, err := faceseq.NewWithDetector(det, 1.0, true)
	if err != nil {
		t.Fatalf("failed to create sequence: %v", err)
	}
	return NewStore(seq)
}

// testImage creates a blank image of the given size.
func testImage(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

// addTestFrame pushes one frame through the store directly.
func addTestFrame(t *testing.T, store *Store, w, h int) *faceseq.Frame {
	t.Helper()
	frame, err := store.AddFrame(context.Background(), testImage(w, h), -1)
	if err != nil {
		t.Fatalf("failed to add frame: %v", err)
	}
	return frame
}

// multipartImage builds a multipart body carrying the image PNG-encoded
// under the given field name plus any extra form values.
func multipartImage(t *testing.T, field string, img image.Image, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile(field, "frame.png")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if err := png.Encode(part, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
