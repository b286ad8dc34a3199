package web

import (
	"image"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/facetrail/facetrail/internal/archive"
	"github.com/facetrail/facetrail/internal/config"
	"github.com/facetrail/facetrail/internal/detect/mock"
	"github.com/facetrail/facetrail/internal/faceseq"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	det := mock.NewMockDetector(5, []image.Rectangle{image.Rect(10, 10, 60, 60)})
	seq, err := faceseq.NewWithDetector(det, 1.0, true)
	if err != nil {
		t.Fatalf("failed to create sequence: %v", err)
	}

	snapshots, err := archive.Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	t.Cleanup(func() { snapshots.Close() })

	cfg := &config.Config{
		Render: config.RenderConfig{
			LandmarkColor: "#00ff00",
			BoxColor:      "#ff0000",
			Thickness:     1,
		},
	}
	return NewServer(cfg, 8080, "127.0.0.1", seq, snapshots)
}

func TestServerRoutes(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"GET", "/api/v1/health", http.StatusOK},
		{"GET", "/api/v1/sequence", http.StatusOK},
		{"GET", "/api/v1/sequence/stats", http.StatusOK},
		{"GET", "/api/v1/sequence/report", http.StatusOK},
		{"GET", "/api/v1/archive", http.StatusOK},
		{"GET", "/api/v1/config", http.StatusOK},
		{"GET", "/", http.StatusOK},
		{"GET", "/api/v1/nope", http.StatusNotFound},
		{"GET", "/api/v1/sequence/frames/0", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			recorder := httptest.NewRecorder()

			server.Router().ServeHTTP(recorder, req)

			if recorder.Code != tt.status {
				t.Errorf("expected status %d, got %d\nBody: %s", tt.status, recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestServerHealthBody(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	recorder := httptest.NewRecorder()

	server.Router().ServeHTTP(recorder, req)

	if !strings.Contains(recorder.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected health body: %s", recorder.Body.String())
	}
}

func TestServerPreflight(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/api/v1/sequence", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	recorder := httptest.NewRecorder()

	server.Router().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Errorf("expected status 200 for preflight, got %d", recorder.Code)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("expected allow-origin for localhost, got '%s'", got)
	}
}
