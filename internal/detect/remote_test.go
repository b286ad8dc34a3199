package detect

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func newFakeService(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/model", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(modelInfo{Model: "landmark68", Points: 68})
	})
	mux.HandleFunc("/detect", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		file.Close()
		json.NewEncoder(w).Encode(detectResponse{Faces: []serviceBox{
			{X: 10, Y: 20, Width: 50, Height: 40, Score: 0.97},
			{X: 100, Y: 20, Width: 50, Height: 40, Score: 0.91},
		}})
	})
	mux.HandleFunc("/landmarks", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// Echo the region origin back through the points so the test can
		// verify the form fields arrived.
		x, _ := strconv.Atoi(r.FormValue("x"))
		y, _ := strconv.Atoi(r.FormValue("y"))
		points := make([]servicePoint, 68)
		for i := range points {
			points[i] = servicePoint{X: x + i, Y: y + i}
		}
		json.NewEncoder(w).Encode(landmarksResponse{Points: points})
	})
	mux.HandleFunc("/describe", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		desc := make([]float32, 128)
		desc[0] = 1
		json.NewEncoder(w).Encode(describeResponse{Descriptor: desc})
	})
	return httptest.NewServer(mux)
}

func TestServiceClientModel(t *testing.T) {
	srv := newFakeService(t)
	defer srv.Close()

	c, err := NewServiceClient(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("NewServiceClient() error = %v", err)
	}
	defer c.Close()

	if c.Model() != "landmark68" {
		t.Errorf("Model() = %q, want landmark68", c.Model())
	}
	if c.LandmarkCount() != 68 {
		t.Errorf("LandmarkCount() = %d, want 68", c.LandmarkCount())
	}
}

func TestServiceClientDetect(t *testing.T) {
	srv := newFakeService(t)
	defer srv.Close()

	c, err := NewServiceClient(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("NewServiceClient() error = %v", err)
	}
	defer c.Close()

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	boxes, err := c.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(boxes) != 2 {
		t.Fatalf("Detect() returned %d boxes, want 2", len(boxes))
	}
	if boxes[0] != image.Rect(10, 20, 60, 60) {
		t.Errorf("boxes[0] = %v, want (10,20)-(60,60)", boxes[0])
	}
	if boxes[1] != image.Rect(100, 20, 150, 60) {
		t.Errorf("boxes[1] = %v, want (100,20)-(150,60)", boxes[1])
	}
}

func TestServiceClientLocate(t *testing.T) {
	srv := newFakeService(t)
	defer srv.Close()

	c, err := NewServiceClient(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("NewServiceClient() error = %v", err)
	}
	defer c.Close()

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	region := image.Rect(30, 40, 90, 100)
	points, err := c.Locate(context.Background(), img, region)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if len(points) != 68 {
		t.Fatalf("Locate() returned %d points, want 68", len(points))
	}
	if points[0] != image.Pt(30, 40) {
		t.Errorf("points[0] = %v, want the region origin (30,40)", points[0])
	}
	if points[5] != image.Pt(35, 45) {
		t.Errorf("points[5] = %v, want (35,45)", points[5])
	}
}

func TestServiceClientDescribe(t *testing.T) {
	srv := newFakeService(t)
	defer srv.Close()

	c, err := NewServiceClient(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("NewServiceClient() error = %v", err)
	}
	defer c.Close()

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	desc, err := c.Describe(context.Background(), img, image.Rect(0, 0, 32, 32))
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if len(desc) != 128 || desc[0] != 1 {
		t.Errorf("Describe() = %d values starting %v, want 128 starting 1", len(desc), desc[0])
	}
}

func TestServiceClientRejectsFailingService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := NewServiceClient(context.Background(), srv.URL); err == nil {
		t.Fatal("NewServiceClient() against failing service succeeded, want error")
	}
}

func TestServiceClientRejectsUnreachableService(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := NewServiceClient(context.Background(), url); err == nil {
		t.Fatal("NewServiceClient() against closed service succeeded, want error")
	}
}

func TestServiceClientRejectsPointlessModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(modelInfo{Model: "empty", Points: 0})
	}))
	defer srv.Close()

	if _, err := NewServiceClient(context.Background(), srv.URL); err == nil {
		t.Fatal("NewServiceClient() with zero landmark points succeeded, want error")
	}
}

func TestServiceClientLocateCountMismatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/model", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(modelInfo{Model: "landmark68", Points: 68})
	})
	mux.HandleFunc("/landmarks", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(landmarksResponse{Points: make([]servicePoint, 3)})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := NewServiceClient(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("NewServiceClient() error = %v", err)
	}
	defer c.Close()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	if _, err := c.Locate(context.Background(), img, image.Rect(0, 0, 4, 4)); err == nil {
		t.Fatal("Locate() with short point list succeeded, want error")
	}
}
