package report

import (
	"bytes"
	"context"
	"image"
	"strings"
	"testing"

	"github.com/facetrail/facetrail/internal/detect/mock"
	"github.com/facetrail/facetrail/internal/faceseq"
)

func buildSequence(t *testing.T) *faceseq.Sequence {
	t.Helper()

	a := image.Rect(10, 10, 60, 60)
	b := image.Rect(200, 40, 260, 100)
	det := mock.NewMockDetector(5,
		[]image.Rectangle{a},
		[]image.Rectangle{a, b},
	)

	seq, err := faceseq.NewWithDetector(det, 1.0, true)
	if err != nil {
		t.Fatalf("NewWithDetector() error = %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for range 2 {
		if _, err := seq.AddFrame(context.Background(), img); err != nil {
			t.Fatalf("AddFrame() error = %v", err)
		}
	}
	return seq
}

func TestWriteHTML(t *testing.T) {
	seq := buildSequence(t)

	var buf bytes.Buffer
	if err := WriteHTML(seq, &buf); err != nil {
		t.Fatalf("WriteHTML() error = %v", err)
	}

	html := buf.String()
	if len(html) == 0 {
		t.Fatal("expected non-empty report")
	}
	// Both charts and both track series should be present.
	for _, want := range []string{"Face Track Centers", "Faces Per Frame", "face 0", "face 1"} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if !strings.Contains(html, seq.UID()) {
		t.Error("report should mention the sequence UID")
	}
}

func TestWriteHTMLEmptySequence(t *testing.T) {
	seq, err := faceseq.New(1.0, true)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var buf bytes.Buffer
	if err := WriteHTML(seq, &buf); err != nil {
		t.Fatalf("WriteHTML() on empty sequence error = %v", err)
	}
	if buf.Len() == 0 {
		t.Error("expected report output for empty sequence")
	}
}
