package handlers

import (
	"context"
	"image"
	"sync"
	"testing"
)

func TestStoreSettingsRoundTrip(t *testing.T) {
	store := newTestStore(t)

	settings := store.Settings()
	if settings.FrameScale != 1.0 || !settings.TrackFaces || settings.MinIoU != 0.3 {
		t.Errorf("unexpected default settings: %+v", settings)
	}

	if err := store.SetFrameScale(0.25); err != nil {
		t.Fatalf("SetFrameScale failed: %v", err)
	}
	if err := store.SetMinIoU(0.6); err != nil {
		t.Fatalf("SetMinIoU failed: %v", err)
	}
	store.SetTrackFaces(false)

	settings = store.Settings()
	if settings.FrameScale != 0.25 || settings.TrackFaces || settings.MinIoU != 0.6 {
		t.Errorf("unexpected settings after update: %+v", settings)
	}
}

func TestStoreRejectsInvalidSettings(t *testing.T) {
	store := newTestStore(t)

	if err := store.SetFrameScale(0); err == nil {
		t.Error("expected error for zero frame scale")
	}
	if err := store.SetMinIoU(1.0); err == nil {
		t.Error("expected error for min IoU of 1")
	}
}

func TestStoreConcurrentAddFrame(t *testing.T) {
	store := newTestStore(t, []image.Rectangle{image.Rect(10, 10, 60, 60)})

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.AddFrame(context.Background(), testImage(100, 100), -1); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent AddFrame failed: %v", err)
	}
	if got := store.Stats().Frames; got != workers {
		t.Errorf("expected %d frames, got %d", workers, got)
	}
}
