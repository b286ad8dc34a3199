//go:build integration

package gallery

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/facetrail/facetrail/internal/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

// axisDescriptor returns a 128-dim unit vector pointing along the given axis.
func axisDescriptor(axis int) []float32 {
	d := make([]float32, 128)
	d[axis%128] = 1
	return d
}

func TestGalleryRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewRepository(pool)

	t.Run("UpsertIdentity", func(t *testing.T) {
		first, err := repo.UpsertIdentity(ctx, "Jan Novák")
		if err != nil {
			t.Fatalf("UpsertIdentity() error = %v", err)
		}
		if first.NormalizedName != "jan novak" {
			t.Errorf("normalized name = %q, want %q", first.NormalizedName, "jan novak")
		}

		// Same person through a different spelling.
		second, err := repo.UpsertIdentity(ctx, "jan-novak")
		if err != nil {
			t.Fatalf("UpsertIdentity() error = %v", err)
		}
		if second.ID != first.ID {
			t.Errorf("expected same identity ID, got %d and %d", first.ID, second.ID)
		}

		got, err := repo.GetIdentity(ctx, "JAN NOVÁK")
		if err != nil {
			t.Fatalf("GetIdentity() error = %v", err)
		}
		if got == nil || got.ID != first.ID {
			t.Errorf("GetIdentity() = %+v, want identity %d", got, first.ID)
		}
	})

	t.Run("SaveAndGetObservations", func(t *testing.T) {
		observations := []Observation{
			{FrameID: 0, FaceID: 0, Descriptor: axisDescriptor(0), BBox: []float64{10, 20, 50, 50}},
			{FrameID: 0, FaceID: 1, Descriptor: axisDescriptor(1), BBox: []float64{100, 20, 40, 40}},
			{FrameID: 1, FaceID: 0, Descriptor: axisDescriptor(0), BBox: []float64{12, 21, 50, 50}},
		}
		if err := repo.SaveObservations(ctx, "seq-a", observations); err != nil {
			t.Fatalf("SaveObservations() error = %v", err)
		}

		got, err := repo.GetObservations(ctx, "seq-a")
		if err != nil {
			t.Fatalf("GetObservations() error = %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 observations, got %d", len(got))
		}
		if got[0].FrameID != 0 || got[0].FaceID != 0 {
			t.Errorf("first observation = frame %d face %d, want frame 0 face 0", got[0].FrameID, got[0].FaceID)
		}
		if len(got[0].Descriptor) != 128 {
			t.Errorf("descriptor length = %d, want 128", len(got[0].Descriptor))
		}
		if len(got[0].BBox) != 4 || got[0].BBox[0] != 10 {
			t.Errorf("bbox = %v, want [10 20 50 50]", got[0].BBox)
		}
	})

	t.Run("SaveReplacesSequence", func(t *testing.T) {
		replacement := []Observation{
			{FrameID: 0, FaceID: 0, Descriptor: axisDescriptor(0), BBox: []float64{10, 20, 50, 50}},
		}
		if err := repo.SaveObservations(ctx, "seq-b", replacement); err != nil {
			t.Fatalf("SaveObservations() error = %v", err)
		}
		if err := repo.SaveObservations(ctx, "seq-b", replacement); err != nil {
			t.Fatalf("SaveObservations() replace error = %v", err)
		}

		got, err := repo.GetObservations(ctx, "seq-b")
		if err != nil {
			t.Fatalf("GetObservations() error = %v", err)
		}
		if len(got) != 1 {
			t.Errorf("expected 1 observation after replace, got %d", len(got))
		}
	})

	t.Run("LabelTrack", func(t *testing.T) {
		labeled, err := repo.LabelTrack(ctx, "seq-a", 0, "Ada Lovelace")
		if err != nil {
			t.Fatalf("LabelTrack() error = %v", err)
		}
		// Face 0 appears in frames 0 and 1.
		if labeled != 2 {
			t.Errorf("labeled = %d observations, want 2", labeled)
		}

		byPerson, err := repo.GetByPerson(ctx, "ada-lovelace")
		if err != nil {
			t.Fatalf("GetByPerson() error = %v", err)
		}
		if len(byPerson) != 2 {
			t.Fatalf("expected 2 observations for person, got %d", len(byPerson))
		}
		for _, obs := range byPerson {
			if obs.Person != "Ada Lovelace" {
				t.Errorf("observation person = %q, want %q", obs.Person, "Ada Lovelace")
			}
		}
	})

	t.Run("FindSimilarPostgres", func(t *testing.T) {
		query := axisDescriptor(0)
		query[1] = 0.1 // slightly off axis, still closest to axis 0

		results, distances, err := repo.FindSimilarWithDistance(ctx, query, 5, 0.5)
		if err != nil {
			t.Fatalf("FindSimilarWithDistance() error = %v", err)
		}
		if len(results) == 0 {
			t.Fatal("expected at least one similar observation")
		}
		if results[0].FaceID != 0 {
			t.Errorf("nearest observation face = %d, want 0", results[0].FaceID)
		}
		if distances[0] > 0.01 {
			t.Errorf("nearest distance = %v, want near 0", distances[0])
		}
		for _, d := range distances {
			if d >= 0.5 {
				t.Errorf("distance %v exceeds the 0.5 threshold", d)
			}
		}
	})

	t.Run("ListIdentities", func(t *testing.T) {
		summaries, err := repo.ListIdentities(ctx)
		if err != nil {
			t.Fatalf("ListIdentities() error = %v", err)
		}
		var ada *IdentitySummary
		for i := range summaries {
			if summaries[i].NormalizedName == "ada lovelace" {
				ada = &summaries[i]
			}
		}
		if ada == nil {
			t.Fatal("expected Ada Lovelace in identity list")
		}
		if ada.Observations != 2 {
			t.Errorf("identity observations = %d, want 2", ada.Observations)
		}
	})

	t.Run("HNSWIndex", func(t *testing.T) {
		indexPath := filepath.Join(t.TempDir(), "gallery.idx")

		if err := repo.EnableIndex(ctx, indexPath); err != nil {
			t.Fatalf("EnableIndex() error = %v", err)
		}
		if !repo.IsIndexEnabled() {
			t.Fatal("index should be enabled")
		}

		total, err := repo.CountObservations(ctx)
		if err != nil {
			t.Fatalf("CountObservations() error = %v", err)
		}
		if repo.IndexCount() != total {
			t.Errorf("index count = %d, want %d", repo.IndexCount(), total)
		}

		query := axisDescriptor(0)
		results, distances, err := repo.FindSimilarWithDistance(ctx, query, 5, 0.5)
		if err != nil {
			t.Fatalf("FindSimilarWithDistance() via index error = %v", err)
		}
		if len(results) == 0 {
			t.Fatal("expected index search results")
		}
		if results[0].FaceID != 0 || distances[0] > 0.01 {
			t.Errorf("nearest = face %d at distance %v, want face 0 near 0", results[0].FaceID, distances[0])
		}

		// A fresh repository should load the persisted index instead of rebuilding.
		if err := repo.SaveIndex(ctx); err != nil {
			t.Fatalf("SaveIndex() error = %v", err)
		}
		fresh := NewRepository(pool)
		if err := fresh.EnableIndex(ctx, indexPath); err != nil {
			t.Fatalf("EnableIndex() from disk error = %v", err)
		}
		if fresh.IndexCount() != total {
			t.Errorf("loaded index count = %d, want %d", fresh.IndexCount(), total)
		}
	})

	t.Run("RebuildIndex", func(t *testing.T) {
		indexed := NewRepository(pool)
		if err := indexed.EnableIndex(ctx, ""); err != nil {
			t.Fatalf("EnableIndex() error = %v", err)
		}

		// Writes through another repository leave this index behind.
		writer := NewRepository(pool)
		extra := []Observation{
			{FrameID: 0, FaceID: 0, Descriptor: axisDescriptor(7), BBox: []float64{1, 2, 30, 30}},
		}
		if err := writer.SaveObservations(ctx, "seq-c", extra); err != nil {
			t.Fatalf("SaveObservations() error = %v", err)
		}

		total, err := indexed.CountObservations(ctx)
		if err != nil {
			t.Fatalf("CountObservations() error = %v", err)
		}
		if indexed.IndexCount() == total {
			t.Fatal("index unexpectedly saw the out-of-band write")
		}

		if err := indexed.RebuildIndex(ctx); err != nil {
			t.Fatalf("RebuildIndex() error = %v", err)
		}
		if indexed.IndexCount() != total {
			t.Errorf("rebuilt index count = %d, want %d", indexed.IndexCount(), total)
		}
	})

	t.Run("DisableIndex", func(t *testing.T) {
		indexed := NewRepository(pool)
		if err := indexed.EnableIndex(ctx, ""); err != nil {
			t.Fatalf("EnableIndex() error = %v", err)
		}

		indexed.DisableIndex()
		if indexed.IsIndexEnabled() {
			t.Fatal("index should be disabled")
		}

		// Search falls back to PostgreSQL.
		results, _, err := indexed.FindSimilarWithDistance(ctx, axisDescriptor(0), 3, 0.5)
		if err != nil {
			t.Fatalf("FindSimilarWithDistance() after disable error = %v", err)
		}
		if len(results) == 0 {
			t.Fatal("expected results from the PostgreSQL fallback")
		}
	})
}
