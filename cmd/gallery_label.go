package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/facetrail/facetrail/internal/config"
	"github.com/facetrail/facetrail/internal/constants"
	"github.com/facetrail/facetrail/internal/detect"
	"github.com/facetrail/facetrail/internal/faceseq"
	"github.com/facetrail/facetrail/internal/gallery"
)

var galleryLabelCmd = &cobra.Command{
	Use:   "label [name] [images-dir]",
	Short: "Enroll a labeled person from a directory of images",
	Long: `Process a directory of images of one person and enroll every detected
face in the gallery under the given name. Descriptors are computed with
the detection backend and stored in PostgreSQL for identification.

Enrolling the same directory again replaces the previous observations.

Examples:
  # Enroll a person from reference shots
  facetrail gallery label "Ada Lovelace" ./photos/ada

  # Use the detection service backend
  facetrail gallery label "Ada Lovelace" ./photos/ada --service http://localhost:8500`,
	Args: cobra.ExactArgs(2),
	RunE: runGalleryLabel,
}

func init() {
	galleryCmd.AddCommand(galleryLabelCmd)

	galleryLabelCmd.Flags().Float64("scale", 0, "Detector input scale (0 = configured default)")
	galleryLabelCmd.Flags().String("model", "", "Directory with dlib model files (defaults to MODEL_DIR)")
	galleryLabelCmd.Flags().String("service", "", "Detection service URL (defaults to DETECT_SERVICE_URL)")
	galleryLabelCmd.Flags().Int("concurrency", constants.WorkerPoolSize, "Number of parallel descriptor workers")
}

// descriptorJob pairs a detected face with the image it was found in.
type descriptorJob struct {
	img     image.Image
	face    faceseq.Face
	frameID int
}

func runGalleryLabel(cmd *cobra.Command, args []string) error {
	name, dir := args[0], args[1]
	concurrency := mustGetInt(cmd, "concurrency")

	ctx := context.Background()
	cfg := config.Load()

	pool, repo, err := connectGallery(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	modelDir, serviceURL := resolveBackendFlags(cmd, cfg)
	det, err := newDetector(ctx, modelDir, serviceURL)
	if err != nil {
		return err
	}
	defer det.Close()

	describer, ok := det.(detect.Describer)
	if !ok {
		return errors.New("detection backend cannot compute face descriptors")
	}

	scale := mustGetFloat64(cmd, "scale")
	if scale <= 0 {
		scale = cfg.Tracking.FrameScale
	}

	// Tracking on: one track should cover the person across all shots.
	seq, err := faceseq.NewWithDetector(det, scale, true)
	if err != nil {
		return err
	}

	files, err := listImages(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no images found in %s", dir)
	}

	fmt.Printf("Processing %d images of %q\n", len(files), name)

	bar := newFrameProgressBar(len(files), "Detecting faces")

	var jobs []descriptorJob
	var skipped int
	for _, path := range files {
		img, err := loadImage(path)
		if err != nil {
			skipped++
			bar.Add(1)
			continue
		}
		frame, err := seq.AddFrame(ctx, img)
		if err != nil {
			return fmt.Errorf("failed to process %s: %w", path, err)
		}
		for _, face := range frame.Faces {
			jobs = append(jobs, descriptorJob{img: img, face: face, frameID: frame.ID})
		}
		bar.Add(1)
	}
	fmt.Println()

	if skipped > 0 {
		fmt.Printf("Skipped %d unreadable files\n", skipped)
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no faces found in %s", dir)
	}

	identity, err := repo.UpsertIdentity(ctx, name)
	if err != nil {
		return err
	}

	bar = progressbar.NewOptions(len(jobs),
		progressbar.OptionSetDescription("Computing descriptors"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("faces"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	observations := make([]gallery.Observation, len(jobs))
	var errCount int
	var mu sync.Mutex

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := range jobs {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			j := jobs[idx]
			desc, err := describer.Describe(ctx, j.img, j.face.BBox)
			if err != nil {
				mu.Lock()
				errCount++
				mu.Unlock()
				bar.Add(1)
				return
			}
			observations[idx] = gallery.Observation{
				IdentityID:  identity.ID,
				SequenceUID: seq.UID(),
				FrameID:     j.frameID,
				FaceID:      j.face.ID,
				Descriptor:  desc,
				BBox: []float64{
					float64(j.face.BBox.Min.X),
					float64(j.face.BBox.Min.Y),
					float64(j.face.BBox.Dx()),
					float64(j.face.BBox.Dy()),
				},
			}
			bar.Add(1)
		}(i)
	}
	wg.Wait()
	fmt.Println()

	// Keep only the faces that got a descriptor.
	valid := make([]gallery.Observation, 0, len(observations))
	for i := range observations {
		if observations[i].Descriptor != nil {
			valid = append(valid, observations[i])
		}
	}
	if len(valid) == 0 {
		return errors.New("descriptor computation failed for every face")
	}

	if err := repo.SaveObservations(ctx, seq.UID(), valid); err != nil {
		return fmt.Errorf("failed to save observations: %w", err)
	}

	if errCount > 0 {
		fmt.Printf("Warning: %d faces skipped after descriptor errors\n", errCount)
	}
	fmt.Printf("\nEnrolled %d observations of %q (sequence %s)\n", len(valid), identity.Name, shortUID(seq.UID()))
	return nil
}
