package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/facetrail/facetrail/internal/config"
	"github.com/facetrail/facetrail/internal/detect"
	"github.com/facetrail/facetrail/internal/faceseq"
)

var processCmd = &cobra.Command{
	Use:   "process [images-dir]",
	Short: "Process a directory of images into a tracked sequence",
	Long: `Process a directory of images in filename order: detect the faces and
landmark points in every image, track face identities across consecutive
frames and save the resulting sequence to a file.

Images are decoded in parallel. Detection always runs in filename order
so identity tracking sees the frames as a continuous sequence.

Examples:
  # Process frames extracted from a video
  facetrail process ./frames --output video.fseq

  # Detect on half-resolution copies (geometry stays in original pixels)
  facetrail process ./frames --scale 0.5

  # Use an external detection service instead of local dlib models
  facetrail process ./frames --service http://localhost:8500`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().String("output", "sequence.fseq", "Output sequence file")
	processCmd.Flags().Float64("scale", 0, "Detector input scale (0 = configured default)")
	processCmd.Flags().Bool("track", true, "Track face identities across frames")
	processCmd.Flags().String("model", "", "Directory with dlib model files (defaults to MODEL_DIR)")
	processCmd.Flags().String("service", "", "Detection service URL (defaults to DETECT_SERVICE_URL)")
	processCmd.Flags().Int("concurrency", 5, "Number of parallel image decoders")
}

// imageExtensions are the file types picked up from an input directory.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// listImages returns the image files in dir in filename order.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

// loadImage decodes a single image file.
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// newDetector builds the detection backend: local dlib models when a model
// directory is set, the detection service otherwise.
func newDetector(ctx context.Context, modelDir, serviceURL string) (detect.Detector, error) {
	if modelDir != "" {
		rec, err := detect.NewRecognizer(modelDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load models from %s: %w", modelDir, err)
		}
		return rec, nil
	}
	if serviceURL != "" {
		client, err := detect.NewServiceClient(ctx, serviceURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to detection service at %s: %w", serviceURL, err)
		}
		return client, nil
	}
	return nil, errors.New("no detection backend configured: set MODEL_DIR or DETECT_SERVICE_URL")
}

// resolveBackendFlags merges the --model/--service flags with the configured defaults.
func resolveBackendFlags(cmd *cobra.Command, cfg *config.Config) (string, string) {
	modelDir := mustGetString(cmd, "model")
	if modelDir == "" {
		modelDir = cfg.Detector.ModelDir
	}
	serviceURL := mustGetString(cmd, "service")
	if serviceURL == "" {
		serviceURL = cfg.Detector.ServiceURL
	}
	return modelDir, serviceURL
}

// newFrameProgressBar creates the standard progress bar for frame processing.
func newFrameProgressBar(count int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(count,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

func runProcess(cmd *cobra.Command, args []string) error {
	dir := args[0]
	output := mustGetString(cmd, "output")
	concurrency := mustGetInt(cmd, "concurrency")

	ctx := context.Background()
	cfg := config.Load()

	scale := mustGetFloat64(cmd, "scale")
	if scale <= 0 {
		scale = cfg.Tracking.FrameScale
	}
	track := mustGetBool(cmd, "track")
	if !cmd.Flags().Changed("track") {
		track = cfg.Tracking.TrackFaces
	}

	modelDir, serviceURL := resolveBackendFlags(cmd, cfg)
	det, err := newDetector(ctx, modelDir, serviceURL)
	if err != nil {
		return err
	}
	defer det.Close()

	seq, err := faceseq.NewWithDetector(det, scale, track)
	if err != nil {
		return err
	}
	if err := seq.SetMinIoU(cfg.Tracking.MinIoU); err != nil {
		return err
	}

	files, err := listImages(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no images found in %s", dir)
	}

	fmt.Printf("Processing %d frames from %s\n", len(files), dir)

	// Decode in parallel; detection happens in order below.
	images := make([]image.Image, len(files))
	decodeErrs := make([]error, len(files))

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i := range files {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			images[idx], decodeErrs[idx] = loadImage(files[idx])
		}(i)
	}
	wg.Wait()

	bar := newFrameProgressBar(len(files), "Detecting faces")

	var skipped int
	for i := range files {
		if decodeErrs[i] != nil {
			skipped++
			bar.Add(1)
			continue
		}
		if _, err := seq.AddFrame(ctx, images[i]); err != nil {
			return fmt.Errorf("failed to process %s: %w", files[i], err)
		}
		images[i] = nil
		bar.Add(1)
	}
	fmt.Println()

	if skipped > 0 {
		fmt.Printf("Skipped %d unreadable files\n", skipped)
	}

	if err := seq.Save(output); err != nil {
		return fmt.Errorf("failed to save sequence: %w", err)
	}

	stats := seq.Summarize()
	fmt.Printf("\nProcessed %d frames: %d faces in %d tracks\n", stats.Frames, stats.Faces, stats.Tracks)
	fmt.Printf("Sequence saved to %s\n", output)
	return nil
}
