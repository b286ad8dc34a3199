package cmd

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/image/draw"

	"github.com/facetrail/facetrail/internal/config"
	"github.com/facetrail/facetrail/internal/constants"
	"github.com/facetrail/facetrail/internal/render"
)

var renderCmd = &cobra.Command{
	Use:   "render [sequence-file] [images-dir]",
	Short: "Draw face annotations onto the source images",
	Long: `Render the landmarks and bounding boxes of a saved sequence onto its
source images. Images are matched to frames by filename order, the same
order the process command consumed them in.

Examples:
  # Annotate every frame into ./annotated
  facetrail render video.fseq ./frames

  # Label each landmark with its index number
  facetrail render video.fseq ./frames --labels

  # Custom colors
  facetrail render video.fseq ./frames --landmark-color "#00ccff" --box-color "#ffcc00"`,
	Args: cobra.ExactArgs(2),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().String("out", "annotated", "Output directory for annotated images")
	renderCmd.Flags().Bool("labels", false, "Draw landmark index labels")
	renderCmd.Flags().String("landmark-color", "", "Landmark color as #rrggbb (defaults to configuration)")
	renderCmd.Flags().String("box-color", "", "Bounding box color as #rrggbb (defaults to configuration)")
	renderCmd.Flags().Int("thickness", 0, "Stroke thickness in pixels (0 = configured default)")
	renderCmd.Flags().Int("max-size", constants.MaxImageSize, "Maximum output dimension in pixels (0 = no limit)")
}

// resolveRenderStyles builds the drawing styles from flags, falling back to
// the configured colors.
func resolveRenderStyles(cmd *cobra.Command, cfg *config.Config) (render.Style, render.Style, error) {
	landmarkHex := mustGetString(cmd, "landmark-color")
	if landmarkHex == "" {
		landmarkHex = cfg.Render.LandmarkColor
	}
	boxHex := mustGetString(cmd, "box-color")
	if boxHex == "" {
		boxHex = cfg.Render.BoxColor
	}
	thickness := mustGetInt(cmd, "thickness")
	if thickness <= 0 {
		thickness = cfg.Render.Thickness
	}

	landmarkColor, err := render.ParseColor(landmarkHex)
	if err != nil {
		return render.Style{}, render.Style{}, fmt.Errorf("invalid landmark color: %w", err)
	}
	boxColor, err := render.ParseColor(boxHex)
	if err != nil {
		return render.Style{}, render.Style{}, fmt.Errorf("invalid box color: %w", err)
	}

	return render.Style{Color: landmarkColor, Thickness: thickness},
		render.Style{Color: boxColor, Thickness: thickness}, nil
}

// shrinkToFit scales the image down so neither dimension exceeds maxSize.
// Images already within the limit are returned unchanged.
func shrinkToFit(img *image.RGBA, maxSize int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return img
	}

	scale := float64(maxSize) / float64(max(w, h))
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// writePNG encodes an image to a PNG file.
func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

func runRender(cmd *cobra.Command, args []string) error {
	outDir := mustGetString(cmd, "out")
	labels := mustGetBool(cmd, "labels")
	maxSize := mustGetInt(cmd, "max-size")

	cfg := config.Load()

	landmarkStyle, boxStyle, err := resolveRenderStyles(cmd, cfg)
	if err != nil {
		return err
	}

	seq, err := loadSequenceFile(args[0])
	if err != nil {
		return err
	}
	frames := seq.Frames()
	if len(frames) == 0 {
		fmt.Println("Sequence has no frames.")
		return nil
	}

	files, err := listImages(args[1])
	if err != nil {
		return err
	}

	count := min(len(frames), len(files))
	if count < len(frames) {
		fmt.Printf("Warning: %d frames but only %d images, rendering the first %d\n",
			len(frames), len(files), count)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	bar := newFrameProgressBar(count, "Rendering frames")

	for i := range count {
		img, err := loadImage(files[i])
		if err != nil {
			return err
		}
		canvas := render.Canvas(img)
		render.Frame(canvas, frames[i], landmarkStyle, boxStyle, labels)

		out := filepath.Join(outDir, fmt.Sprintf("frame_%04d.png", frames[i].ID))
		if err := writePNG(out, shrinkToFit(canvas, maxSize)); err != nil {
			return err
		}
		bar.Add(1)
	}
	fmt.Println()

	fmt.Printf("\nRendered %d frames into %s\n", count, outDir)
	return nil
}
