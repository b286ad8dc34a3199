package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/facetrail/facetrail/internal/faceseq"
)

var infoCmd = &cobra.Command{
	Use:   "info [sequence-file]",
	Short: "Display sequence statistics",
	Long: `Display the configuration and tracking statistics of a saved sequence:
frame and face counts, identity track counts and the track length
distribution.

Examples:
  # Human readable summary
  facetrail info video.fseq

  # Output as JSON
  facetrail info --json video.fseq`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().Bool("json", false, "Output as JSON")
}

// loadSequenceFile reads a saved sequence without attaching a detection backend.
func loadSequenceFile(path string) (*faceseq.Sequence, error) {
	seq, err := faceseq.New(1.0, false)
	if err != nil {
		return nil, err
	}
	if err := seq.Load(path); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return seq, nil
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// sequenceInfo is the JSON shape of the info command output.
type sequenceInfo struct {
	UID               string  `json:"uid"`
	FrameScale        float64 `json:"frame_scale"`
	TrackFaces        bool    `json:"track_faces"`
	MinIoU            float64 `json:"min_iou"`
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

func runInfo(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	seq, err := loadSequenceFile(args[0])
	if err != nil {
		return err
	}
	stats := seq.Summarize()

	if jsonOutput {
		return outputJSON(sequenceInfo{
			UID:               seq.UID(),
			FrameScale:        seq.FrameScale(),
			TrackFaces:        seq.TrackFaces(),
			MinIoU:            seq.MinIoU(),
			Frames:            stats.Frames,
			Faces:             stats.Faces,
			Tracks:            stats.Tracks,
			MeanFacesPerFrame: stats.MeanFacesPerFrame,
			MaxFacesInFrame:   stats.MaxFacesInFrame,
			MeanTrackLength:   stats.MeanTrackLength,
			StdDevTrackLength: stats.StdDevTrackLength,
			MedianTrackLength: stats.MedianTrackLength,
			LongestTrack:      stats.LongestTrack,
		})
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "UID:\t%s\n", seq.UID())
	fmt.Fprintf(w, "Frame scale:\t%g\n", seq.FrameScale())
	fmt.Fprintf(w, "Tracking:\t%t\n", seq.TrackFaces())
	fmt.Fprintf(w, "Min IoU:\t%g\n", seq.MinIoU())
	fmt.Fprintf(w, "Frames:\t%d\n", stats.Frames)
	fmt.Fprintf(w, "Faces:\t%d\n", stats.Faces)
	fmt.Fprintf(w, "Tracks:\t%d\n", stats.Tracks)
	fmt.Fprintf(w, "Faces per frame:\t%.2f mean, %d max\n", stats.MeanFacesPerFrame, stats.MaxFacesInFrame)
	fmt.Fprintf(w, "Track length:\t%.2f mean, %.2f median, %.2f stddev\n",
		stats.MeanTrackLength, stats.MedianTrackLength, stats.StdDevTrackLength)
	fmt.Fprintf(w, "Longest track:\t%d frames\n", stats.LongestTrack)
	w.Flush()
	return nil
}
