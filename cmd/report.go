package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/facetrail/facetrail/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report [sequence-file]",
	Short: "Generate an HTML tracking report",
	Long: `Generate a standalone HTML report for a saved sequence with charts of
face counts per frame and identity track positions over time.

Examples:
  facetrail report video.fseq
  facetrail report video.fseq --output tracking.html`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("output", "report.html", "Output HTML file")
}

func runReport(cmd *cobra.Command, args []string) error {
	output := mustGetString(cmd, "output")

	seq, err := loadSequenceFile(args[0])
	if err != nil {
		return err
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}
	if err := report.WriteHTML(seq, f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	stats := seq.Summarize()
	fmt.Printf("Report for %d frames (%d tracks) written to %s\n", stats.Frames, stats.Tracks, output)
	return nil
}
