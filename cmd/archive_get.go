package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/facetrail/facetrail/internal/config"
	"github.com/facetrail/facetrail/internal/faceseq"
)

var archiveGetCmd = &cobra.Command{
	Use:   "get [name] [output-file]",
	Short: "Restore a stored snapshot to a sequence file",
	Long: `Restore a named snapshot from the archive and write it to a sequence
file.

Examples:
  facetrail archive get interview restored.fseq`,
	Args: cobra.ExactArgs(2),
	RunE: runArchiveGet,
}

func init() {
	archiveCmd.AddCommand(archiveGetCmd)
}

func runArchiveGet(cmd *cobra.Command, args []string) error {
	name, output := args[0], args[1]

	cfg := config.Load()
	st, err := openArchive(cmd, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	seq, err := faceseq.New(1.0, false)
	if err != nil {
		return err
	}
	if err := st.Get(context.Background(), name, seq); err != nil {
		return err
	}

	if err := seq.Save(output); err != nil {
		return fmt.Errorf("failed to save %s: %w", output, err)
	}

	fmt.Printf("Restored %q to %s: %d frames\n", name, output, seq.Size())
	return nil
}
