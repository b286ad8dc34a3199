package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/facetrail/facetrail/internal/config"
)

var archivePutCmd = &cobra.Command{
	Use:   "put [name] [sequence-file]",
	Short: "Store a sequence snapshot under a name",
	Long: `Store a saved sequence file in the archive under the given name.
Storing under an existing name replaces the previous snapshot.

Examples:
  facetrail archive put interview video.fseq`,
	Args: cobra.ExactArgs(2),
	RunE: runArchivePut,
}

func init() {
	archiveCmd.AddCommand(archivePutCmd)
}

func runArchivePut(cmd *cobra.Command, args []string) error {
	name, path := args[0], args[1]

	cfg := config.Load()
	st, err := openArchive(cmd, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	seq, err := loadSequenceFile(path)
	if err != nil {
		return err
	}

	if err := st.Put(context.Background(), name, seq); err != nil {
		return fmt.Errorf("failed to store sequence: %w", err)
	}

	fmt.Printf("Stored %q: %d frames\n", name, seq.Size())
	return nil
}
