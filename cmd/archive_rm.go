package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/facetrail/facetrail/internal/config"
)

var archiveRmCmd = &cobra.Command{
	Use:   "rm [name]",
	Short: "Delete a stored snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveRm,
}

func init() {
	archiveCmd.AddCommand(archiveRmCmd)
}

func runArchiveRm(cmd *cobra.Command, args []string) error {
	name := args[0]

	cfg := config.Load()
	st, err := openArchive(cmd, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Delete(context.Background(), name); err != nil {
		return err
	}

	fmt.Printf("Deleted %q\n", name)
	return nil
}
