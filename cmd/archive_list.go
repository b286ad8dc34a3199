package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/facetrail/facetrail/internal/config"
)

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored sequence snapshots",
	Long:  `Display every snapshot in the archive with its frame and face counts.`,
	Args:  cobra.NoArgs,
	RunE:  runArchiveList,
}

func init() {
	archiveCmd.AddCommand(archiveListCmd)
}

func runArchiveList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	st, err := openArchive(cmd, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list archive: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("Archive is empty.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tUID\tFRAMES\tFACES\tTRACKING\tUPDATED")
	fmt.Fprintln(w, "----\t---\t------\t-----\t--------\t-------")

	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%t\t%s\n",
			entry.Name, shortUID(entry.UID), entry.Frames, entry.Faces,
			entry.TrackFaces, entry.UpdatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d sequences\n", len(entries))
	return nil
}
