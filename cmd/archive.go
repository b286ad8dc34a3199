package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/facetrail/facetrail/internal/archive"
	"github.com/facetrail/facetrail/internal/config"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage the local sequence archive",
	Long: `Store and retrieve named sequence snapshots in a local SQLite archive.
The archive file defaults to facetrail.db and can be changed with --db
or the ARCHIVE_PATH environment variable.`,
}

func init() {
	rootCmd.AddCommand(archiveCmd)

	archiveCmd.PersistentFlags().String("db", "", "Archive database file (defaults to ARCHIVE_PATH)")
}

// openArchive opens the snapshot store selected by flags and configuration.
func openArchive(cmd *cobra.Command, cfg *config.Config) (*archive.Store, error) {
	path := mustGetString(cmd, "db")
	if path == "" {
		path = cfg.Archive.Path
	}
	st, err := archive.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	return st, nil
}

// shortUID trims a sequence UID for table display.
func shortUID(uid string) string {
	if len(uid) > 8 {
		return uid[:8]
	}
	return uid
}
