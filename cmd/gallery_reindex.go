package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/facetrail/facetrail/internal/config"
)

var galleryReindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Build and persist the similarity search index",
	Long: `Build the in-memory HNSW index from the observations in PostgreSQL and
persist it to disk, so later runs can load it instead of rebuilding.

Examples:
  facetrail gallery reindex --index gallery.idx`,
	Args: cobra.NoArgs,
	RunE: runGalleryReindex,
}

func init() {
	galleryCmd.AddCommand(galleryReindexCmd)

	galleryReindexCmd.Flags().String("index", "", "Index file to write (defaults to HNSW_INDEX_PATH)")
}

func runGalleryReindex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	path := mustGetString(cmd, "index")
	if path == "" {
		path = cfg.Database.HNSWIndexPath
	}
	if path == "" {
		return errors.New("no index path: set HNSW_INDEX_PATH or use --index")
	}

	pool, repo, err := connectGallery(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	fmt.Println("Building HNSW index from PostgreSQL...")
	if err := repo.EnableIndex(ctx, path); err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}
	if err := repo.SaveIndex(ctx); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}

	fmt.Printf("Index ready with %d observations (persisted to %s)\n", repo.IndexCount(), path)
	return nil
}
