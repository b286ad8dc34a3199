package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/facetrail/facetrail/internal/config"
	"github.com/facetrail/facetrail/internal/gallery"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Manage the face identity gallery",
	Long: `Commands for the PostgreSQL face gallery: enroll labeled people from
image directories, identify the faces in new images and maintain the
similarity search index.

All gallery commands require the DATABASE_URL environment variable.`,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
}

// connectGallery connects to PostgreSQL and prepares the gallery schema.
func connectGallery(cfg *config.Config) (*gallery.Pool, *gallery.Repository, error) {
	if cfg.Database.URL == "" {
		return nil, nil, errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Println("Connecting to PostgreSQL...")
	pool, err := gallery.Connect(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return pool, gallery.NewRepository(pool), nil
}
