package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facetrail",
	Short: "Track face landmarks across image sequences",
	Long: `Facetrail processes image sequences with a face detection backend,
keeping bounding boxes and landmark points for every frame and tracking
face identities across consecutive frames. Sequences can be saved to
files, archived in SQLite, rendered as annotated images, summarized as
HTML reports and matched against a PostgreSQL face gallery.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
