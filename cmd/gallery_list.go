package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/facetrail/facetrail/internal/config"
)

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the enrolled identities",
	Long:  `Display every identity in the gallery with its observation count.`,
	Args:  cobra.NoArgs,
	RunE:  runGalleryList,
}

func init() {
	galleryCmd.AddCommand(galleryListCmd)
}

func runGalleryList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	pool, repo, err := connectGallery(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	summaries, err := repo.ListIdentities(ctx)
	if err != nil {
		return fmt.Errorf("failed to list identities: %w", err)
	}
	if len(summaries) == 0 {
		fmt.Println("No identities enrolled.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tOBSERVATIONS\tCREATED")
	fmt.Fprintln(w, "----\t------------\t-------")

	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%d\t%s\n", s.Name, s.Observations, s.CreatedAt.Format("2006-01-02"))
	}
	w.Flush()

	total, err := repo.CountObservations(ctx)
	if err != nil {
		return fmt.Errorf("failed to count observations: %w", err)
	}
	fmt.Printf("\nTotal: %d identities, %d observations\n", len(summaries), total)
	return nil
}
