package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/facetrail/facetrail/internal/config"
	"github.com/facetrail/facetrail/internal/constants"
	"github.com/facetrail/facetrail/internal/detect"
)

var galleryIdentifyCmd = &cobra.Command{
	Use:   "identify [image-file]",
	Short: "Identify the faces in an image against the gallery",
	Long: `Detect the faces in an image, compute their descriptors and look up the
closest enrolled people in the gallery. Candidate observations are
aggregated per person: the best distance wins and the observation count
shows how much enrolled material supports the match.

Examples:
  facetrail gallery identify group.jpg
  facetrail gallery identify group.jpg --threshold 0.4 --top 5`,
	Args: cobra.ExactArgs(1),
	RunE: runGalleryIdentify,
}

func init() {
	galleryCmd.AddCommand(galleryIdentifyCmd)

	galleryIdentifyCmd.Flags().Float64("threshold", constants.DefaultDistanceThreshold, "Maximum cosine distance for a match")
	galleryIdentifyCmd.Flags().Int("top", 3, "Number of people to show per face")
	galleryIdentifyCmd.Flags().String("model", "", "Directory with dlib model files (defaults to MODEL_DIR)")
	galleryIdentifyCmd.Flags().String("service", "", "Detection service URL (defaults to DETECT_SERVICE_URL)")
}

// personMatch aggregates the candidate observations of one person.
type personMatch struct {
	person       string
	distance     float64
	observations int
}

// aggregateByPerson reduces raw candidates to one entry per person, keeping
// the best distance. Unlabeled observations group under "(unlabeled)".
func aggregateByPerson(persons []string, distances []float64) []personMatch {
	byPerson := make(map[string]*personMatch)
	var order []string

	for i, person := range persons {
		if person == "" {
			person = "(unlabeled)"
		}
		m, ok := byPerson[person]
		if !ok {
			m = &personMatch{person: person, distance: distances[i]}
			byPerson[person] = m
			order = append(order, person)
		}
		if distances[i] < m.distance {
			m.distance = distances[i]
		}
		m.observations++
	}

	matches := make([]personMatch, 0, len(order))
	for _, person := range order {
		matches = append(matches, *byPerson[person])
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].distance < matches[j].distance })
	return matches
}

func runGalleryIdentify(cmd *cobra.Command, args []string) error {
	threshold := mustGetFloat64(cmd, "threshold")
	top := mustGetInt(cmd, "top")

	ctx := context.Background()
	cfg := config.Load()

	pool, repo, err := connectGallery(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	modelDir, serviceURL := resolveBackendFlags(cmd, cfg)
	det, err := newDetector(ctx, modelDir, serviceURL)
	if err != nil {
		return err
	}
	defer det.Close()

	describer, ok := det.(detect.Describer)
	if !ok {
		return errors.New("detection backend cannot compute face descriptors")
	}

	img, err := loadImage(args[0])
	if err != nil {
		return err
	}

	regions, err := det.Detect(ctx, img)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}
	if len(regions) == 0 {
		fmt.Println("No faces found.")
		return nil
	}
	fmt.Printf("Found %d faces\n\n", len(regions))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FACE\tPERSON\tDISTANCE\tOBSERVATIONS")
	fmt.Fprintln(w, "----\t------\t--------\t------------")

	for i, region := range regions {
		desc, err := describer.Describe(ctx, img, region)
		if err != nil {
			fmt.Fprintf(w, "%d\t(descriptor failed: %v)\t\t\n", i, err)
			continue
		}

		candidates, distances, err := repo.FindSimilarWithDistance(ctx, desc, constants.DefaultSearchLimit, threshold)
		if err != nil {
			return fmt.Errorf("similarity search failed: %w", err)
		}
		if len(candidates) == 0 {
			fmt.Fprintf(w, "%d\t(no match)\t\t\n", i)
			continue
		}

		persons := make([]string, len(candidates))
		for j := range candidates {
			persons[j] = candidates[j].Person
		}
		matches := aggregateByPerson(persons, distances)
		if len(matches) > top {
			matches = matches[:top]
		}

		for j, m := range matches {
			faceCol := ""
			if j == 0 {
				faceCol = fmt.Sprintf("%d", i)
			}
			fmt.Fprintf(w, "%s\t%s\t%.4f\t%d\n", faceCol, m.person, m.distance, m.observations)
		}
	}
	w.Flush()
	return nil
}
