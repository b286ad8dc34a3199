package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/facetrail/facetrail/internal/archive"
	"github.com/facetrail/facetrail/internal/config"
	"github.com/facetrail/facetrail/internal/faceseq"
	"github.com/facetrail/facetrail/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the facetrail web server. The server keeps one live sequence in
memory: frames are added over HTTP and snapshots can be saved to and
loaded from the local archive.

A detection backend is attached when MODEL_DIR or DETECT_SERVICE_URL is
configured. Without one, frame uploads are rejected but stored sequences
can still be browsed, rendered and reported on.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	seq, err := faceseq.New(cfg.Tracking.FrameScale, cfg.Tracking.TrackFaces)
	if err != nil {
		return err
	}
	if err := seq.SetMinIoU(cfg.Tracking.MinIoU); err != nil {
		return err
	}

	if det, err := newDetector(ctx, cfg.Detector.ModelDir, cfg.Detector.ServiceURL); err != nil {
		fmt.Printf("Warning: %v\n", err)
		fmt.Println("Frame uploads will be rejected until a backend is configured")
	} else {
		defer det.Close()
		if err := seq.SetDetector(det); err != nil {
			return err
		}
		fmt.Println("Detection backend ready")
	}

	snapshots, err := archive.Open(cfg.Archive.Path)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", cfg.Archive.Path, err)
	}
	defer snapshots.Close()
	fmt.Printf("Sequence archive: %s\n", cfg.Archive.Path)

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, port, host, seq, snapshots)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting facetrail on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
