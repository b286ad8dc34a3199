package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/facetrail/facetrail/internal/archive"
	"github.com/facetrail/facetrail/internal/web/handlers"
)

func (s *Server) setupRoutes(snapshots *archive.Store) {
	// Create handlers
	sequenceHandler := handlers.NewSequenceHandler(s.config, s.store)
	archiveHandler := handlers.NewArchiveHandler(s.store, snapshots)
	configHandler := handlers.NewConfigHandler(s.config, s.store)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Sequence
		r.Route("/sequence", func(r chi.Router) {
			r.Get("/", sequenceHandler.Get)
			r.Delete("/", sequenceHandler.Clear)
			r.Get("/stats", sequenceHandler.Stats)
			r.Get("/report", sequenceHandler.Report)
			r.Post("/frames", sequenceHandler.AddFrame)
			r.Get("/frames/{id}", sequenceHandler.GetFrame)
			r.Get("/frames/{id}/render", sequenceHandler.Render)
			r.Post("/frames/{id}/render", sequenceHandler.Render)
		})

		// Archive
		r.Route("/archive", func(r chi.Router) {
			r.Get("/", archiveHandler.List)
			r.Put("/{name}", archiveHandler.Save)
			r.Post("/{name}/load", archiveHandler.Load)
			r.Delete("/{name}", archiveHandler.Delete)
		})

		// Config
		r.Get("/config", configHandler.Get)
		r.Put("/config", configHandler.Update)
	})

	// Landing page for anyone poking the server with a browser.
	s.router.Get("/", s.indexPage)
}

// indexPage serves a minimal pointer page to the API.
func (s *Server) indexPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>facetrail</title></head>
<body>
    <h1>facetrail</h1>
    <p>Face landmark sequence tracking API.</p>
    <ul>
        <li><a href="/api/v1/health">/api/v1/health</a></li>
        <li><a href="/api/v1/sequence/stats">/api/v1/sequence/stats</a></li>
        <li><a href="/api/v1/sequence/report">/api/v1/sequence/report</a></li>
        <li><a href="/api/v1/archive">/api/v1/archive</a></li>
    </ul>
</body>
</html>`))
}
