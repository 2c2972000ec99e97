package server

import (
	"log/slog"
	"net/http"

	"github.com/gi8lino/relbot/internal/handlers"
	"github.com/gi8lino/relbot/internal/middleware"
)

// NewRouter creates the HTTP router, mounted under routePrefix when set.
func NewRouter(
	store handlers.PendingStore,
	releaser handlers.Releaser,
	routePrefix string,
	logger *slog.Logger,
	debug bool,
) http.Handler {
	root := http.NewServeMux()

	// Health checks (no logging)
	root.Handle("GET /healthz", handlers.Healthz())
	root.Handle("POST /healthz", handlers.Healthz())

	api := http.NewServeMux()
	api.Handle("GET /projects/{project}/pending-versions", handlers.ListPendingVersions(store, logger))
	api.Handle("POST /issues/{key}/pending-versions", handlers.AddPendingVersion(store, logger))
	api.Handle("DELETE /issues/{key}/pending-versions", handlers.RemovePendingVersions(store, logger))
	api.Handle("POST /projects/{project}/releases", handlers.Release(releaser, logger))
	api.Handle("POST /projects/{project}/versions/sort", handlers.SortVersions(releaser, logger))

	var apiHandler http.Handler = http.StripPrefix("/api/v1", api)
	if debug {
		apiHandler = middleware.Chain(apiHandler, middleware.LoggingMiddleware(logger))
	}
	root.Handle("/api/v1/", apiHandler)

	return mountUnderPrefix(root, routePrefix)
}
