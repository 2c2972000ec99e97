package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gi8lino/relbot/internal/release"
)

// Releaser runs release operations for a project.
type Releaser interface {
	MergePendingVersions(ctx context.Context, project, versionText string, dryRun bool) (release.Report, error)
	SortVersions(ctx context.Context, project string) (int, error)
}

var _ Releaser = (*release.Service)(nil)

type releaseRequest struct {
	Version string `json:"version"`
	DryRun  bool   `json:"dryRun"`
}

// releaseResponse carries the report and, on partial failure, the error.
type releaseResponse struct {
	release.Report
	Error string `json:"error,omitempty"`
}

type sortResponse struct {
	Moved int `json:"moved"`
}

// Release merges the pending versions of a project into a released version.
// A partially applied release reports the failing issues with the mapped error status.
func Release(releaser Releaser, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		project, err := requirePathValue(r, "project")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		var req releaseRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, logger, err)
			return
		}

		report, err := releaser.MergePendingVersions(r.Context(), project, req.Version, req.DryRun)
		if err != nil && report.Version == "" {
			writeError(w, logger, err)
			return
		}
		if err != nil {
			logger.Error("release incomplete", "project", project, "version", report.Version, "error", err)
			writeJSON(w, logger, statusFor(err), releaseResponse{Report: report, Error: err.Error()})
			return
		}
		writeJSON(w, logger, http.StatusOK, releaseResponse{Report: report})
	}
}

// SortVersions reorders the versions of a project.
func SortVersions(releaser Releaser, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		project, err := requirePathValue(r, "project")
		if err != nil {
			writeError(w, logger, err)
			return
		}

		moved, err := releaser.SortVersions(r.Context(), project)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, sortResponse{Moved: moved})
	}
}
