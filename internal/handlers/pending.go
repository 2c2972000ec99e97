package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gi8lino/relbot/internal/jira"
	"github.com/gi8lino/relbot/internal/version"
)

// PendingStore is the part of a Jira session that manages pending versions.
type PendingStore interface {
	AddPendingVersion(ctx context.Context, key, versionText string) error
	RemovePendingVersions(ctx context.Context, key string, versions []version.Version) error
	FindPendingVersions(ctx context.Context, project string) (map[string][]version.Version, error)
}

var _ PendingStore = (jira.Session)(nil)

type addPendingRequest struct {
	Version string `json:"version"`
}

type removePendingRequest struct {
	Versions []string `json:"versions"`
}

// ListPendingVersions returns the pending versions of every issue in a project.
func ListPendingVersions(store PendingStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		project, err := requirePathValue(r, "project")
		if err != nil {
			writeError(w, logger, err)
			return
		}

		found, err := store.FindPendingVersions(r.Context(), project)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		out := make(map[string][]string, len(found))
		for key, versions := range found {
			out[key] = version.Strings(versions)
		}
		writeJSON(w, logger, http.StatusOK, out)
	}
}

// AddPendingVersion records a pending version on an issue.
func AddPendingVersion(store PendingStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := requirePathValue(r, "key")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		var req addPendingRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, logger, err)
			return
		}

		if err := store.AddPendingVersion(r.Context(), key, req.Version); err != nil {
			writeError(w, logger, err)
			return
		}
		logger.Info("pending version added", "issue", key, "version", req.Version)
		w.WriteHeader(http.StatusNoContent)
	}
}

// RemovePendingVersions drops pending versions from an issue. Every version must
// parse, otherwise nothing is changed.
func RemovePendingVersions(store PendingStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := requirePathValue(r, "key")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		var req removePendingRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, logger, err)
			return
		}

		versions := make([]version.Version, 0, len(req.Versions))
		for _, s := range req.Versions {
			v, ok := version.Parse(s)
			if !ok {
				writeError(w, logger, &jira.ValidationError{Value: s})
				return
			}
			versions = append(versions, v)
		}

		if err := store.RemovePendingVersions(r.Context(), key, versions); err != nil {
			writeError(w, logger, err)
			return
		}
		logger.Info("pending versions removed", "issue", key, "versions", req.Versions)
		w.WriteHeader(http.StatusNoContent)
	}
}
