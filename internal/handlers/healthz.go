package handlers

import "net/http"

// Healthz reports that the process is serving. It does not contact Jira.
func Healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok")) // nolint:errcheck
	}
}
