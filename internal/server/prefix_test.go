package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMountUnderPrefix(t *testing.T) {
	t.Parallel()

	inner := http.NewServeMux()
	inner.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "root") // nolint:errcheck
	})
	inner.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok") // nolint:errcheck
	})
	inner.HandleFunc("GET /api/v1/projects/{project}/pending-versions", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, r.PathValue("project")) // nolint:errcheck
	})

	serve := func(h http.Handler, target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	t.Run("empty prefix serves at root", func(t *testing.T) {
		t.Parallel()

		h := mountUnderPrefix(inner, "")

		rec := serve(h, "/healthz")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())

		// The catch-all still answers paths that look prefixed.
		rec = serve(h, "/relbot/healthz")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "root", rec.Body.String())
	})

	t.Run("bare prefix redirects", func(t *testing.T) {
		t.Parallel()

		rec := serve(mountUnderPrefix(inner, "/relbot"), "/relbot")
		require.Equal(t, http.StatusMovedPermanently, rec.Code)
		assert.Equal(t, "/relbot/", rec.Header().Get("Location"))
	})

	t.Run("prefixed paths are stripped", func(t *testing.T) {
		t.Parallel()

		h := mountUnderPrefix(inner, "/relbot")

		rec := serve(h, "/relbot/healthz")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())

		rec = serve(h, "/relbot/api/v1/projects/SERVER/pending-versions")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "SERVER", rec.Body.String())
	})

	t.Run("paths outside the prefix 404", func(t *testing.T) {
		t.Parallel()

		rec := serve(mountUnderPrefix(inner, "/relbot"), "/healthz")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
