package testutils

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gi8lino/relbot/internal/jira"
	"github.com/gi8lino/relbot/internal/jira/jiramock"
)

// MustWriteFile writes data to a file or fails the test, creating parent directories if needed.
func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create directory %q: %v", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test file %q: %v", path, err)
	}
}

// Jira bundles a running mock server and a session connected to it.
type Jira struct {
	Mock    *jiramock.Server
	URL     string // server root, e.g. http://127.0.0.1:1234
	Session *jira.JiraSession
}

// StartJira serves seed on an httptest server for the lifetime of t and opens a
// session against it. The seed credentials are used for basic auth.
func StartJira(t *testing.T, seed jiramock.Seed, opts jira.Options) *Jira {
	t.Helper()

	mock := jiramock.New(seed)
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	apiURL, err := url.Parse(srv.URL + "/rest/api/2")
	if err != nil {
		t.Fatalf("parse mock url: %v", err)
	}
	client := jira.NewClient(apiURL, jira.NewBasicAuth(seed.Username, seed.Password), false, 5*time.Second)

	opts.SessionURL = srv.URL + "/rest/auth/1/session"
	session, err := jira.NewSession(context.Background(), client, opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("open jira session: %v", err)
	}

	return &Jira{Mock: mock, URL: srv.URL, Session: session}
}
