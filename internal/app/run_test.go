package app_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gi8lino/relbot/internal/app"
	"github.com/gi8lino/relbot/internal/jira"
	"github.com/gi8lino/relbot/internal/jira/jiramock"
	"github.com/gi8lino/relbot/internal/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	t.Parallel()

	dummyEnv := func(string) string { return "" }

	startJira := func(t *testing.T) string {
		t.Helper()
		mock := jiramock.New(jiramock.Seed{
			Username:    "relbot",
			Password:    "secret",
			DisplayName: "Release Bot",
			Fields: []jira.Field{
				{ID: "fixVersions", Name: "Fix Version/s"},
				{ID: "customfield_10010", Name: "Pending Versions"},
			},
		})
		srv := httptest.NewServer(mock.Handler())
		t.Cleanup(srv.Close)
		return srv.URL
	}

	writeConfig := func(t *testing.T, host, password string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "config.yaml")
		testutils.MustWriteFile(t, path, `
jira:
  host: `+host+`
  username: relbot
  password: `+password+`
  pendingVersionsField: Pending Versions
`)
		return path
	}

	t.Run("starts and stops", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(t.Context(), 500*time.Millisecond)
		defer cancel()

		args := []string{
			"--config=" + writeConfig(t, startJira(t), "secret"),
			"--listen-address=127.0.0.1:0",
			"--debug",
		}

		var out bytes.Buffer
		err := app.Run(ctx, "v1", "deadbeef", args, &out, dummyEnv)
		require.NoError(t, err)

		logs := out.String()
		assert.Contains(t, logs, `msg="Starting relbot" version=v1 commit=deadbeef`)
		assert.Contains(t, logs, `msg="Logged into JIRA" user="Release Bot"`)
		assert.Contains(t, logs, "method=Basic")
		assert.NotContains(t, logs, "cmVsYm90OnNlY3JldA==")
	})

	t.Run("help requested prints usage and returns nil", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		err := app.Run(t.Context(), "v1.2.3", "abc", []string{"--help"}, &out, dummyEnv)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Usage")
	})

	t.Run("version requested prints version and returns nil", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		err := app.Run(t.Context(), "v9.8.7", "cafebabe", []string{"--version"}, &out, dummyEnv)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "v9.8.7")
	})

	t.Run("unknown flag surfaces parsing error", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		err := app.Run(t.Context(), "vX", "yyy", []string{"--totally-unknown"}, &out, dummyEnv)
		require.Error(t, err)
		assert.EqualError(t, err, "parsing error: unknown flag: --totally-unknown")
	})

	t.Run("missing config file surfaces load error", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		args := []string{"--config=/nope/does-not-exist.yaml", "--listen-address=127.0.0.1:0"}
		err := app.Run(t.Context(), "v1", "deadbeef", args, &out, dummyEnv)
		require.Error(t, err)
		assert.EqualError(t, err, "loading config error: read config: open /nope/does-not-exist.yaml: no such file or directory")
	})

	t.Run("invalid config surfaces validation error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "config.yaml")
		testutils.MustWriteFile(t, path, "jira:\n  username: relbot\n")

		var out bytes.Buffer
		err := app.Run(t.Context(), "v1", "deadbeef", []string{"--config=" + path}, &out, dummyEnv)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validating config error: config validation failed:")
	})

	t.Run("rejected credentials stop startup", func(t *testing.T) {
		t.Parallel()

		args := []string{
			"--config=" + writeConfig(t, startJira(t), "wrong"),
			"--listen-address=127.0.0.1:0",
		}

		var out bytes.Buffer
		err := app.Run(t.Context(), "v1", "deadbeef", args, &out, dummyEnv)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jira session error: authenticate to JIRA")
	})
}
