package flag_test

import (
	"strings"
	"testing"

	"github.com/containeroo/tinyflags"
	"github.com/gi8lino/relbot/internal/flag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockGetEnv keeps the caller's environment out of the tests.
func mockGetEnv(string) string { return "" }

func TestParseArgs(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		var out strings.Builder
		cfg, err := flag.ParseArgs("v1.2.3", nil, &out, mockGetEnv)
		require.NoError(t, err)

		assert.Equal(t, "config.yaml", cfg.Config)
		assert.Equal(t, ":8080", cfg.ListenAddr)
		assert.Equal(t, "text", string(cfg.LogFormat))
		assert.Equal(t, "", cfg.RoutePrefix)
		assert.False(t, cfg.Debug)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Parallel()

		args := []string{
			"--config=/etc/relbot/config.yaml",
			"--listen-address=127.0.0.1:9090",
			"--route-prefix=relbot/",
			"--debug",
			"--log-format=json",
		}
		var out strings.Builder
		cfg, err := flag.ParseArgs("dev", args, &out, mockGetEnv)
		require.NoError(t, err)

		assert.Equal(t, "/etc/relbot/config.yaml", cfg.Config)
		assert.Equal(t, "127.0.0.1:9090", cfg.ListenAddr)
		assert.Equal(t, "/relbot", cfg.RoutePrefix)
		assert.True(t, cfg.Debug)
		assert.Equal(t, "json", string(cfg.LogFormat))
	})

	t.Run("environment", func(t *testing.T) {
		t.Parallel()

		env := map[string]string{
			"RELBOT_CONFIG":     "/env/config.yaml",
			"RELBOT_LOG_FORMAT": "json",
		}
		var out strings.Builder
		cfg, err := flag.ParseArgs("dev", nil, &out, func(k string) string { return env[k] })
		require.NoError(t, err)

		assert.Equal(t, "/env/config.yaml", cfg.Config)
		assert.Equal(t, "json", string(cfg.LogFormat))
	})

	t.Run("invalid log format", func(t *testing.T) {
		t.Parallel()

		var out strings.Builder
		_, err := flag.ParseArgs("dev", []string{"--log-format=xml"}, &out, mockGetEnv)
		require.Error(t, err)
	})

	t.Run("version", func(t *testing.T) {
		t.Parallel()

		var out strings.Builder
		_, err := flag.ParseArgs("v9.9.9", []string{"--version"}, &out, mockGetEnv)
		require.Error(t, err)
		assert.True(t, tinyflags.IsVersionRequested(err))
		assert.Contains(t, err.Error(), "v9.9.9")
	})

	t.Run("help", func(t *testing.T) {
		t.Parallel()

		var out strings.Builder
		_, err := flag.ParseArgs("dev", []string{"--help"}, &out, mockGetEnv)
		require.Error(t, err)
		assert.True(t, tinyflags.IsHelpRequested(err))
	})
}
