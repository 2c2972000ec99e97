package jira_test

import (
	"net/http"
	"testing"

	"github.com/gi8lino/relbot/internal/jira"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBasicAuth(t *testing.T) {
	t.Parallel()

	req, _ := http.NewRequest(http.MethodGet, "https://jira.example.com", nil)
	jira.NewBasicAuth(" relbot ", " s3cret ")(req)

	username, password, ok := req.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "relbot", username)
	assert.Equal(t, "s3cret", password)
}

func TestNewBearerAuth(t *testing.T) {
	t.Parallel()

	req, _ := http.NewRequest(http.MethodGet, "https://jira.example.com", nil)
	jira.NewBearerAuth("  pat-123  ")(req)

	assert.Equal(t, "Bearer pat-123", req.Header.Get("Authorization"))
}

func TestResolveAuth(t *testing.T) {
	t.Parallel()

	t.Run("bearer wins over basic", func(t *testing.T) {
		t.Parallel()

		auth, method, err := jira.ResolveAuth("pat", "relbot", "pw")
		require.NoError(t, err)
		assert.Equal(t, "Bearer", method)

		req, _ := http.NewRequest(http.MethodGet, "https://jira.example.com", nil)
		auth(req)
		assert.Equal(t, "Bearer pat", req.Header.Get("Authorization"))
	})

	t.Run("basic with username and password", func(t *testing.T) {
		t.Parallel()

		auth, method, err := jira.ResolveAuth("", "relbot", "pw")
		require.NoError(t, err)
		assert.Equal(t, "Basic", method)

		req, _ := http.NewRequest(http.MethodGet, "https://jira.example.com", nil)
		auth(req)
		user, pass, ok := req.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "relbot", user)
		assert.Equal(t, "pw", pass)
	})

	t.Run("username without password", func(t *testing.T) {
		t.Parallel()

		auth, method, err := jira.ResolveAuth("", "relbot", "")
		assert.Error(t, err)
		assert.Nil(t, auth)
		assert.Empty(t, method)
	})
}
