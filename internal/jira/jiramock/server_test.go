package jiramock_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/gi8lino/relbot/internal/jira/jiramock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func loadSeed(t *testing.T) jiramock.Seed {
	t.Helper()

	raw, err := os.ReadFile("testdata/seed.yaml")
	require.NoError(t, err)

	var seed jiramock.Seed
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	require.NoError(t, dec.Decode(&seed))
	return seed
}

type client struct {
	t   *testing.T
	srv *httptest.Server
}

func newClient(t *testing.T, seed jiramock.Seed) (*jiramock.Server, *client) {
	t.Helper()

	mock := jiramock.New(seed)
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)
	return mock, &client{t: t, srv: srv}
}

func (c *client) do(method, path, body string) (int, string) {
	c.t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, r)
	require.NoError(c.t, err)
	req.SetBasicAuth("relbot", "secret")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close() // nolint:errcheck

	b, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, string(b)
}

func TestSeedDecoding(t *testing.T) {
	t.Parallel()

	seed := loadSeed(t)
	assert.Equal(t, "Release Bot", seed.DisplayName)
	require.Len(t, seed.Fields, 3)
	assert.Equal(t, "customfield_10010", seed.Fields[2].ID)
	assert.True(t, seed.Fields[2].Custom)
	require.Len(t, seed.Projects, 1)
	assert.True(t, seed.Projects[0].Versions[0].Released)
	assert.Equal(t, "1.1.1, 1.2", seed.Issues[0].Fields["customfield_10010"])
}

func TestAuth(t *testing.T) {
	t.Parallel()

	_, c := newClient(t, loadSeed(t))

	status, body := c.do(http.MethodGet, "/rest/auth/1/session", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"name":"Release Bot"}`, body)

	resp, err := http.Get(c.srv.URL + "/rest/api/2/field")
	require.NoError(t, err)
	resp.Body.Close() // nolint:errcheck
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSearch(t *testing.T) {
	t.Parallel()

	_, c := newClient(t, loadSeed(t))
	search := func(jql string, limit int) (int, map[string]any) {
		q := url.Values{"jql": {jql}}
		if limit > 0 {
			q.Set("maxResults", strconv.Itoa(limit))
		}
		status, body := c.do(http.MethodGet, "/rest/api/2/search?"+q.Encode(), "")
		var out map[string]any
		require.NoError(t, json.Unmarshal([]byte(body), &out))
		return status, out
	}

	t.Run("matches non empty field", func(t *testing.T) {
		t.Parallel()

		status, out := search(`(project = "SERVER") and "Pending Versions" is not EMPTY`, 0)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, out["issues"], 2)
	})

	t.Run("limit", func(t *testing.T) {
		t.Parallel()

		status, out := search(`(project = "SERVER") and "customfield_10010" is not EMPTY`, 1)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, out["issues"], 1)
	})

	t.Run("unsupported jql", func(t *testing.T) {
		t.Parallel()

		status, out := search(`project = SERVER`, 0)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.NotEmpty(t, out["errorMessages"])
	})

	t.Run("unknown field", func(t *testing.T) {
		t.Parallel()

		status, _ := search(`(project = "SERVER") and "Nope" is not EMPTY`, 0)
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestUpdateIssue(t *testing.T) {
	t.Parallel()

	t.Run("unknown field", func(t *testing.T) {
		t.Parallel()

		_, c := newClient(t, loadSeed(t))
		status, body := c.do(http.MethodPut, "/rest/api/2/issue/SERVER-1", `{"update":{"customfield_1":[{"set":"x"}]}}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, body, "Field does not exist")
	})

	t.Run("fix version must exist", func(t *testing.T) {
		t.Parallel()

		_, c := newClient(t, loadSeed(t))
		status, body := c.do(http.MethodPut, "/rest/api/2/issue/SERVER-1", `{"update":{"fixVersions":[{"add":{"name":"9.9"}}]}}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, body, "version name '9.9' is not valid")
	})

	t.Run("fix version add is idempotent", func(t *testing.T) {
		t.Parallel()

		mock, c := newClient(t, loadSeed(t))
		for range 2 {
			status, _ := c.do(http.MethodPut, "/rest/api/2/issue/SERVER-1", `{"update":{"fixVersions":[{"add":{"name":"1.1"}}]}}`)
			require.Equal(t, http.StatusNoContent, status)
		}
		v, _ := mock.Field("SERVER-1", "fixVersions")
		assert.Len(t, v, 1)
	})
}

func TestMoveVersion(t *testing.T) {
	t.Parallel()

	t.Run("unknown version", func(t *testing.T) {
		t.Parallel()

		_, c := newClient(t, loadSeed(t))
		status, _ := c.do(http.MethodPost, "/rest/api/2/version/1/move", `{"position":"First"}`)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("after needs a locator", func(t *testing.T) {
		t.Parallel()

		mock, c := newClient(t, loadSeed(t))
		status, _ := c.do(http.MethodPost, "/rest/api/2/version/10001/move", `{"after":"10002"}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, []string{"1.0", "1.1"}, mock.VersionNames("SERVER"))
	})

	t.Run("missing position", func(t *testing.T) {
		t.Parallel()

		_, c := newClient(t, loadSeed(t))
		status, _ := c.do(http.MethodPost, "/rest/api/2/version/10001/move", `{}`)
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestFailNext(t *testing.T) {
	t.Parallel()

	mock, c := newClient(t, loadSeed(t))
	mock.FailNext(http.MethodGet, "/issue/SERVER-1", http.StatusServiceUnavailable)

	status, _ := c.do(http.MethodGet, "/rest/api/2/issue/SERVER-1", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = c.do(http.MethodGet, "/rest/api/2/issue/SERVER-1", "")
	assert.Equal(t, http.StatusOK, status)

	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "/issue/SERVER-1", reqs[0].Path)
	assert.Empty(t, mock.Writes())
}
