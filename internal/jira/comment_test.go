package jira_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/gi8lino/relbot/internal/jira"
	"github.com/gi8lino/relbot/internal/jira/jiramock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commentSession returns a session commenting as role whose logs end up in the buffer.
func commentSession(t *testing.T, role string) (*harness, *jira.JiraSession, *bytes.Buffer) {
	t.Helper()

	h := newHarness(t, testSeed(), jira.Options{})
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s, err := jira.NewSession(context.Background(), h.client, jira.Options{CommentVisibilityRole: role}, logger)
	require.NoError(t, err)
	return h, s, &buf
}

func commentPosts(m *jiramock.Server, key string) []jiramock.Request {
	var out []jiramock.Request
	for _, r := range m.Writes() {
		if r.Method == http.MethodPost && r.Path == "/issue/"+key+"/comment" {
			out = append(out, r)
		}
	}
	return out
}

func TestCommentIssue(t *testing.T) {
	t.Parallel()

	t.Run("restricted comment succeeds first time", func(t *testing.T) {
		t.Parallel()

		h, s, logs := commentSession(t, "Developers")
		require.NoError(t, s.CommentIssue(context.Background(), "SERVER-1", "Included in version 1.2"))

		posts := commentPosts(h.mock, "SERVER-1")
		require.Len(t, posts, 1)
		assert.JSONEq(t, `{"body":"Included in version 1.2","visibility":{"type":"role","value":"Developers"}}`, posts[0].Body)
		assert.Equal(t, []jiramock.Comment{{Body: "Included in version 1.2", Visibility: "Developers"}}, h.mock.Comments("SERVER-1"))
		assert.NotContains(t, logs.String(), "level=WARN")
	})

	t.Run("unknown role falls back to public", func(t *testing.T) {
		t.Parallel()

		h, s, logs := commentSession(t, "Managers")
		require.NoError(t, s.CommentIssue(context.Background(), "SERVER-1", "hello"))

		posts := commentPosts(h.mock, "SERVER-1")
		require.Len(t, posts, 2)
		assert.JSONEq(t, `{"body":"hello","visibility":{"type":"role","value":"Managers"}}`, posts[0].Body)
		assert.JSONEq(t, `{"body":"hello"}`, posts[1].Body)
		assert.Equal(t, []jiramock.Comment{{Body: "hello"}}, h.mock.Comments("SERVER-1"))

		out := logs.String()
		assert.Contains(t, out, "level=WARN")
		assert.Contains(t, out, `msg="restricted comment failed, posting it publicly"`)
		assert.Contains(t, out, "issue=SERVER-1")
		assert.Contains(t, out, "role=Managers")
	})

	t.Run("no role posts once without visibility", func(t *testing.T) {
		t.Parallel()

		h, s, _ := commentSession(t, "")
		require.NoError(t, s.CommentIssue(context.Background(), "SERVER-1", "hi"))

		posts := commentPosts(h.mock, "SERVER-1")
		require.Len(t, posts, 1)
		assert.NotContains(t, posts[0].Body, "visibility")
	})

	t.Run("no role failure is not retried", func(t *testing.T) {
		t.Parallel()

		h, s, _ := commentSession(t, "")
		h.mock.FailNext(http.MethodPost, "/issue/SERVER-1/comment", http.StatusInternalServerError)

		err := s.CommentIssue(context.Background(), "SERVER-1", "hi")
		var te *jira.TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "comment on", te.Op)
		assert.Len(t, commentPosts(h.mock, "SERVER-1"), 1)
	})

	t.Run("second attempt error is returned", func(t *testing.T) {
		t.Parallel()

		h, s, _ := commentSession(t, "Developers")
		h.mock.FailNext(http.MethodPost, "/issue/SERVER-1/comment", http.StatusInternalServerError)
		h.mock.FailNext(http.MethodPost, "/issue/SERVER-1/comment", http.StatusForbidden)

		err := s.CommentIssue(context.Background(), "SERVER-1", "hi")

		var se *jira.StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusForbidden, se.StatusCode)
		assert.Len(t, commentPosts(h.mock, "SERVER-1"), 2)
		assert.Empty(t, h.mock.Comments("SERVER-1"))
	})

	t.Run("missing issue falls back then fails", func(t *testing.T) {
		t.Parallel()

		h, s, _ := commentSession(t, "Developers")
		err := s.CommentIssue(context.Background(), "SERVER-99", "hi")
		assert.True(t, jira.IsNotFound(err))
		assert.Len(t, commentPosts(h.mock, "SERVER-99"), 2)
	})
}
