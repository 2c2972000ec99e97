package jira

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/cenkalti/backoff/v4"
	"github.com/gi8lino/relbot/internal/version"
)

// Session is the set of Jira operations relbot needs.
type Session interface {
	GetIssue(ctx context.Context, key string) (*Issue, error)
	GetTransitions(ctx context.Context, key string) ([]Transition, error)
	TransitionIssue(ctx context.Context, key string, req TransitionRequest) error

	CommentIssue(ctx context.Context, key, comment string) error

	AddVersion(ctx context.Context, project, name string) error
	GetVersions(ctx context.Context, project string) ([]Version, error)
	AssignFixVersion(ctx context.Context, key, name string) error
	ReorderVersion(ctx context.Context, v Version, pos VersionPosition) error

	AddPendingVersion(ctx context.Context, key, versionText string) error
	RemovePendingVersions(ctx context.Context, key string, versions []version.Version) error
	FindPendingVersions(ctx context.Context, project string) (map[string][]version.Version, error)
}

// Options configures a JiraSession.
type Options struct {
	SessionURL            string // absolute login-check URL; skipped when empty
	FixVersionsField      string // id or name, defaults to fixVersions
	PendingVersionsField  string // id or name, empty disables pending versions
	CommentVisibilityRole string // restrict comments to this project role
	PendingVersionsGuard  bool   // re-check the field before writing it

	// GuardBackOff builds the retry policy used by the guard. Defaults to exponential.
	GuardBackOff func() backoff.BackOff
}

// JiraSession implements Session over a Transport.
// It keeps no state besides the field bindings resolved in NewSession.
type JiraSession struct {
	transport   Transport
	fields      FieldBindings
	commentRole string
	guard       bool
	logger      *slog.Logger

	newBackOff func() backoff.BackOff // guard retry policy
}

// authResponse is the body of GET /rest/auth/1/session.
type authResponse struct {
	Name string `json:"name"`
}

// NewSession confirms the credentials, fetches the field catalog once and
// resolves the configured fields.
func NewSession(ctx context.Context, t Transport, opts Options, logger *slog.Logger) (*JiraSession, error) {
	if opts.SessionURL != "" {
		var auth authResponse
		if err := t.Get(ctx, opts.SessionURL, &auth); err != nil {
			return nil, fmt.Errorf("authenticate to JIRA: %w", err)
		}
		logger.Info("Logged into JIRA", "user", auth.Name)
	}

	var catalog []Field
	if err := t.Get(ctx, "/field", &catalog); err != nil {
		return nil, wrap("get fields", "catalog", err)
	}

	bindings, outcome, err := ResolveFields(catalog, opts.FixVersionsField, opts.PendingVersionsField)
	if err != nil {
		return nil, err
	}

	switch outcome {
	case PendingNotConfigured:
		logger.Debug("pending versions disabled", "reason", "no field configured")
	case PendingNotFound:
		logger.Warn("pending versions disabled", "reason", "field not found", "field", opts.PendingVersionsField)
	case PendingConfigured:
		logger.Debug("pending versions field", "id", bindings.PendingVersions.ID, "name", bindings.PendingVersions.Name)
	}
	logger.Debug("fix versions field", "id", bindings.FixVersions)

	newBackOff := opts.GuardBackOff
	if newBackOff == nil {
		newBackOff = defaultGuardBackOff
	}

	return &JiraSession{
		transport:   t,
		fields:      bindings,
		commentRole: opts.CommentVisibilityRole,
		guard:       opts.PendingVersionsGuard,
		logger:      logger,
		newBackOff:  newBackOff,
	}, nil
}

// Fields returns the bindings resolved at construction.
func (s *JiraSession) Fields() FieldBindings { return s.fields }

func issuePath(key string) string {
	return "/issue/" + url.PathEscape(key)
}

// GetIssue fetches a single issue by key.
func (s *JiraSession) GetIssue(ctx context.Context, key string) (*Issue, error) {
	var issue Issue
	if err := s.transport.Get(ctx, issuePath(key), &issue); err != nil {
		return nil, wrap("get issue", key, err)
	}
	return &issue, nil
}

// GetTransitions lists the transitions available on an issue, including their screen fields.
func (s *JiraSession) GetTransitions(ctx context.Context, key string) ([]Transition, error) {
	var resp struct {
		Transitions []Transition `json:"transitions"`
	}
	if err := s.transport.Get(ctx, issuePath(key)+"/transitions?expand=transitions.fields", &resp); err != nil {
		return nil, wrap("get transitions for", key, err)
	}
	return resp.Transitions, nil
}

// TransitionIssue executes a workflow transition.
func (s *JiraSession) TransitionIssue(ctx context.Context, key string, req TransitionRequest) error {
	return wrap("transition", key, s.transport.PostVoid(ctx, issuePath(key)+"/transitions", req))
}

// AddVersion creates a version in project. Jira rejects duplicates; callers check first.
func (s *JiraSession) AddVersion(ctx context.Context, project, name string) error {
	req := struct {
		Name    string `json:"name"`
		Project string `json:"project"`
	}{Name: name, Project: project}
	return wrap("add version "+name+" to project", project, s.transport.PostVoid(ctx, "/version", req))
}

// GetVersions lists the versions of a project in Jira's order.
func (s *JiraSession) GetVersions(ctx context.Context, project string) ([]Version, error) {
	var versions []Version
	if err := s.transport.Get(ctx, "/project/"+url.PathEscape(project)+"/versions", &versions); err != nil {
		return nil, wrap("get versions for project", project, err)
	}
	return versions, nil
}

// AssignFixVersion adds a fix version by name, keeping the ones already set.
func (s *JiraSession) AssignFixVersion(ctx context.Context, key, name string) error {
	req := updateRequest(s.fields.FixVersions, "add", map[string]string{"name": name})
	return wrap("add fix version "+name+" to", key, s.transport.PutVoid(ctx, issuePath(key), req))
}

// ReorderVersion moves v to pos within its project.
func (s *JiraSession) ReorderVersion(ctx context.Context, v Version, pos VersionPosition) error {
	path := "/version/" + url.PathEscape(v.ID) + "/move"
	return wrap("reorder version", v.Name, s.transport.PostVoid(ctx, path, pos.body()))
}

// updateRequest builds {"update": {field: [{op: value}]}}.
func updateRequest(field, op string, value any) map[string]any {
	return map[string]any{
		"update": map[string]any{
			field: []map[string]any{{op: value}},
		},
	}
}

// VersionPosition is the target of a version move: First, or After an anchor version.
type VersionPosition struct {
	anchor *Version
}

// First moves a version to the head of the project's version order.
var First = VersionPosition{}

// After moves a version directly behind anchor.
func After(anchor Version) VersionPosition {
	return VersionPosition{anchor: &anchor}
}

// Anchor returns the anchor version of an After position.
func (p VersionPosition) Anchor() (Version, bool) {
	if p.anchor == nil {
		return Version{}, false
	}
	return *p.anchor, true
}

func (p VersionPosition) String() string {
	if p.anchor == nil {
		return "First"
	}
	return "After(" + p.anchor.Name + ")"
}

// body is the move request. The API anchors by locator, not by id.
func (p VersionPosition) body() map[string]string {
	if p.anchor == nil {
		return map[string]string{"position": "First"}
	}
	return map[string]string{"after": p.anchor.Locator}
}
