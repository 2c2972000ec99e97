// Package jiramock is an in-memory Jira REST server for tests and local runs.
//
// It serves the subset of /rest/api/2 relbot talks to, keeps every issue, version
// and comment in memory and records each request it receives.
package jiramock

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/gi8lino/relbot/internal/jira"
)

// Seed is the initial server state. It is usually loaded from YAML.
type Seed struct {
	Username    string        `yaml:"username"`    // required basic auth user; empty disables auth checks
	Password    string        `yaml:"password"`    // required basic auth password
	DisplayName string        `yaml:"displayName"` // name returned by the session endpoint
	Roles       []string      `yaml:"roles"`       // project roles valid for comment visibility
	Fields      []jira.Field  `yaml:"fields"`
	Projects    []SeedProject `yaml:"projects"`
	Issues      []SeedIssue   `yaml:"issues"`
}

// SeedProject lists the versions of a project in their initial order.
type SeedProject struct {
	Key      string        `yaml:"key"`
	Versions []SeedVersion `yaml:"versions"`
}

// SeedVersion is one project version.
type SeedVersion struct {
	Name     string `yaml:"name"`
	Released bool   `yaml:"released"`
}

// SeedIssue is one issue with its raw fields.
type SeedIssue struct {
	Key         string           `yaml:"key"`
	Status      string           `yaml:"status"`
	Transitions []SeedTransition `yaml:"transitions"`
	Fields      map[string]any   `yaml:"fields"`
}

// SeedTransition is a workflow edge available on an issue.
type SeedTransition struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	To   string `yaml:"to"`
}

// Request is a recorded request.
type Request struct {
	Method string
	Path   string // path relative to /rest/api/2, or the full path for other APIs
	Query  string
	Body   string
}

// Comment is a stored comment. Visibility is the role name or empty for public.
type Comment struct {
	Body       string
	Visibility string
}

type issue struct {
	key         string
	project     string
	status      string
	transitions []SeedTransition
	fields      map[string]any
	comments    []Comment
}

type version struct {
	id       string
	name     string
	project  string
	released bool
}

type failure struct {
	method string
	path   string
	status int
}

// Server is the mock. The zero value is not usable; use New.
type Server struct {
	mu          sync.Mutex
	seed        Seed
	roles       map[string]bool
	issues      map[string]*issue
	versions    map[string][]*version // project → ordered versions
	nextVersion int
	requests    []Request
	failures    []failure
	hook        func(Request)
}

// New builds a server from seed.
func New(seed Seed) *Server {
	s := &Server{
		seed:        seed,
		roles:       map[string]bool{},
		issues:      map[string]*issue{},
		versions:    map[string][]*version{},
		nextVersion: 10000,
	}
	for _, r := range seed.Roles {
		s.roles[r] = true
	}
	for _, p := range seed.Projects {
		for _, v := range p.Versions {
			s.addVersion(p.Key, v.Name, v.Released)
		}
	}
	for _, si := range seed.Issues {
		fields := map[string]any{}
		for k, v := range si.Fields {
			fields[k] = v
		}
		s.issues[si.Key] = &issue{
			key:         si.Key,
			project:     projectOf(si.Key),
			status:      si.Status,
			transitions: si.Transitions,
			fields:      fields,
		}
	}
	return s
}

// projectOf returns "ABC" for "ABC-12".
func projectOf(key string) string {
	if i := strings.LastIndex(key, "-"); i > 0 {
		return key[:i]
	}
	return key
}

func (s *Server) addVersion(project, name string, released bool) *version {
	s.nextVersion++
	v := &version{id: strconv.Itoa(s.nextVersion), name: name, project: project, released: released}
	s.versions[project] = append(s.versions[project], v)
	return v
}

// Handler returns the HTTP handler serving the mock API.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /field", s.handleFields)
	api.HandleFunc("GET /issue/{key}", s.handleGetIssue)
	api.HandleFunc("PUT /issue/{key}", s.handleUpdateIssue)
	api.HandleFunc("GET /issue/{key}/transitions", s.handleGetTransitions)
	api.HandleFunc("POST /issue/{key}/transitions", s.handleTransition)
	api.HandleFunc("POST /issue/{key}/comment", s.handleComment)
	api.HandleFunc("POST /version", s.handleAddVersion)
	api.HandleFunc("GET /project/{project}/versions", s.handleGetVersions)
	api.HandleFunc("POST /version/{id}/move", s.handleMoveVersion)
	api.HandleFunc("GET /search", s.handleSearch)

	root := http.NewServeMux()
	root.HandleFunc("GET /rest/auth/1/session", s.handleSession)
	root.Handle("/rest/api/2/", http.StripPrefix("/rest/api/2", api))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		req := Request{
			Method: r.Method,
			Path:   strings.TrimPrefix(r.URL.Path, "/rest/api/2"),
			Query:  r.URL.RawQuery,
			Body:   string(body),
		}

		s.mu.Lock()
		s.requests = append(s.requests, req)
		hook := s.hook
		status := s.takeFailure(req)
		s.mu.Unlock()

		if hook != nil {
			hook(req)
		}
		if !s.authorized(r) {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if status != 0 {
			writeError(w, status, fmt.Sprintf("injected failure for %s %s", req.Method, req.Path))
			return
		}
		root.ServeHTTP(w, r)
	})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.seed.Username == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	return ok && user == s.seed.Username && pass == s.seed.Password
}

// takeFailure pops the first injected failure matching req. Caller holds mu.
func (s *Server) takeFailure(req Request) int {
	for i, f := range s.failures {
		if f.method == req.Method && f.path == req.Path {
			s.failures = slices.Delete(s.failures, i, i+1)
			return f.status
		}
	}
	return 0
}

// FailNext makes the next request matching method and path fail with status.
// path is relative to /rest/api/2, e.g. "/issue/ABC-1/comment".
func (s *Server) FailNext(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{method: method, path: path, status: status})
}

// OnRequest registers fn to run for every request before it is served.
func (s *Server) OnRequest(fn func(Request)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = fn
}

// Requests returns the recorded requests.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// Writes returns the recorded requests that are not GETs.
func (s *Server) Writes() []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Method != http.MethodGet {
			out = append(out, r)
		}
	}
	return out
}

// Comments returns the comments of an issue.
func (s *Server) Comments(key string) []Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if is, ok := s.issues[key]; ok {
		return slices.Clone(is.comments)
	}
	return nil
}

// Field returns the raw value of a field on an issue.
func (s *Server) Field(key, id string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	is, ok := s.issues[key]
	if !ok {
		return nil, false
	}
	v, ok := is.fields[id]
	return v, ok
}

// SetField overwrites a field on an issue, simulating an edit by someone else.
func (s *Server) SetField(key, id string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if is, ok := s.issues[key]; ok {
		is.fields[id] = value
	}
}

// Status returns the workflow status of an issue.
func (s *Server) Status(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if is, ok := s.issues[key]; ok {
		return is.status
	}
	return ""
}

// VersionNames returns the version names of project in their current order.
func (s *Server) VersionNames(project string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, v := range s.versions[project] {
		out = append(out, v.name)
	}
	return out
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	name := s.seed.DisplayName
	if name == "" {
		name = s.seed.Username
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name})
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.seed.Fields)
}

func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	is, ok := s.issues[r.PathValue("key")]
	if !ok {
		writeError(w, http.StatusNotFound, "Issue Does Not Exist")
		return
	}
	writeJSON(w, http.StatusOK, s.renderIssue(r, is))
}

// renderIssue builds the JSON shape of an issue. Caller holds mu.
func (s *Server) renderIssue(r *http.Request, is *issue) map[string]any {
	fields := map[string]any{}
	for k, v := range is.fields {
		fields[k] = v
	}
	fields["project"] = map[string]string{"key": is.project}
	if is.status != "" {
		fields["status"] = map[string]string{"name": is.status}
	}
	return map[string]any{
		"key":    is.key,
		"self":   baseURL(r) + "/rest/api/2/issue/" + is.key,
		"fields": fields,
	}
}

type update struct {
	Update map[string][]map[string]any `json:"update"`
	Fields map[string]any              `json:"fields"`
}

func (s *Server) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
	var req update
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	is, ok := s.issues[r.PathValue("key")]
	if !ok {
		writeError(w, http.StatusNotFound, "Issue Does Not Exist")
		return
	}

	for id, v := range req.Fields {
		is.fields[id] = v
	}
	for id, ops := range req.Update {
		if _, known := jira.LookupField(id, s.seed.Fields); !known {
			writeFieldError(w, id, "Field does not exist")
			return
		}
		for _, op := range ops {
			for verb, value := range op {
				switch verb {
				case "set":
					is.fields[id] = value
				case "add":
					if err := s.addToField(is, id, value); err != nil {
						writeFieldError(w, id, err.Error())
						return
					}
				default:
					writeFieldError(w, id, "unsupported operation "+verb)
					return
				}
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// addToField appends value to a multi-value field. fixVersions entries are resolved
// by name against the issue's project, like Jira does. Caller holds mu.
func (s *Server) addToField(is *issue, id string, value any) error {
	current, _ := is.fields[id].([]any)

	if id == jira.DefaultFixVersionsField {
		ref, _ := value.(map[string]any)
		name, _ := ref["name"].(string)
		v := s.findVersion(is.project, name)
		if v == nil {
			return fmt.Errorf("version name '%s' is not valid", name)
		}
		for _, c := range current {
			if m, ok := c.(map[string]any); ok && m["name"] == name {
				return nil
			}
		}
		value = map[string]any{"id": v.id, "name": v.name}
	}
	is.fields[id] = append(current, value)
	return nil
}

// findVersion looks a version up by name. Caller holds mu.
func (s *Server) findVersion(project, name string) *version {
	for _, v := range s.versions[project] {
		if v.name == name {
			return v
		}
	}
	return nil
}

func (s *Server) handleGetTransitions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	is, ok := s.issues[r.PathValue("key")]
	if !ok {
		writeError(w, http.StatusNotFound, "Issue Does Not Exist")
		return
	}
	out := make([]jira.Transition, 0, len(is.transitions))
	for _, t := range is.transitions {
		out = append(out, jira.Transition{ID: t.ID, Name: t.Name, To: &jira.Status{Name: t.To}})
	}
	writeJSON(w, http.StatusOK, map[string]any{"transitions": out})
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req jira.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	is, ok := s.issues[r.PathValue("key")]
	if !ok {
		writeError(w, http.StatusNotFound, "Issue Does Not Exist")
		return
	}
	for _, t := range is.transitions {
		if (req.Transition.ID != "" && t.ID == req.Transition.ID) || (req.Transition.ID == "" && t.Name == req.Transition.Name) {
			is.status = t.To
			if req.Fields != nil && req.Fields.Resolution != nil {
				is.fields["resolution"] = map[string]string{"name": req.Fields.Resolution.Name}
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeFieldError(w, "transition", "Transition is not valid")
}

type commentBody struct {
	Body       string `json:"body"`
	Visibility *struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"visibility"`
}

func (s *Server) handleComment(w http.ResponseWriter, r *http.Request) {
	var req commentBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	is, ok := s.issues[r.PathValue("key")]
	if !ok {
		writeError(w, http.StatusNotFound, "Issue Does Not Exist")
		return
	}
	c := Comment{Body: req.Body}
	if req.Visibility != nil {
		if req.Visibility.Type != "role" || !s.roles[req.Visibility.Value] {
			writeFieldError(w, "commentLevel", fmt.Sprintf("Role level '%s' is not valid", req.Visibility.Value))
			return
		}
		c.Visibility = req.Visibility.Value
	}
	is.comments = append(is.comments, c)
	writeJSON(w, http.StatusCreated, map[string]string{"body": c.Body})
}

func (s *Server) handleAddVersion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Project string `json:"project"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findVersion(req.Project, req.Name) != nil {
		writeFieldError(w, "name", "A version with this name already exists in this project.")
		return
	}
	v := s.addVersion(req.Project, req.Name, false)
	writeJSON(w, http.StatusCreated, s.renderVersion(r, v))
}

// renderVersion builds the JSON shape of a version. Caller holds mu.
func (s *Server) renderVersion(r *http.Request, v *version) jira.Version {
	return jira.Version{
		ID:       v.id,
		Name:     v.name,
		Locator:  baseURL(r) + "/rest/api/2/version/" + v.id,
		Released: v.released,
	}
}

func (s *Server) handleGetVersions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []jira.Version{}
	for _, v := range s.versions[r.PathValue("project")] {
		out = append(out, s.renderVersion(r, v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMoveVersion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position string `json:"position"`
		After    string `json:"after"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	project, idx := s.locateVersion(r.PathValue("id"))
	if idx < 0 {
		writeError(w, http.StatusNotFound, "Version does not exist")
		return
	}
	list := slices.Clone(s.versions[project])
	moved := list[idx]
	list = slices.Delete(list, idx, idx+1)

	switch {
	case req.Position == "First":
		list = slices.Insert(list, 0, moved)
	case req.After != "":
		anchorID := req.After[strings.LastIndex(req.After, "/")+1:]
		at := slices.IndexFunc(list, func(v *version) bool { return v.id == anchorID })
		if at < 0 || !strings.Contains(req.After, "/version/") {
			writeFieldError(w, "after", "Version to move after does not exist")
			return
		}
		list = slices.Insert(list, at+1, moved)
	default:
		writeFieldError(w, "position", "position or after is required")
		return
	}
	s.versions[project] = list
	writeJSON(w, http.StatusOK, s.renderVersion(r, moved))
}

// locateVersion finds a version by id. Caller holds mu.
func (s *Server) locateVersion(id string) (string, int) {
	for project, list := range s.versions {
		for i, v := range list {
			if v.id == id {
				return project, i
			}
		}
	}
	return "", -1
}

var pendingJQL = regexp.MustCompile(`^\(project = "((?:[^"\\]|\\.)*)"\) and "((?:[^"\\]|\\.)*)" is not EMPTY$`)

func unquoteJQL(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	return strings.ReplaceAll(s, `\\`, `\`)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	m := pendingJQL.FindStringSubmatch(q.Get("jql"))
	if m == nil {
		writeError(w, http.StatusBadRequest, "unsupported JQL: "+q.Get("jql"))
		return
	}
	limit, err := strconv.Atoi(q.Get("maxResults"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	project := unquoteJQL(m[1])
	field, ok := jira.LookupField(unquoteJQL(m[2]), s.seed.Fields)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Field '%s' does not exist", m[2]))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.issues))
	for k := range s.issues {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	issues := []map[string]any{}
	for _, k := range keys {
		is := s.issues[k]
		text, _ := is.fields[field.ID].(string)
		if is.project != project || text == "" {
			continue
		}
		if len(issues) == limit {
			break
		}
		issues = append(issues, s.renderIssue(r, is))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"startAt":    0,
		"maxResults": limit,
		"total":      len(issues),
		"issues":     issues,
	})
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) // nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"errorMessages": []string{msg}, "errors": map[string]string{}})
}

func writeFieldError(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"errorMessages": []string{}, "errors": map[string]string{field: msg}})
}
