package jira

import (
	"encoding/json"
	"fmt"
)

// Field is one entry of the Jira field catalog.
type Field struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Custom bool   `json:"custom,omitempty"`
}

// SearchResult represents the top-level structure from the JIRA search API
type SearchResult struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// Issue represents a single Jira issue.
type Issue struct {
	ID     string `json:"id,omitempty"`
	Key    string `json:"key"`
	Self   string `json:"self,omitempty"`
	Fields Fields `json:"fields"`
}

// Fields holds the typed subset of issue fields relbot reads plus every raw field
// keyed by field id, so custom fields can be looked up by their resolved id.
type Fields struct {
	Summary     string    `json:"summary"`
	Status      *Status   `json:"status"`
	Project     *Project  `json:"project"`
	FixVersions []Version `json:"fixVersions"`

	raw map[string]json.RawMessage
}

// UnmarshalJSON decodes the typed fields and keeps all raw values.
func (f *Fields) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode issue fields: %w", err)
	}

	type plain Fields // drops methods to avoid recursion
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode issue fields: %w", err)
	}

	*f = Fields(p)
	f.raw = raw
	return nil
}

// MarshalJSON writes all raw fields with the typed ones layered on top.
func (f Fields) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f.raw)+4)
	for k, v := range f.raw {
		out[k] = v
	}
	if f.Summary != "" {
		out["summary"] = f.Summary
	}
	if f.Status != nil {
		out["status"] = f.Status
	}
	if f.Project != nil {
		out["project"] = f.Project
	}
	if f.FixVersions != nil {
		out["fixVersions"] = f.FixVersions
	}
	return json.Marshal(out)
}

// Raw returns the undecoded value of the field with the given id.
func (f Fields) Raw(id string) (json.RawMessage, bool) {
	v, ok := f.raw[id]
	return v, ok
}

// String returns the value of a text field. It reports false when the field is
// absent, null or not a string.
func (f Fields) String(id string) (string, bool) {
	v, ok := f.raw[id]
	if !ok || string(v) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false // numbers, arrays, objects
	}
	return s, true
}

// SetRaw stores a raw field value; used when building issues by hand.
func (f *Fields) SetRaw(id string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode field %s: %w", id, err)
	}
	if f.raw == nil {
		f.raw = map[string]json.RawMessage{}
	}
	f.raw[id] = b
	return nil
}

// Status represents the status field of the issue
type Status struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Project is the project reference embedded in an issue.
type Project struct {
	ID   string `json:"id,omitempty"`
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
}

// Version is a Jira project version. Locator is the resource URL ("self") that the
// move API expects when anchoring relative positions; it is not the id.
type Version struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Locator     string `json:"self"`
	Released    bool   `json:"released"`
	Archived    bool   `json:"archived,omitempty"`
	ReleaseDate string `json:"releaseDate,omitempty"`
	ProjectID   int64  `json:"projectId,omitempty"`
}

// Transition is a workflow edge available on an issue.
type Transition struct {
	ID     string                     `json:"id"`
	Name   string                     `json:"name"`
	To     *Status                    `json:"to,omitempty"`
	Fields map[string]TransitionField `json:"fields,omitempty"`
}

// TransitionField describes a field shown on the transition screen.
type TransitionField struct {
	Name          string            `json:"name"`
	Required      bool              `json:"required"`
	AllowedValues []json.RawMessage `json:"allowedValues,omitempty"`
}

// IDOrName references a Jira entity by id or by name.
type IDOrName struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// TransitionRequest is the body of POST /issue/{key}/transitions.
type TransitionRequest struct {
	Transition IDOrName          `json:"transition"`
	Fields     *TransitionFields `json:"fields,omitempty"`
}

// TransitionFields carries the fields set while transitioning.
type TransitionFields struct {
	Resolution *IDOrName `json:"resolution,omitempty"`
}
