package jira

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConcurrentUpdate is returned when the pending-versions guard keeps detecting
// concurrent writes to the same issue.
var ErrConcurrentUpdate = errors.New("pending versions changed concurrently")

// ConfigurationError reports a configured field that does not exist in Jira.
type ConfigurationError struct {
	Field string // the configured id or name
	Role  string // which logical field, e.g. "fix versions"
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid JIRA %s field: %q", e.Role, e.Field)
}

// ValidationError reports caller supplied version text that cannot be parsed.
type ValidationError struct {
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("unable to parse version: %q", e.Value)
}

// TransportError annotates a failed Jira call with the operation and its target.
type TransportError struct {
	Op     string // e.g. "get issue"
	Target string // issue key, project or version
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Target, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is returned by the Client for non-2xx responses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Messages   []string // errorMessages and errors extracted from a Jira error body
}

func (e *StatusError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("jira API error (%d) on %s %s: %s", e.StatusCode, e.Method, e.URL, strings.Join(e.Messages, "; "))
	}
	return fmt.Sprintf("unexpected status %d on %s %s: %s", e.StatusCode, e.Method, e.URL, e.Body)
}

// IsNotFound reports whether err carries a 404 from Jira.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == 404
}

// wrap builds a TransportError, or returns nil for a nil err.
func wrap(op, target string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Target: target, Err: err}
}
