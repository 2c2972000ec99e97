package jira

import "fmt"

// DefaultFixVersionsField is the built-in Jira field holding fix versions.
const DefaultFixVersionsField = "fixVersions"

// Capability says whether a session feature is wired to a Jira field.
type Capability int

const (
	// Disabled means the feature has no field; its operations are no-ops.
	Disabled Capability = iota
	// Enabled means the feature is bound to a resolved field.
	Enabled
)

func (c Capability) String() string {
	switch c {
	case Disabled:
		return "disabled"
	case Enabled:
		return "enabled"
	}
	return fmt.Sprintf("Capability(%d)", int(c))
}

// PendingVersionsBinding is the resolved state of the pending-versions field.
type PendingVersionsBinding struct {
	State Capability
	ID    string // canonical field id, set when Enabled
	Name  string // display name from the catalog, used in JQL
}

// FieldBindings holds the field ids resolved once at session start.
type FieldBindings struct {
	FixVersions     string
	PendingVersions PendingVersionsBinding
}

// LookupField finds ident by id or by name. First match wins; matching is case-sensitive.
func LookupField(ident string, fields []Field) (Field, bool) {
	for _, f := range fields {
		if ident == f.ID || ident == f.Name {
			return f, true
		}
	}
	return Field{}, false
}

// ResolveOutcome explains how the optional field was bound, for logging.
type ResolveOutcome int

const (
	PendingConfigured    ResolveOutcome = iota // bound to a catalog field
	PendingNotConfigured                       // no identifier configured
	PendingNotFound                            // configured but not in the catalog
)

// ResolveFields binds the configured identifiers against the catalog.
// An unresolvable fixVersions identifier is a ConfigurationError; an absent or
// unresolvable pendingVersions identifier disables the pending-versions feature.
func ResolveFields(catalog []Field, fixVersions, pendingVersions string) (FieldBindings, ResolveOutcome, error) {
	if fixVersions == "" {
		fixVersions = DefaultFixVersionsField
	}
	fix, ok := LookupField(fixVersions, catalog)
	if !ok {
		return FieldBindings{}, 0, &ConfigurationError{Field: fixVersions, Role: "fix versions"}
	}

	b := FieldBindings{FixVersions: fix.ID}
	if pendingVersions == "" {
		return b, PendingNotConfigured, nil
	}
	f, ok := LookupField(pendingVersions, catalog)
	if !ok {
		return b, PendingNotFound, nil
	}
	b.PendingVersions = PendingVersionsBinding{State: Enabled, ID: f.ID, Name: f.Name}
	return b, PendingConfigured, nil
}
