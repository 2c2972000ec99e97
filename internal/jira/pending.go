package jira

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gi8lino/relbot/internal/pending"
	"github.com/gi8lino/relbot/internal/version"
)

// MaxSearchResults caps the pending-versions search. There is no pagination.
const MaxSearchResults = 5000

// guardMaxRetries bounds how often the guard restarts a mutation after a conflict.
const guardMaxRetries = 3

var _ Session = (*JiraSession)(nil)

// errUnknownCapability guards against a binding state added without handling it here.
var errUnknownCapability = errors.New("unknown pending versions capability")

func defaultGuardBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	return bo
}

// AddPendingVersion adds versionText to the issue's pending versions.
// It is a no-op when pending versions are disabled.
func (s *JiraSession) AddPendingVersion(ctx context.Context, key, versionText string) error {
	b := s.fields.PendingVersions
	switch b.State {
	case Disabled:
		return nil
	case Enabled:
		v, ok := version.Parse(versionText)
		if !ok {
			return &ValidationError{Value: versionText}
		}
		return s.updatePendingVersions(ctx, "add pending version "+v.String()+" to", key, b.ID,
			func(current []version.Version) []version.Version {
				return append(current, v)
			})
	default:
		return fmt.Errorf("%w: %v", errUnknownCapability, b.State)
	}
}

// RemovePendingVersions drops every pending version equal to one of versions.
// It is a no-op when pending versions are disabled.
func (s *JiraSession) RemovePendingVersions(ctx context.Context, key string, versions []version.Version) error {
	b := s.fields.PendingVersions
	switch b.State {
	case Disabled:
		return nil
	case Enabled:
		op := fmt.Sprintf("remove pending versions [%s] from", strings.Join(version.Strings(versions), ", "))
		return s.updatePendingVersions(ctx, op, key, b.ID,
			func(current []version.Version) []version.Version {
				kept := current[:0]
				for _, v := range current {
					if !version.Contains(versions, v) {
						kept = append(kept, v)
					}
				}
				return kept
			})
	default:
		return fmt.Errorf("%w: %v", errUnknownCapability, b.State)
	}
}

// updatePendingVersions runs fetch, decode, mutate, encode, write.
//
// Without the guard this is last-write-wins: two concurrent mutations of the same
// issue can interleave and the later write drops the earlier change. With the guard
// the field is re-read before writing and the cycle restarts when it changed.
func (s *JiraSession) updatePendingVersions(
	ctx context.Context,
	op, key, fieldID string,
	mutate func([]version.Version) []version.Version,
) error {
	if !s.guard {
		_, err := s.readModifyWrite(ctx, op, key, fieldID, mutate)
		return err
	}

	attempt := func() error {
		stale, err := s.readModifyWrite(ctx, op, key, fieldID, mutate)
		if err != nil {
			return backoff.Permanent(err)
		}
		if stale {
			s.logger.Debug("pending versions changed concurrently, retrying", "issue", key)
			return ErrConcurrentUpdate
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), guardMaxRetries), ctx)
	err := backoff.Retry(attempt, policy)
	if errors.Is(err, ErrConcurrentUpdate) {
		return wrap(op, key, err)
	}
	return err
}

// readModifyWrite performs one cycle. It reports stale=true without writing when the
// guard is on and the field changed after it was read.
func (s *JiraSession) readModifyWrite(
	ctx context.Context,
	op, key, fieldID string,
	mutate func([]version.Version) []version.Version,
) (stale bool, err error) {
	issue, err := s.GetIssue(ctx, key)
	if err != nil {
		return false, err
	}
	before, _ := issue.Fields.String(fieldID)
	value := pending.Encode(mutate(pending.Decode(before)))

	if s.guard {
		current, err := s.GetIssue(ctx, key)
		if err != nil {
			return false, err
		}
		if now, _ := current.Fields.String(fieldID); now != before {
			return true, nil
		}
	}

	req := updateRequest(fieldID, "set", value)
	if err := s.transport.PutVoid(ctx, issuePath(key), req); err != nil {
		return false, wrap(op, key, err)
	}
	return false, nil
}

// FindPendingVersions returns the pending versions of every issue in project that
// has at least one parseable pending version. The search is a single bounded query.
func (s *JiraSession) FindPendingVersions(ctx context.Context, project string) (map[string][]version.Version, error) {
	b := s.fields.PendingVersions
	switch b.State {
	case Disabled:
		return map[string][]version.Version{}, nil
	case Enabled:
		field := b.Name
		if field == "" {
			field = b.ID
		}
		jql := fmt.Sprintf("(project = %s) and %s is not EMPTY", jqlQuote(project), jqlQuote(field))
		path := fmt.Sprintf("/search?maxResults=%d&jql=%s", MaxSearchResults, url.QueryEscape(jql))

		var result SearchResult
		if err := s.transport.Get(ctx, path, &result); err != nil {
			return nil, wrap("find pending versions for project", project, err)
		}
		return CollectPendingVersions(result.Issues, b.ID), nil
	default:
		return nil, fmt.Errorf("%w: %v", errUnknownCapability, b.State)
	}
}

// CollectPendingVersions decodes fieldID on each issue. Issues without a key or without
// any parseable version are left out.
func CollectPendingVersions(issues []Issue, fieldID string) map[string][]version.Version {
	out := make(map[string][]version.Version, len(issues))
	for _, issue := range issues {
		text, _ := issue.Fields.String(fieldID)
		list := pending.Decode(text)
		if issue.Key == "" || len(list) == 0 {
			continue
		}
		out[issue.Key] = list
	}
	return out
}

// jqlQuote wraps s in double quotes for use in JQL.
func jqlQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
