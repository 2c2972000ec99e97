// Package release merges pending versions into a released version and keeps the
// project's version list ordered.
package release

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/gi8lino/relbot/internal/jira"
	"github.com/gi8lino/relbot/internal/templates"
	"github.com/gi8lino/relbot/internal/version"
	"golang.org/x/sync/errgroup"
)

// Report describes what a merge did, or would do on a dry run.
type Report struct {
	Version string              `json:"version"` // name of the Jira version the issues were assigned to
	Created bool                `json:"created"` // the Jira version did not exist before
	DryRun  bool                `json:"dryRun"`
	Issues  map[string][]string `json:"issues"` // issue key → merged pending versions
	Failed  []string            `json:"failed,omitempty"`
}

// Service runs release operations against a Jira session.
type Service struct {
	session     jira.Session
	comment     *templates.Comment
	concurrency int
	logger      *slog.Logger
}

// NewService returns a Service updating at most concurrency issues in parallel.
func NewService(session jira.Session, comment *templates.Comment, concurrency int, logger *slog.Logger) *Service {
	return &Service{
		session:     session,
		comment:     comment,
		concurrency: max(concurrency, 1),
		logger:      logger,
	}
}

// MergePendingVersions releases versionText in project.
//
// Every pending version on the target's release line that is not newer than the
// target is merged into the target fix version and removed from the issue, which
// then gets the release comment. The Jira version is created
// when missing and the project's versions are sorted afterwards. Per-issue
// failures do not stop the other issues; they are joined into the returned error
// alongside the report.
func (s *Service) MergePendingVersions(ctx context.Context, project, versionText string, dryRun bool) (Report, error) {
	target, ok := version.Parse(versionText)
	if !ok {
		return Report{}, &jira.ValidationError{Value: versionText}
	}

	found, err := s.session.FindPendingVersions(ctx, project)
	if err != nil {
		return Report{}, err
	}

	selected := selectMerged(found, target)
	report := Report{
		Version: target.String(),
		DryRun:  dryRun,
		Issues:  make(map[string][]string, len(selected)),
	}
	for key, merged := range selected {
		report.Issues[key] = version.Strings(merged)
	}

	existing, err := s.findVersion(ctx, project, target)
	if err != nil {
		return report, err
	}
	if existing != nil {
		report.Version = existing.Name
	} else {
		report.Created = true
	}

	s.logger.Info("release planned",
		"project", project,
		"version", report.Version,
		"issues", len(selected),
		"create", report.Created,
		"dryRun", dryRun,
	)
	if dryRun {
		return report, nil
	}

	if report.Created {
		if err := s.session.AddVersion(ctx, project, report.Version); err != nil {
			return report, err
		}
	}

	keys := make([]string, 0, len(selected))
	for key := range selected {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	var (
		mu   sync.Mutex
		errs []error
	)
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, key := range keys {
		g.Go(func() error {
			if err := s.releaseIssue(ctx, project, key, report.Version, selected[key]); err != nil {
				s.logger.Error("release issue failed", "issue", key, "error", err)
				mu.Lock()
				errs = append(errs, err)
				report.Failed = append(report.Failed, key)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait() // nolint:errcheck
	slices.Sort(report.Failed)

	if _, err := s.SortVersions(ctx, project); err != nil {
		errs = append(errs, err)
	}
	return report, errors.Join(errs...)
}

// releaseIssue assigns the fix version, drops the merged pending versions and
// comments. It stops at the first failing step.
func (s *Service) releaseIssue(ctx context.Context, project, key, name string, merged []version.Version) error {
	if err := s.session.AssignFixVersion(ctx, key, name); err != nil {
		return err
	}
	if err := s.session.RemovePendingVersions(ctx, key, merged); err != nil {
		return err
	}

	body, err := s.comment.Render(templates.CommentData{
		Version: name,
		Issue:   key,
		Project: project,
		Merged:  version.Strings(merged),
	})
	if err != nil {
		return err
	}
	if err := s.session.CommentIssue(ctx, key, body); err != nil {
		return err
	}

	s.logger.Debug("issue released", "issue", key, "version", name, "merged", version.Strings(merged))
	return nil
}

// selectMerged keeps, per issue, the pending versions on target's release line that
// are not newer than target. Issues with nothing to merge are dropped.
func selectMerged(found map[string][]version.Version, target version.Version) map[string][]version.Version {
	out := make(map[string][]version.Version, len(found))
	for key, pending := range found {
		var merged []version.Version
		for _, v := range pending {
			if target.SameLine(v) && v.Compare(target) <= 0 {
				merged = append(merged, v)
			}
		}
		if len(merged) > 0 {
			version.Sort(merged)
			out[key] = merged
		}
	}
	return out
}

// findVersion returns the project version equal to target, or nil.
func (s *Service) findVersion(ctx context.Context, project string, target version.Version) (*jira.Version, error) {
	versions, err := s.session.GetVersions(ctx, project)
	if err != nil {
		return nil, err
	}
	for i, v := range versions {
		if pv, ok := version.Parse(v.Name); ok && pv.Equal(target) {
			return &versions[i], nil
		}
	}
	return nil, nil
}

type ranked struct {
	jira.Version
	parsed version.Version
}

// SortVersions orders the parseable versions of project ascending and returns how
// many versions were moved. Versions whose names do not parse are not moved. No
// request is sent when the order is already correct.
func (s *Service) SortVersions(ctx context.Context, project string) (int, error) {
	versions, err := s.session.GetVersions(ctx, project)
	if err != nil {
		return 0, err
	}

	var current []ranked
	for _, v := range versions {
		if pv, ok := version.Parse(v.Name); ok {
			current = append(current, ranked{Version: v, parsed: pv})
		}
	}

	sorted := slices.Clone(current)
	slices.SortStableFunc(sorted, func(a, b ranked) int { return a.parsed.Compare(b.parsed) })
	if slices.EqualFunc(current, sorted, func(a, b ranked) bool { return a.ID == b.ID }) {
		s.logger.Debug("versions already sorted", "project", project)
		return 0, nil
	}

	for i, v := range sorted {
		pos := jira.First
		if i > 0 {
			pos = jira.After(sorted[i-1].Version)
		}
		if err := s.session.ReorderVersion(ctx, v.Version, pos); err != nil {
			return i, fmt.Errorf("sort versions of %s: %w", project, err)
		}
	}

	s.logger.Info("versions sorted", "project", project, "moved", len(sorted))
	return len(sorted), nil
}
