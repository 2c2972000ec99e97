package jira

import "context"

type commentRequest struct {
	Body       string             `json:"body"`
	Visibility *commentVisibility `json:"visibility,omitempty"`
}

type commentVisibility struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// CommentIssue posts a comment. With a visibility role configured the comment is
// first posted restricted to that role; if that fails for any reason it is posted
// once more without restriction, and that second result is returned. The fallback
// makes the comment public, so it is logged at warn level.
func (s *JiraSession) CommentIssue(ctx context.Context, key, comment string) error {
	path := issuePath(key) + "/comment"
	req := commentRequest{Body: comment}

	if s.commentRole != "" {
		req.Visibility = &commentVisibility{Type: "role", Value: s.commentRole}
		err := s.transport.PostVoid(ctx, path, req)
		if err == nil {
			return nil
		}
		s.logger.Warn("restricted comment failed, posting it publicly",
			"issue", key,
			"role", s.commentRole,
			"error", err,
		)
		req.Visibility = nil
	}

	return wrap("comment on", key, s.transport.PostVoid(ctx, path, req))
}
