package templates

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/gi8lino/relbot/internal/version"
)

// DefaultComment is posted on every issue included in a release.
const DefaultComment = "Included in version {{ .Version }}"

// CommentData is the data available to comment templates.
type CommentData struct {
	Version string   // released version, e.g. "1.2.3"
	Issue   string   // issue key
	Project string   // project key
	Merged  []string // pending versions merged into Version, ascending
}

// Comment is a parsed comment template.
type Comment struct {
	tmpl *template.Template
}

// TemplateFuncMap returns sprig's text functions plus the version helpers.
func TemplateFuncMap() template.FuncMap {
	fm := sprig.TxtFuncMap()
	fm["releaseLine"] = releaseLine
	return fm
}

// releaseLine returns "1.2" for "1.2.3". The input is returned unchanged when it
// is not a version.
func releaseLine(s string) string {
	v, ok := version.Parse(s)
	if !ok {
		return s
	}
	return v.Prefix().String()
}

// ParseComment parses text as a comment template. Referencing an unknown field fails
// at render time.
func ParseComment(text string) (*Comment, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultComment
	}
	tmpl, err := template.New("comment").
		Funcs(TemplateFuncMap()).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse comment template: %w", err)
	}
	return &Comment{tmpl: tmpl}, nil
}

// Render executes the template with data.
func (c *Comment) Render(data CommentData) (string, error) {
	var sb strings.Builder
	if err := c.tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render comment for %s: %w", data.Issue, err)
	}
	return strings.TrimSpace(sb.String()), nil
}
