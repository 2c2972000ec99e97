package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the relbot configuration file.
type Config struct {
	Jira    JiraConfig    `yaml:"jira"`
	Release ReleaseConfig `yaml:"release"`
}

// JiraConfig describes the Jira server and how relbot uses its fields.
type JiraConfig struct {
	Host                            string        `yaml:"host"`        // host name or full URL
	Username                        string        `yaml:"username"`    // basic auth user
	Password                        string        `yaml:"password"`    // basic auth password or resolver reference
	BearerToken                     string        `yaml:"bearerToken"` // replaces username/password when set
	FixVersionsField                string        `yaml:"fixVersionsField"`
	PendingVersionsField            string        `yaml:"pendingVersionsField"` // empty disables pending versions
	RestrictCommentVisibilityToRole string        `yaml:"restrictCommentVisibilityToRole"`
	PendingVersionsGuard            bool          `yaml:"pendingVersionsGuard"`
	Timeout                         time.Duration `yaml:"timeout"`
	SkipTLSVerify                   bool          `yaml:"skipTLSVerify"`
}

// ReleaseConfig tunes the release merge.
type ReleaseConfig struct {
	Concurrency     int    `yaml:"concurrency"`     // issues updated in parallel
	CommentTemplate string `yaml:"commentTemplate"` // text/template with sprig functions
}

// BaseURL returns the server root without a trailing slash. https is assumed when
// the host has no scheme.
func (c JiraConfig) BaseURL() string {
	host := strings.TrimSpace(c.Host)
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return strings.TrimRight(host, "/")
}

// APIURL returns the REST API v2 root.
func (c JiraConfig) APIURL() (*url.URL, error) {
	u, err := url.Parse(c.BaseURL() + "/rest/api/2")
	if err != nil {
		return nil, fmt.Errorf("parse jira host %q: %w", c.Host, err)
	}
	return u, nil
}

// SessionURL returns the login check endpoint.
func (c JiraConfig) SessionURL() string {
	return c.BaseURL() + "/rest/auth/1/session"
}
