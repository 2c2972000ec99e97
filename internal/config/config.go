package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/containeroo/resolver"
	"github.com/gi8lino/relbot/internal/jira"
	"github.com/gi8lino/relbot/internal/templates"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultConcurrency = 4
)

// LoadConfig reads the config file at path, resolves secret references and
// applies defaults. Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if err := resolveSecrets(&cfg.Jira); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)

	return cfg, nil
}

// resolveSecrets expands references such as "env:JIRA_PASSWORD" or "file:/run/secret".
// Plain values are returned unchanged by the resolver.
func resolveSecrets(c *JiraConfig) error {
	secrets := []struct {
		key string
		val *string
	}{
		{"jira.host", &c.Host},
		{"jira.username", &c.Username},
		{"jira.password", &c.Password},
		{"jira.bearerToken", &c.BearerToken},
	}
	for _, s := range secrets {
		if *s.val == "" {
			continue
		}
		resolved, err := resolver.ResolveVariable(*s.val)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", s.key, err)
		}
		*s.val = resolved
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Jira.FixVersionsField == "" {
		cfg.Jira.FixVersionsField = jira.DefaultFixVersionsField
	}
	if cfg.Jira.Timeout == 0 {
		cfg.Jira.Timeout = defaultTimeout
	}
	if cfg.Release.Concurrency == 0 {
		cfg.Release.Concurrency = defaultConcurrency
	}
	if strings.TrimSpace(cfg.Release.CommentTemplate) == "" {
		cfg.Release.CommentTemplate = templates.DefaultComment
	}
}

// ValidateConfig reports every problem found in cfg at once.
func ValidateConfig(cfg Config) error {
	var errs []string

	if strings.TrimSpace(cfg.Jira.Host) == "" {
		errs = append(errs, "jira.host is required")
	} else if _, err := cfg.Jira.APIURL(); err != nil {
		errs = append(errs, err.Error())
	}

	hasBasic := cfg.Jira.Username != "" || cfg.Jira.Password != ""
	switch {
	case cfg.Jira.BearerToken != "" && hasBasic:
		errs = append(errs, "jira.bearerToken cannot be combined with jira.username/jira.password")
	case cfg.Jira.BearerToken == "" && (cfg.Jira.Username == "" || cfg.Jira.Password == ""):
		errs = append(errs, "jira.username and jira.password are required unless jira.bearerToken is set")
	}

	if cfg.Jira.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("jira.timeout must be > 0 (got %s)", cfg.Jira.Timeout))
	}
	if cfg.Release.Concurrency < 1 {
		errs = append(errs, fmt.Sprintf("release.concurrency must be >= 1 (got %d)", cfg.Release.Concurrency))
	}
	if _, err := templates.ParseComment(cfg.Release.CommentTemplate); err != nil {
		errs = append(errs, "release.commentTemplate: "+err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
