package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gi8lino/relbot/internal/config"
	"github.com/gi8lino/relbot/internal/flag"
	"github.com/gi8lino/relbot/internal/jira"
	"github.com/gi8lino/relbot/internal/logging"
	"github.com/gi8lino/relbot/internal/release"
	"github.com/gi8lino/relbot/internal/server"
	"github.com/gi8lino/relbot/internal/templates"
	"github.com/gi8lino/relbot/internal/utils"

	"github.com/containeroo/tinyflags"
)

// Run starts relbot and blocks until ctx is canceled or a signal arrives.
func Run(ctx context.Context, version, commit string, args []string, w io.Writer, getEnv func(string) string) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	flags, err := flag.ParseArgs(version, args, w, getEnv)
	if err != nil {
		if tinyflags.IsHelpRequested(err) || tinyflags.IsVersionRequested(err) {
			fmt.Fprint(w, err.Error()) // nolint:errcheck
			return nil
		}
		return fmt.Errorf("parsing error: %w", err)
	}

	logger := logging.SetupLogger(flags.LogFormat, flags.Debug, w)
	logger.Info("Starting relbot", "version", version, "commit", commit)

	cfg, err := config.LoadConfig(flags.Config)
	if err != nil {
		return fmt.Errorf("loading config error: %w", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("validating config error: %w", err)
	}

	auth, method, err := jira.ResolveAuth(cfg.Jira.BearerToken, cfg.Jira.Username, cfg.Jira.Password)
	if err != nil {
		return err
	}
	logger.Debug("jira auth",
		"method", method,
		"header", utils.ObfuscateHeader(utils.GetAuthorizationHeader(auth)),
	)

	apiURL, err := cfg.Jira.APIURL()
	if err != nil {
		return err
	}
	client := jira.NewClient(apiURL, auth, cfg.Jira.SkipTLSVerify, cfg.Jira.Timeout)

	session, err := jira.NewSession(ctx, client, jira.Options{
		SessionURL:            cfg.Jira.SessionURL(),
		FixVersionsField:      cfg.Jira.FixVersionsField,
		PendingVersionsField:  cfg.Jira.PendingVersionsField,
		CommentVisibilityRole: cfg.Jira.RestrictCommentVisibilityToRole,
		PendingVersionsGuard:  cfg.Jira.PendingVersionsGuard,
	}, logger)
	if err != nil {
		return fmt.Errorf("jira session error: %w", err)
	}

	comment, err := templates.ParseComment(cfg.Release.CommentTemplate)
	if err != nil {
		return err
	}
	releaser := release.NewService(session, comment, cfg.Release.Concurrency, logger)

	router := server.NewRouter(session, releaser, flags.RoutePrefix, logger, flags.Debug)
	if err := server.RunHTTPServer(ctx, router, flags.ListenAddr, logger); err != nil {
		logger.Error("HTTP server exited with error", "error", err)
		return err
	}
	return nil
}
