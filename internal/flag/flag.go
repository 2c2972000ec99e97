package flag

import (
	"io"
	"net"

	"github.com/containeroo/tinyflags"
	"github.com/gi8lino/relbot/internal/logging"
	"github.com/gi8lino/relbot/internal/utils"
)

// Config holds the parsed command line.
type Config struct {
	ListenAddr  string            // HTTP bind address (e.g. ":8080")
	Debug       bool              // Enables debug logging
	LogFormat   logging.LogFormat // Log output format (text or json)
	Config      string            // Path to config file
	RoutePrefix string            // Canonical path prefix ("" or "/relbot")
}

// ParseArgs parses CLI arguments into Config, handling version/help flags.
// Every flag can also be set through a RELBOT_ prefixed environment variable.
func ParseArgs(version string, args []string, out io.Writer, getEnv func(string) string) (Config, error) {
	var cfg Config
	tf := tinyflags.NewFlagSet("relbot", tinyflags.ContinueOnError)
	tf.Version(version)
	tf.SetGetEnvFn(getEnv)
	tf.EnvPrefix("RELBOT")
	tf.SetOutput(out)

	// Server
	tf.StringVar(&cfg.Config, "config", "config.yaml", "Path to config file").Value()

	route := tf.String("route-prefix", "", "Path prefix to mount the app (e.g., /relbot). Empty = root.").
		Finalize(func(input string) string {
			return utils.NormalizeRoutePrefix(input)
		}).
		Placeholder("PATH").
		Value()

	listenAddr := tf.TCPAddr("listen-address", &net.TCPAddr{IP: nil, Port: 8080}, "HTTP server listen address").
		Placeholder("ADDR:PORT").
		Value()

	// Logging
	tf.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging").Value()
	logFormat := tf.String("log-format", "text", "Log format").Choices("text", "json").Short("l").Value()

	if err := tf.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.LogFormat = logging.LogFormat(*logFormat)
	cfg.ListenAddr = (*listenAddr).String()
	cfg.RoutePrefix = *route

	return cfg, nil
}
