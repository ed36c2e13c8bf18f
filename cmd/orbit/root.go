package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/njsecure/orbit/config"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configFile string
	logLevel   string
	logFormat  string
	output     string
}

// app is the state commands share once the root pre-run has loaded the
// configuration.
type app struct {
	flags  globalFlags
	cfg    *config.Config
	logger *slog.Logger
	tp     *sdktrace.TracerProvider
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "orbit",
		Short: "Ingest threat-intelligence sources into a validated graph",
		Long: `orbit fetches ATT&CK and D3FEND data, validates every object against the
source's schema profile, checks relationship integrity against an allow-list
of known (source type, relationship, target type) triples, and reports the
accepted graph with its diagnostics.

Examples:
  orbit ingest attack                      # ingest the configured ATT&CK bundle
  orbit ingest attack=./bundle.json d3fend # several sources concurrently
  orbit triples learn attack=./trusted.json
  orbit doctor`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.flags.configFile, "config", "", "Path to config file (default: ./"+config.DefaultFile+" if present)")
	f.StringVar(&a.flags.logLevel, "log-level", "", "Log level (debug|info|warn|error), overrides the config")
	f.StringVar(&a.flags.logFormat, "log-format", "", "Log format (text|json), overrides the config")
	f.StringVarP(&a.flags.output, "output", "o", formatText, "Output format (text|json)")

	cmd.AddCommand(
		newIngestCmd(a),
		newTriplesCmd(a),
		newSourcesCmd(a),
		newWorkerCmd(a),
		newDoctorCmd(a),
		newConfigCmd(a),
	)
	return cmd
}

// Execute runs root with SIGINT and SIGTERM cancelling the context.
func Execute(ctx context.Context, root *cobra.Command) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return root.ExecuteContext(ctx)
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.flags.output != formatText && a.flags.output != formatJSON {
		return newCLIError(exitConfigError, fmt.Sprintf("unknown output format %q", a.flags.output))
	}

	cfg, err := config.Load(a.flags.configFile)
	if err != nil {
		return err
	}
	if a.flags.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(a.flags.logLevel)
	}
	if a.flags.logFormat != "" {
		cfg.Logging.Format = strings.ToLower(a.flags.logFormat)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = newLogger(cmd.ErrOrStderr(), cfg.Logging)
	slog.SetDefault(a.logger)

	if cfg.Telemetry.Tracing {
		a.tp = newTracerProvider(cfg.Telemetry.ServiceName, a.logger)
	}
	return nil
}

func (a *app) teardown(cmd *cobra.Command, _ []string) error {
	if a.tp == nil {
		return nil
	}
	if err := a.tp.Shutdown(context.WithoutCancel(cmd.Context())); err != nil {
		a.logger.Warn("failed to shut down tracer provider", "error", err)
	}
	return nil
}

func (a *app) printer(cmd *cobra.Command) printer {
	return printer{w: cmd.OutOrStdout(), format: a.flags.output}
}

func newLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == formatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
