// Package cmdutils carries the shared scaffolding for the CLI commands:
// config loading, logger initialisation and the common run wrapper.
package cmdutils

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	slogctx "github.com/veqryn/slog-context"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/config"
)

// CobraCommand wraps a business entrypoint into a cobra command with config
// loading and logger setup in front of it.
func CobraCommand(
	use, short, long, buildInfo string,
	businessFunc func(context.Context, *config.Config) error,
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(buildInfo)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if err := Run(cmd.Context(), businessFunc, cfg); err != nil {
				return fmt.Errorf("running %s: %w", use, err)
			}

			return nil
		},
	}
}

// Run initialises logging and hands control to the business function.
func Run(ctx context.Context, fn func(context.Context, *config.Config) error, cfg *config.Config) error {
	if err := InitLogger(cfg); err != nil {
		return oops.In("main").
			Wrapf(err, "Failed to initialise the logger")
	}

	slogctx.Debug(ctx, "Starting the application", slog.Any("config", cfg))

	if err := fn(ctx, cfg); err != nil {
		return oops.In("main").
			Wrapf(err, "Failed to start the main business application")
	}

	return nil
}

// LoadConfig reads the configuration from the usual directories and stamps
// the build version into it.
func LoadConfig(buildInfo string) (*config.Config, error) {
	cfg := &config.Config{}

	if err := config.Load(
		cfg,
		"/etc/loan-lounge",
		"$HOME/.loan-lounge",
		".",
	); err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	cfg.Application.Version = VersionFromBuildInfo(buildInfo)

	return cfg, nil
}

// VersionFromBuildInfo pulls the version out of the build system's JSON
// blob. Anything unparseable is used as the version string verbatim.
func VersionFromBuildInfo(buildInfo string) string {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(buildInfo), &decoded); err == nil {
		if version, ok := decoded["version"].(string); ok {
			return version
		}
		return ""
	}

	return strings.TrimSpace(buildInfo)
}

// InitLogger installs the process-wide slog default as configured, wrapped
// so context attributes travel with every record.
func InitLogger(cfg *config.Config) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logger.Level)); err != nil {
		return fmt.Errorf("parsing log level %q: %w", cfg.Logger.Level, err)
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Logger.Format) {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(slogctx.NewHandler(handler, nil)))

	return nil
}
