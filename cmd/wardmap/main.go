// Package main provides the wardmap binary entry point.
// Wardmap joins electoral ward populations to county boundaries, prints
// the aggregates and renders a choropleth map.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/wardmap/config"
	"github.com/c360studio/wardmap/metrics"
	"github.com/c360studio/wardmap/pipeline"
	"github.com/c360studio/wardmap/publish"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "wardmap"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// flags are shared by every subcommand.
type flags struct {
	configPath string
	logLevel   string
	counties   string
	wards      string
	output     string
	targetCRS  string
}

func rootCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Ward population choropleth for Northern Ireland",
		Long: `Wardmap loads county boundaries and electoral wards, reprojects both
to UTM zone 29N, joins each ward's representative point to the county
that contains it, prints population totals by county and by ward, and
renders a choropleth map to a PNG file.

Configuration is read from ~/.config/wardmap/config.yaml, then wardmap.yaml
in the current or a parent directory, then --config. Flags override all.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, f, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "Config file path (YAML)")
	pf.StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&f.counties, "counties", "", "County boundaries shapefile (glob allowed)")
	pf.StringVar(&f.wards, "wards", "", "Ward shapefile (glob allowed)")
	pf.StringVarP(&f.output, "output", "o", "", "Output PNG path")
	pf.StringVar(&f.targetCRS, "target-crs", "", "Projected CRS for the join and map (e.g. EPSG:32629)")

	cmd.AddCommand(watchCmd(f))
	cmd.AddCommand(configCmd(f))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func run(ctx context.Context, f *flags, stdout, stderr io.Writer) error {
	logger := newLogger(f.logLevel, stderr)

	cfg, err := loadConfig(f, logger)
	if err != nil {
		return err
	}

	p, closeFn, err := newPipeline(cfg, logger, stdout)
	if err != nil {
		return err
	}
	defer closeFn()

	_, err = p.Run(ctx)
	return err
}

func newLogger(level string, w io.Writer) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

// loadConfig applies the config file layers, then the flags, and validates.
func loadConfig(f *flags, logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.NewLoader(logger).Load(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if f.counties != "" {
		cfg.Inputs.Counties.Path = f.counties
	}
	if f.wards != "" {
		cfg.Inputs.Wards.Path = f.wards
	}
	if f.output != "" {
		cfg.Render.Output = f.output
	}
	if f.targetCRS != "" {
		cfg.TargetCRS = f.targetCRS
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newPipeline builds a pipeline with metrics and publishing enabled when
// the config asks for them. The returned func releases the NATS connection.
func newPipeline(cfg *config.Config, logger *slog.Logger, stdout io.Writer) (*pipeline.Pipeline, func(), error) {
	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithStdout(stdout),
	}
	if cfg.Metrics.Textfile != "" {
		opts = append(opts, pipeline.WithMetrics(metrics.NewRecorder()))
	}

	closeFn := func() {}
	if cfg.NATS.URL != "" {
		pub, err := publish.Connect(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Publishing reports", "url", cfg.NATS.URL, "subject", pub.Subject())
		opts = append(opts, pipeline.WithPublisher(pub))
		closeFn = func() {
			if err := pub.Close(); err != nil {
				logger.Warn("Failed to close NATS connection", "error", err)
			}
		}
	}

	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return p, closeFn, nil
}
