package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/wardmap/shapefile"
	"github.com/c360studio/wardmap/watch"
)

func watchCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run once, then re-run whenever the input shapefiles change",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := newLogger(f.logLevel, cmd.ErrOrStderr())
			cfg, err := loadConfig(f, logger)
			if err != nil {
				return err
			}

			inputs := make([]string, 0, 2)
			for _, pattern := range []string{cfg.Inputs.Counties.Path, cfg.Inputs.Wards.Path} {
				path, err := shapefile.Resolve(pattern)
				if err != nil {
					return fmt.Errorf("watch inputs: %w", err)
				}
				inputs = append(inputs, path)
			}

			p, closeFn, err := newPipeline(cfg, logger, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer closeFn()

			if _, err := p.Run(ctx); err != nil {
				logger.Error("Initial run failed", "error", err)
			}

			w, err := watch.New(inputs, cfg.Watch.Debounce, func(ctx context.Context, changed []string) {
				logger.Info("Inputs changed", "files", changed)
				if _, err := p.Run(ctx); err != nil {
					logger.Error("Run failed", "error", err)
				}
			}, logger)
			if err != nil {
				return err
			}
			return w.Run(ctx)
		},
	}
}
