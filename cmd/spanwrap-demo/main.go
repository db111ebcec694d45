package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"

	"github.com/u-ctf/spanwrap/instrument"
	"github.com/u-ctf/spanwrap/tracing"
)

func main() {
	var (
		configPath string
		backend    string
		exporter   string
		verbosity  int
	)

	rootCmd := &cobra.Command{
		Use:   "spanwrap-demo",
		Short: "Run decorated methods of every result shape and export their spans",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := tracing.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("backend") {
				cfg.Backend = backend
			}
			if cmd.Flags().Changed("exporter") {
				cfg.Exporter = exporter
			}

			stdr.SetVerbosity(verbosity)
			logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName("spanwrap-demo")

			return run(cmd.Context(), cfg, logger)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML tracing configuration")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", tracing.BackendOtel, "Tracing backend: otel, sentry or none")
	rootCmd.PersistentFlags().StringVar(&exporter, "exporter", tracing.ExporterStdout, "OpenTelemetry exporter: stdout, otlp or none")
	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbosity", "v", 0, "Log verbosity")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg tracing.Config, logger logr.Logger) error {
	provider, err := tracing.Setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error(err, "failed to shut down tracing")
		}
	}()

	inst := provider.Instrumenter(logger)
	catalog, err := newTracedCatalog(inst, newCatalog("alpha", "beta", "gamma"))
	if err != nil {
		return err
	}

	return instrument.Trace(ctx, inst, "spanwrap-demo.run", func(ctx context.Context) error {
		return catalog.exercise(ctx, logger)
	})
}
