package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/lambdalocal/gateway/internal/gateway"
	"github.com/lambdalocal/gateway/internal/invoke"
	"github.com/lambdalocal/gateway/internal/metrics"
	"github.com/lambdalocal/gateway/internal/observability"
	"github.com/lambdalocal/gateway/internal/provider"
	"github.com/lambdalocal/gateway/internal/template"
	"github.com/lambdalocal/gateway/internal/watch"
)

type options struct {
	templatePath     string
	host             string
	port             int
	logLevel         string
	logFormat        string
	watchTemplate    bool
	enableMetrics    bool
	binaryMediaTypes []string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "localgw",
		Short: "Serve a template's HTTP-triggered functions through a local gateway",
		Long: `localgw resolves a serverless template into a route table and serves it
locally, translating HTTP requests into function invocation events.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.templatePath, "template", "t", "template.yaml", "path to the template file")
	flags.StringVar(&opts.host, "host", "127.0.0.1", "address to bind")
	flags.IntVarP(&opts.port, "port", "p", 3000, "port to bind")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "console", "log format (console, json)")
	flags.BoolVar(&opts.watchTemplate, "watch", false, "rebuild the route table when the template changes")
	flags.BoolVar(&opts.enableMetrics, "metrics", false, "expose Prometheus metrics on /metrics")
	flags.StringSliceVar(&opts.binaryMediaTypes, "binary-media-type", nil,
		"template-wide default binary media type (repeatable)")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  opts.logLevel,
		Format: opts.logFormat,
		Output: "stderr",
	})
	if err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	registry := prometheus.NewRegistry()
	gatewayMetrics := metrics.New(registry)

	builder := provider.NewBuilder(
		provider.NewLocalReader(logger),
		logger,
		provider.WithDefaultBinaryMediaTypes(opts.binaryMediaTypes),
	)
	templateDir := filepath.Dir(opts.templatePath)

	buildTable := func() (*provider.Table, error) {
		tmpl, err := template.Load(opts.templatePath)
		if err != nil {
			return nil, err
		}
		return builder.Build(tmpl, templateDir)
	}

	// A build failure here is an unrecoverable configuration error: exit
	// before binding the port.
	table, err := buildTable()
	if err != nil {
		return fmt.Errorf("failed to build route table: %w", err)
	}

	service := gateway.NewService(invoke.EchoRunner(), logger, gateway.WithMetrics(gatewayMetrics))
	service.InstallTable(table)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.watchTemplate {
		watcher, err := watch.New(opts.templatePath, func() error {
			rebuilt, err := buildTable()
			if err != nil {
				gatewayMetrics.ObserveRebuild("error", 0)
				return err
			}
			service.InstallTable(rebuilt)
			return nil
		}, watch.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("failed to create template watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start template watcher: %w", err)
		}
		defer watcher.Stop()
	}

	serverOpts := gateway.DefaultOptions()
	serverOpts.Host = opts.host
	serverOpts.Port = opts.port
	serverOpts.Metrics = opts.enableMetrics
	serverOpts.Registry = registry

	server := gateway.NewServer(service, serverOpts, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	}
}
