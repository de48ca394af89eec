package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/aid-distribution/ticket-api/internal/adapters/httpapi"
	"github.com/aid-distribution/ticket-api/internal/app/distribution"
	platformclock "github.com/aid-distribution/ticket-api/internal/platform/clock"
	"github.com/aid-distribution/ticket-api/internal/platform/config"
	"github.com/aid-distribution/ticket-api/internal/platform/metrics"
	"github.com/aid-distribution/ticket-api/internal/platform/obs"
	"github.com/aid-distribution/ticket-api/internal/platform/storage"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	flagSet := pflag.NewFlagSet("api", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.Port, "port", cfg.Port, "TCP port to listen on (env PORT)")
	flagSet.StringVar(&cfg.Storage, "storage", cfg.Storage, "record store backend: file|memory|s3|postgres (env STORAGE_BACKEND)")
	flagSet.StringVar(&cfg.RecordsFile, "records-file", cfg.RecordsFile, "CSV register path for the file backend (env RECORDS_FILE)")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := obs.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := platformclock.NewSystemClock()
	stores, err := storage.Open(ctx, cfg, clk)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer stores.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svc := distribution.NewService(stores.Records, logger, m)
	if report, err := svc.Validate(ctx); err != nil {
		// The register may legitimately appear later; requests report the failure until then.
		logger.Warn("record store not usable at startup", "location", svc.Location(), "err", err)
	} else if !report.OK() {
		logger.Warn("record store has schema problems",
			"location", report.Location,
			"missing_columns", report.MissingColumns,
			"duplicate_tickets", report.DuplicateTickets,
		)
	}

	api := httpapi.NewServer(svc, stores.Idempotency, clk)
	api.Logger = logger
	api.Metrics = m

	handler := httpapi.NewRouterWithOptions(api, httpapi.RouterOptions{
		Logger:         logger,
		MetricsHandler: metrics.Handler(reg),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("api listening", "addr", srv.Addr, "storage", cfg.Storage, "location", svc.Location())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
		close(listenErr)
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
