package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boltlab/tripmatch/internal/aggregation"
	corecfg "github.com/boltlab/tripmatch/internal/core/config"
	"github.com/boltlab/tripmatch/internal/core/retry"
	"github.com/boltlab/tripmatch/internal/core/storage/postgres"
	"github.com/boltlab/tripmatch/internal/ingestion"
	"github.com/boltlab/tripmatch/internal/matcher"
	"github.com/boltlab/tripmatch/internal/migrations"
	"github.com/boltlab/tripmatch/internal/notifier"
	"github.com/boltlab/tripmatch/internal/projection"
	"github.com/boltlab/tripmatch/internal/server"
	"github.com/boltlab/tripmatch/internal/sink"
)

func main() {
	configPath := flag.String("config", "tripmatch.yaml", "Path to configuration file")
	aggregateOnce := flag.Bool("aggregate", false, "Run one aggregation pass and exit")
	aggregateDate := flag.String("date", "", "Target date for -aggregate (YYYY-MM-DD, default yesterday UTC)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	db, err := postgres.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := migrations.RunMigrations(db, cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	partials, err := postgres.NewPartialsAdapter(db)
	if err != nil {
		slog.Error("Failed to initialize partials store", "error", err)
		os.Exit(1)
	}
	defer partials.Close()

	completed, err := postgres.NewCompletedAdapter(db)
	if err != nil {
		slog.Error("Failed to initialize completions store", "error", err)
		os.Exit(1)
	}
	defer completed.Close()

	metricsSink := sink.NewFileSystem(cfg.Aggregation.OutputDir)
	aggJob := aggregation.NewJob(completed, metricsSink, aggregation.JobParameter{
		PageSize:    cfg.Aggregation.PageSize,
		WorkerCount: cfg.Aggregation.WorkerCount,
	})

	// One-shot mode: compute a single partition and exit. Failures are
	// fatal here; the operator reruns the same date.
	if *aggregateOnce {
		date := *aggregateDate
		if date == "" {
			date = aggregation.TargetDate(time.Now())
		}
		if _, err := aggJob.ComputeDailyMetrics(context.Background(), date); err != nil {
			slog.Error("Aggregation run failed", "date", date, "error", err)
			os.Exit(1)
		}
		return
	}

	// Validated in config.Load, so parse errors cannot happen here.
	invocationBudget, _ := cfg.Matcher.ParsedInvocationBudget()
	storeBackoff, _ := cfg.Matcher.ParsedStoreBackoff()
	deleteBackoff, _ := cfg.Matcher.ParsedDeleteBackoff()
	aggInterval, _ := cfg.Aggregation.ParsedInterval()

	notifications := notifier.NewInMemory(cfg.Matcher.QueueCapacity)
	defer notifications.Close()

	matcherSvc := matcher.NewService(partials, completed,
		retry.Policy{MaxAttempts: cfg.Matcher.StoreMaxAttempts, Backoff: storeBackoff},
		retry.Policy{MaxAttempts: cfg.Matcher.DeleteMaxAttempts, Backoff: deleteBackoff},
	)
	pool := matcher.NewWorkerPool(matcherSvc, notifications, cfg.Matcher.WorkerCount, invocationBudget)

	ingestionSvc := ingestion.NewService(partials, notifications, cfg.Server.MaxBodySizeMB)
	projectionSvc := projection.NewService(partials, completed, metricsSink)

	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), db, cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)
	projectionSvc.RegisterRoutes(srv.Engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := pool.Run(ctx); err != nil {
			slog.Error("Matcher pool stopped with error", "error", err)
		}
	}()

	if cfg.Aggregation.Enabled {
		scheduler := aggregation.NewScheduler(aggInterval, aggJob)
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Aggregation scheduler disabled by config")
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
