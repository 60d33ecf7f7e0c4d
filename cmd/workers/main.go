// Command workers runs the maintenance jobs without serving HTTP. Run it
// with SCHEDULER_ENABLED=false on the API replicas so jobs fire once.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	v1 "simflow/portal-backend/api/v1"
	"simflow/portal-backend/internal/config"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	runOnce := flag.String("run", "", "run the named job once and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := v1.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect dependencies", zap.Error(err))
	}
	defer cleanup()

	app, err := v1.Build(ctx, deps)
	if err != nil {
		logger.Fatal("Failed to build application", zap.Error(err))
	}
	defer app.Close()

	if *runOnce != "" {
		status, err := app.Scheduler.RunNow(ctx, *runOnce)
		if err != nil {
			logger.Fatal("Job failed", zap.String("job", *runOnce), zap.Error(err))
		}
		logger.Info("Job finished",
			zap.String("job", status.Name),
			zap.Int("changed", status.LastCount),
			zap.String("error", status.LastError))
		return
	}

	if err := app.Scheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}
	for _, st := range app.Scheduler.Statuses() {
		logger.Info("Job scheduled", zap.String("job", st.Name), zap.String("spec", st.Spec))
	}

	<-ctx.Done()
	logger.Info("Worker shutting down")
}
