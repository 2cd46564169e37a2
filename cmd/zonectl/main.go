// Command zonectl is the external shard-placement controller's process
// entrypoint: it loads operator configuration, wires a cluster HTTP
// client, and drives the reconciliation orchestrator on a 30-second tick
// until a shutdown signal arrives.
//
// Usage:
//
//	zonectl -config /etc/zonectl/policy.yaml
//
// Exit codes:
//   - 0: clean shutdown via SIGINT/SIGTERM
//   - 1: fatal startup error (config load, initial settings push)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/dreamware/zonectl/internal/clusterapi"
	"github.com/dreamware/zonectl/internal/config"
	"github.com/dreamware/zonectl/internal/controller"
)

const tickInterval = 30 * time.Second

func main() {
	os.Exit(run())
}

// run is factored out of main so tests can exercise argument/exit-code
// plumbing without actually calling os.Exit.
func run() int {
	fs := flag.NewFlagSet("zonectl", flag.ContinueOnError)
	configPath := fs.String("config", "zonectl.yaml", "path to the operator configuration file")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return 1
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "zonectl",
		Level: hclog.LevelFromString(getenv("ZONECTL_LOG_LEVEL", "info")),
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	baseURL := fmt.Sprintf("http://%s:%d", cfg.Elasticsearch.Host, cfg.Elasticsearch.Port)
	client := clusterapi.NewHTTPClient(baseURL)

	orch := controller.New(client, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startCtx, startCancel := context.WithTimeout(ctx, 30*time.Second)
	defer startCancel()
	if err := orch.Start(startCtx); err != nil {
		logger.Error("failed to apply startup cluster settings", "error", err)
		return 1
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-stop
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	logger.Info("zonectl started", "tick_interval", tickInterval, "elasticsearch", baseURL)
	orch.Run(ctx, tickInterval)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := orch.Stop(stopCtx); err != nil {
		logger.Error("failed to apply finally commands on exit", "error", err)
	}

	logger.Info("zonectl stopped")
	return 0
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
