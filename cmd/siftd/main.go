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
	"time"

	"sift_client/internal/app/service"
	"sift_client/internal/infrastructure/configloader"
	"sift_client/internal/infrastructure/network/client"
	"sift_client/internal/infrastructure/restapi"
	"sift_client/internal/pkg/logger"
	"sift_client/internal/pkg/metrics"
	"sift_client/internal/pkg/notify"
	"sift_client/internal/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const (
	defaultConfigPath = "config/config.yml"
	shutdownTimeout   = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tempZapLogger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to initialize temporary zapLogger: %v\n", err)
		os.Exit(1)
	}

	cfgPath := utils.GetEnv("CONFIG_PATH", defaultConfigPath)
	cfg, err := configloader.Load(cfgPath)
	if err != nil {
		tempZapLogger.Fatal("Failed to load configuration", zap.String("path", cfgPath), zap.Error(err))
	}

	slogLogger, zapLogger, err := logger.New(cfg.Logging.Level)
	if err != nil {
		tempZapLogger.Fatal("Failed to initialize zap logger", zap.Error(err))
	}
	defer zapLogger.Sync()
	slog.SetDefault(slogLogger)

	if err := run(ctx, cfg, slogLogger); err != nil {
		slogLogger.Error("SIFT node companion stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *configloader.Config, slogLogger *slog.Logger) error {
	appLogger := logger.Named(slogLogger, "main")
	appLogger.Info("SIFT node companion starting", "node", cfg.Node.RPCURL)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry, "sift")

	node, err := client.NewEVMClient(cfg.Node, m, logger.Named(slogLogger, "node"))
	if err != nil {
		return fmt.Errorf("connect to node: %w", err)
	}
	defer node.Close()

	notifier := notify.NewNotifier()
	manager, err := service.NewManager(cfg, node, notifier, m, logger.Named(slogLogger, "manager"))
	if err != nil {
		return fmt.Errorf("initialise manager: %w", err)
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := restapi.NewHandler(
		manager.ChainState(),
		manager.Transactions(),
		manager.Purchases(),
		manager.Notifier(),
		logger.Named(slogLogger, "restapi"),
	)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           restapi.SetupRouter(handler, registry, logger.Named(slogLogger, "http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info("Starting HTTP server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	managerCtx, cancelManager := context.WithCancel(ctx)
	managerDone := make(chan error, 1)
	go func() { managerDone <- manager.Run(managerCtx) }()

	var runErr error
	select {
	case <-ctx.Done():
		appLogger.Info("Shutdown signal received")
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown failed", "error", err)
	}

	cancelManager()
	if err := <-managerDone; err != nil && runErr == nil {
		runErr = err
	}

	appLogger.Info("SIFT node companion stopped")
	return runErr
}
