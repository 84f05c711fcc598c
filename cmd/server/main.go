package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/FreePeak/pg-schema-mcp-server/internal/domain/shared"
	"github.com/FreePeak/pg-schema-mcp-server/internal/infrastructure/config"
	"github.com/FreePeak/pg-schema-mcp-server/internal/infrastructure/logging"
	"github.com/FreePeak/pg-schema-mcp-server/internal/infrastructure/metrics"
	"github.com/FreePeak/pg-schema-mcp-server/internal/infrastructure/server"
	"github.com/FreePeak/pg-schema-mcp-server/internal/usecases"
	"github.com/FreePeak/pg-schema-mcp-server/internal/usecases/dbschema"
)

const (
	serverName    = "pg-schema-mcp-server"
	serverVersion = "1.0.0"
)

func main() {
	var httpAddr = flag.String("http", "", "HTTP server address (overrides config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *httpAddr != "" {
		cfg.Server.Addr = *httpAddr
	}

	logger, err := logging.New(logging.Config{
		Level:       logging.LogLevel(cfg.Log.Level),
		Development: cfg.Log.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logging.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", logging.Fields{"signal": sig.String()})
		cancel()
	}()

	recorder := metrics.New("pgmcp")
	registry := server.NewSessionRegistry(logger, recorder)

	service := usecases.NewServerService(
		shared.ServerInfo{Name: serverName, Version: serverVersion},
		server.NewInMemoryToolRepository(),
		server.NewInMemorySessionRepository(),
		registry,
		logger,
	)
	service.RegisterExecutor(dbschema.NewExecutor(dbschema.ConnectionInfo{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
	}))

	streamer := server.NewNotificationStreamer(cfg.Stream.Interval, cfg.Stream.MessageCount, logger)

	srv := server.NewStreamableHTTPServer(service, registry, streamer,
		server.WithAddress(cfg.Server.Addr),
		server.WithEndpointPath(cfg.Server.EndpointPath),
		server.WithNotificationBufferSize(cfg.Server.NotificationBufferSize),
		server.WithCatalogRefreshInterval(cfg.Catalog.RefreshInterval),
		server.WithRecorder(recorder),
		server.WithLogger(logger),
	)

	if err := srv.Start(ctx); err != nil {
		logger.Error("server failed", logging.Fields{"error": err.Error()})
		os.Exit(1)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", logging.Fields{"error": err.Error()})
	}
}
