package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/orderdesk/pkg/config"
	"github.com/example/orderdesk/pkg/discovery"
	"github.com/example/orderdesk/pkg/grpc"
	"github.com/example/orderdesk/pkg/logging"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/order.yaml", "path to the order service config file")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting order service",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port))

	ctx := context.Background()

	backends, closeBackends, err := grpc.ConnectBackends(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect backends", zap.Error(err))
	}
	defer closeBackends()

	// Create server
	server, err := grpc.NewOrderServer(cfg, logger, backends)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	// Connect to etcd for service discovery
	sd, err := discovery.NewServiceDiscovery(&cfg.Etcd)
	if err != nil {
		logger.Fatal("Failed to connect to etcd", zap.Error(err))
	}
	defer sd.Close()

	instance := &discovery.ServiceInstance{
		Name: cfg.Server.Name,
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}

	// Register service
	if err := sd.Register(ctx, instance); err != nil {
		logger.Fatal("Failed to register service", zap.Error(err))
	}

	logger.Info("Service registered in etcd",
		zap.String("name", instance.Name),
		zap.String("address", instance.Address()))

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-serverErr:
		logger.Error("Server error", zap.Error(err))
	}

	// Deregister service
	if err := sd.Deregister(ctx, instance); err != nil {
		logger.Error("Failed to deregister service", zap.Error(err))
	}

	server.Stop()
	logger.Info("Service stopped")
}
