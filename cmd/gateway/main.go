package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/orderdesk/gateway"
	"github.com/example/orderdesk/pkg/catalog"
	"github.com/example/orderdesk/pkg/config"
	"github.com/example/orderdesk/pkg/discovery"
	"github.com/example/orderdesk/pkg/grpc"
	"github.com/example/orderdesk/pkg/logging"
	"github.com/example/orderdesk/pkg/repository"
	"github.com/example/orderdesk/pkg/session"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/gateway.yaml", "path to the gateway config file")
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

	logger.Info("Starting API Gateway",
		zap.Int("port", cfg.Gateway.Port),
		zap.String("host", cfg.Gateway.Host),
		zap.String("catalog", cfg.Catalog.Source))

	ctx := context.Background()

	cat, closeCatalog, err := buildCatalog(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to set up catalog", zap.Error(err))
	}
	defer closeCatalog()

	// Setup service discovery
	sd, err := discovery.NewServiceDiscovery(&cfg.Etcd)
	if err != nil {
		logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		sd = nil
	}

	clients := grpc.NewClientManager(cfg, logger, sd)
	if err := clients.Connect(ctx); err != nil {
		logger.Fatal("Failed to connect to order service", zap.Error(err))
	}
	defer clients.Close()

	// The order service owns the tax rate and the options it accepts.
	policyCtx, cancelPolicy := context.WithTimeout(ctx, cfg.OrderService.PolicyTimeout)
	policy, err := clients.OrderClient().GetPolicy(policyCtx)
	cancelPolicy()
	if err != nil {
		logger.Fatal("Failed to fetch order policy", zap.Error(err))
	}
	logger.Info("Order policy loaded",
		zap.String("tax_rate", policy.TaxRate.String()),
		zap.Int("payment_methods", len(policy.PaymentMethods)),
		zap.Int("delivery_options", len(policy.DeliveryOptions)))

	system := actor.NewActorSystem()
	sessions := session.NewManager(system, cfg.Wizard, policy, cat, clients.OrderClient(), logger)

	// Create gateway
	gw := gateway.NewGateway(cfg, logger, sessions, cat, clients.OrderClient())
	gw.SetupRoutes()

	// Start gateway in goroutine
	gwErr := make(chan error, 1)
	go func() {
		if err := gw.Start(); err != nil {
			gwErr <- err
		}
	}()

	logger.Info("Gateway started successfully")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-gwErr:
		logger.Error("Gateway error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("Gateway shutdown failed", zap.Error(err))
	}
	sessions.Shutdown()

	if sd != nil {
		sd.Close()
	}

	logger.Info("Gateway stopped")
}

// buildCatalog picks the catalog source and puts a Redis read-through cache
// in front of it when Redis is reachable.
func buildCatalog(ctx context.Context, cfg *config.Config, logger *zap.Logger) (catalog.Catalog, func(), error) {
	var source catalog.Catalog

	switch cfg.Catalog.Source {
	case "fixture", "":
		return catalog.NewFixture(), func() {}, nil
	case "http":
		source = catalog.NewHTTPCatalog(cfg.Catalog)
	case "mysql":
		db, err := repository.OpenMySQL(&cfg.MySQL)
		if err != nil {
			return nil, nil, err
		}
		if err := repository.MigrateCatalog(db); err != nil {
			return nil, nil, err
		}
		source = repository.NewCatalogRepository(db)
	default:
		return nil, nil, fmt.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}

	redisRepo := repository.NewRedisRepository(&cfg.Redis)
	if err := redisRepo.Ping(ctx); err != nil {
		logger.Warn("Redis connection failed, catalog cache disabled", zap.Error(err))
		_ = redisRepo.Close()
		return source, func() {}, nil
	}

	logger.Info("Catalog cache enabled", zap.Duration("ttl", cfg.Catalog.CacheTTL))
	cached := catalog.NewCached(source, redisRepo, cfg.Catalog.CacheTTL, logger.Named("catalog-cache"))
	return cached, func() { _ = redisRepo.Close() }, nil
}
