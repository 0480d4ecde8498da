package grpc

import (
	"context"
	"fmt"

	"github.com/example/orderdesk/pkg/config"
	"github.com/example/orderdesk/pkg/discovery"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ClientManager manages the gateway's connection to the order service
type ClientManager struct {
	config    *config.Config
	discovery *discovery.ServiceDiscovery
	logger    *zap.Logger

	orderConn   *grpc.ClientConn
	orderClient *OrderClient
}

// NewClientManager creates a new gRPC client manager. disc may be nil.
func NewClientManager(cfg *config.Config, logger *zap.Logger, disc *discovery.ServiceDiscovery) *ClientManager {
	return &ClientManager{
		config:    cfg,
		discovery: disc,
		logger:    logger,
	}
}

// Connect resolves the order service and opens a client connection to it.
func (m *ClientManager) Connect(ctx context.Context) error {
	svc := m.config.OrderService
	target := svc.Address

	// Try to use service discovery if available
	if m.discovery != nil {
		dctx, cancel := context.WithTimeout(ctx, svc.DialTimeout)
		defer cancel()

		instances, err := m.discovery.Discover(dctx, svc.Name)
		if err == nil && len(instances) > 0 {
			target = instances[0].Address()
			m.logger.Info("Discovered order service", zap.String("address", target))
		} else {
			m.logger.Info("Using default address for order service",
				zap.String("address", target),
				zap.Error(err))
		}
	}

	m.logger.Info("Connecting to order service", zap.String("target", target))

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to order service: %w", err)
	}

	m.orderConn = conn
	m.orderClient = NewOrderClient(conn,
		NewOrderBreaker(svc.Name, svc.Breaker, m.logger),
		m.logger.Named("order-client"))

	return nil
}

// OrderClient returns the order service client. Valid after Connect.
func (m *ClientManager) OrderClient() *OrderClient {
	return m.orderClient
}

// Close closes the order service connection
func (m *ClientManager) Close() error {
	if m.orderConn == nil {
		return nil
	}
	if err := m.orderConn.Close(); err != nil {
		return fmt.Errorf("order connection close error: %w", err)
	}
	return nil
}
