package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/example/orderdesk/pkg/cart"
	"github.com/example/orderdesk/pkg/config"
	"github.com/example/orderdesk/pkg/events"
	"github.com/example/orderdesk/pkg/models"
	"github.com/example/orderdesk/pkg/repository"
	"github.com/example/orderdesk/pkg/wizard"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	auditTimeout = 5 * time.Second
	historyLimit = 50
)

type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
}

type OrderCache interface {
	CacheOrder(ctx context.Context, order *repository.OrderCache) error
	GetOrderCache(ctx context.Context, orderID string) (*repository.OrderCache, error)
}

type AuditLogger interface {
	CreateAuditLog(ctx context.Context, log *repository.AuditLog) error
	GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*repository.AuditLog, error)
}

type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, e events.OrderPlaced) error
}

// Backends are the stores behind the order service. Only Store is required.
type Backends struct {
	Store     OrderStore
	Cache     OrderCache
	Audit     AuditLogger
	Publisher EventPublisher
}

type OrderServer struct {
	backends Backends
	policy   wizard.Policy
	logger   *zap.Logger
	config   *config.Config

	srv    *grpc.Server
	health *health.Server
}

func NewOrderServer(cfg *config.Config, logger *zap.Logger, backends Backends) (*OrderServer, error) {
	if backends.Store == nil {
		return nil, errors.New("order store is required")
	}

	policy, err := wizard.NewPolicy(cfg.Wizard)
	if err != nil {
		return nil, fmt.Errorf("failed to build order policy: %w", err)
	}

	s := &OrderServer{
		backends: backends,
		policy:   policy,
		logger:   logger,
		config:   cfg,
		health:   health.NewServer(),
	}

	s.srv = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logInterceptor))
	RegisterOrderServiceServer(s.srv, s)
	healthpb.RegisterHealthServer(s.srv, s.health)
	reflection.Register(s.srv)

	return s, nil
}

// ConnectBackends opens MySQL, Redis, MongoDB and RabbitMQ. MySQL is
// mandatory; the others are dropped with a warning when unreachable.
func ConnectBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Backends, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	db, err := repository.OpenMySQL(&cfg.MySQL)
	if err != nil {
		return Backends{}, nil, err
	}
	orders := repository.NewOrderRepository(db)
	if err := orders.Migrate(); err != nil {
		return Backends{}, nil, err
	}
	b := Backends{Store: orders}

	redisRepo := repository.NewRedisRepository(&cfg.Redis)
	if err := redisRepo.Ping(ctx); err != nil {
		logger.Warn("Redis connection failed, order cache disabled", zap.Error(err))
		_ = redisRepo.Close()
	} else {
		logger.Info("Redis connected successfully")
		b.Cache = redisRepo
		closers = append(closers, func() { _ = redisRepo.Close() })
	}

	mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		logger.Warn("MongoDB connection failed, audit log disabled", zap.Error(err))
	} else {
		if err := mongoRepo.EnsureIndexes(ctx); err != nil {
			logger.Warn("Failed to create audit indexes", zap.Error(err))
		}
		b.Audit = mongoRepo
		closers = append(closers, func() { _ = mongoRepo.Close(context.Background()) })
	}

	publisher, err := events.Dial(&cfg.RabbitMQ)
	if err != nil {
		logger.Warn("RabbitMQ connection failed, order events disabled", zap.Error(err))
	} else {
		b.Publisher = publisher
		closers = append(closers, publisher.Close)
	}

	return b, closeAll, nil
}

func (s *OrderServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.logger.Info("Order service started", zap.String("address", addr))

	return s.Serve(lis)
}

func (s *OrderServer) Serve(lis net.Listener) error {
	s.health.SetServingStatus(OrderServiceName, healthpb.HealthCheckResponse_SERVING)
	return s.srv.Serve(lis)
}

func (s *OrderServer) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}

func (s *OrderServer) logInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.String("code", status.Code(err).String()),
		zap.Duration("latency", time.Since(start)),
	}
	if err != nil {
		s.logger.Warn("gRPC call failed", append(fields, zap.Error(err))...)
	} else {
		s.logger.Info("gRPC call", fields...)
	}
	return resp, err
}

func (s *OrderServer) validate(req SubmitOrderRequest) error {
	switch {
	case req.CustomerID == "":
		return errors.New("customer_id is required")
	case req.RestaurantID == "":
		return errors.New("restaurant_id is required")
	case req.MenuID == "":
		return errors.New("menu_id is required")
	case len(req.Items) == 0:
		return errors.New("order has no items")
	}
	for _, it := range req.Items {
		if it.ItemID == "" {
			return fmt.Errorf("line %s has no item_id", it.LineID)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("line %s: quantity must be positive", it.LineID)
		}
		if it.Price.IsNegative() {
			return fmt.Errorf("line %s: price must not be negative", it.LineID)
		}
		if !it.Price.Equal(it.Price.Truncate(models.PriceScale)) {
			return fmt.Errorf("line %s: price %s has more than %d decimal places", it.LineID, it.Price, models.PriceScale)
		}
	}
	if _, ok := s.policy.PaymentMethod(req.PaymentMethod); !ok {
		return fmt.Errorf("unknown payment method %q", req.PaymentMethod)
	}
	if _, ok := s.policy.DeliveryOption(req.DeliveryOption); !ok {
		return fmt.Errorf("unknown delivery option %q", req.DeliveryOption)
	}
	return nil
}

// SubmitOrder stores the order with totals recomputed at the service's tax
// rate, then caches it, audits it and publishes order.placed.
func (s *OrderServer) SubmitOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SubmitOrderRequest
	if err := decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.validate(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	lines := make(cart.Cart, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, cart.Line{
			ID:       it.LineID,
			Item:     models.MenuItem{ID: it.ItemID, Name: it.Name, Price: it.Price},
			Quantity: it.Quantity,
			Notes:    it.Notes,
		})
	}
	totals := lines.Totals(s.policy.TaxRate)

	itemsJSON, err := json.Marshal(req.Items)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to serialize items")
	}

	now := time.Now().UTC()
	order := &models.Order{
		ID:             uuid.NewString(),
		CustomerID:     req.CustomerID,
		RestaurantID:   req.RestaurantID,
		MenuID:         req.MenuID,
		Items:          string(itemsJSON),
		Subtotal:       totals.Subtotal,
		Tax:            totals.Tax,
		TotalAmount:    totals.Total,
		PaymentMethod:  req.PaymentMethod,
		DeliveryOption: req.DeliveryOption,
		Allergies:      req.Allergies,
		DeliveryNotes:  req.DeliveryNotes,
		Status:         models.OrderStatusPlaced,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.backends.Store.CreateOrder(ctx, order); err != nil {
		s.logger.Error("Failed to create order", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to create order")
	}

	s.cacheOrder(ctx, order)

	if s.backends.Audit != nil {
		go s.audit("create_order", order.ID, bson.M{
			"customer_id":   order.CustomerID,
			"restaurant_id": order.RestaurantID,
			"total_amount":  order.TotalAmount.String(),
			"line_count":    len(req.Items),
		})
	}

	if s.backends.Publisher != nil {
		event := events.OrderPlaced{
			OrderID:        order.ID,
			CustomerID:     order.CustomerID,
			RestaurantID:   order.RestaurantID,
			MenuID:         order.MenuID,
			ItemCount:      lines.ItemCount(),
			Total:          order.TotalAmount,
			PaymentMethod:  order.PaymentMethod,
			DeliveryOption: order.DeliveryOption,
			PlacedAt:       order.CreatedAt,
		}
		// The order is already stored, so a lost event is logged, not returned.
		if err := s.backends.Publisher.PublishOrderPlaced(ctx, event); err != nil {
			s.logger.Error("Failed to publish order event",
				zap.String("order_id", order.ID),
				zap.Error(err))
		}
	}

	s.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("customer_id", order.CustomerID),
		zap.String("total", order.TotalAmount.String()))

	return encode(confirmation(order))
}

func (s *OrderServer) GetOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req GetOrderRequest
	if err := decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	conf, err := s.lookup(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	return encode(conf)
}

// GetOrderHistory returns the order together with its audit trail. It fails
// with FailedPrecondition when the audit log is not connected.
func (s *OrderServer) GetOrderHistory(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req GetOrderRequest
	if err := decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if s.backends.Audit == nil {
		return nil, status.Error(codes.FailedPrecondition, "audit log is not enabled")
	}
	conf, err := s.lookup(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	logs, err := s.backends.Audit.GetAuditLogs(ctx, req.OrderID, historyLimit)
	if err != nil {
		s.logger.Error("Failed to read audit log", zap.String("order_id", req.OrderID), zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to read order history")
	}

	history := OrderHistory{Order: conf, Entries: make([]AuditEntry, 0, len(logs))}
	for _, l := range logs {
		history.Entries = append(history.Entries, AuditEntry{
			Service:   l.Service,
			Action:    l.Action,
			Data:      l.Data,
			CreatedAt: l.CreatedAt,
		})
	}
	return encode(history)
}

// GetPolicy returns the tax rate and options SubmitOrder validates against.
func (s *OrderServer) GetPolicy(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return encode(s.policy)
}

func (s *OrderServer) lookup(ctx context.Context, orderID string) (models.OrderConfirmation, error) {
	if orderID == "" {
		return models.OrderConfirmation{}, status.Error(codes.InvalidArgument, "order_id is required")
	}

	if s.backends.Cache != nil {
		if cached, err := s.backends.Cache.GetOrderCache(ctx, orderID); err == nil {
			return models.OrderConfirmation{
				OrderID:   cached.ID,
				Status:    cached.Status,
				Subtotal:  cached.Subtotal,
				Tax:       cached.Tax,
				Total:     cached.Total,
				CreatedAt: cached.CreatedAt,
			}, nil
		}
	}

	order, err := s.backends.Store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return models.OrderConfirmation{}, status.Error(codes.NotFound, "order not found")
		}
		s.logger.Error("Failed to get order", zap.String("order_id", orderID), zap.Error(err))
		return models.OrderConfirmation{}, status.Error(codes.Internal, "failed to get order")
	}

	s.cacheOrder(ctx, order)

	return confirmation(order), nil
}

func (s *OrderServer) cacheOrder(ctx context.Context, order *models.Order) {
	if s.backends.Cache == nil {
		return
	}
	err := s.backends.Cache.CacheOrder(ctx, &repository.OrderCache{
		ID:           order.ID,
		CustomerID:   order.CustomerID,
		RestaurantID: order.RestaurantID,
		Status:       order.Status,
		Subtotal:     order.Subtotal,
		Tax:          order.Tax,
		Total:        order.TotalAmount,
		CreatedAt:    order.CreatedAt,
	})
	if err != nil {
		s.logger.Warn("Failed to cache order", zap.String("order_id", order.ID), zap.Error(err))
	}
}

func (s *OrderServer) audit(action, entityID string, data bson.M) {
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	err := s.backends.Audit.CreateAuditLog(ctx, &repository.AuditLog{
		Service:  s.config.Server.Name,
		Action:   action,
		EntityID: entityID,
		Data:     data,
	})
	if err != nil {
		s.logger.Warn("Failed to write audit log", zap.String("entity_id", entityID), zap.Error(err))
	}
}

func confirmation(o *models.Order) models.OrderConfirmation {
	return models.OrderConfirmation{
		OrderID:   o.ID,
		Status:    o.Status,
		Subtotal:  o.Subtotal,
		Tax:       o.Tax,
		Total:     o.TotalAmount,
		CreatedAt: o.CreatedAt,
	}
}
