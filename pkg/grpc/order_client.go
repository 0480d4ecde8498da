package grpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/orderdesk/pkg/config"
	"github.com/example/orderdesk/pkg/models"
	"github.com/example/orderdesk/pkg/patterns"
	"github.com/example/orderdesk/pkg/wizard"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrSubmissionFailed wraps every error returned by OrderClient.SubmitOrder.
var ErrSubmissionFailed = errors.New("order submission failed")

// OrderClient calls the order service through a circuit breaker.
type OrderClient struct {
	conn    grpc.ClientConnInterface
	breaker *patterns.CircuitBreaker
	logger  *zap.Logger
}

// NewOrderBreaker builds the breaker guarding calls to the order service.
// Rejections of the request itself leave the breaker alone.
func NewOrderBreaker(name string, cfg config.BreakerConfig, logger *zap.Logger) *patterns.CircuitBreaker {
	return patterns.NewCircuitBreaker(name, cfg, countsAsSuccess, logger)
}

func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.NotFound, codes.AlreadyExists,
		codes.FailedPrecondition, codes.Canceled:
		return true
	}
	return false
}

func NewOrderClient(conn grpc.ClientConnInterface, breaker *patterns.CircuitBreaker, logger *zap.Logger) *OrderClient {
	return &OrderClient{conn: conn, breaker: breaker, logger: logger}
}

func (c *OrderClient) invoke(ctx context.Context, method string, in interface{}, out interface{}) error {
	req, err := encode(in)
	if err != nil {
		return err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp := new(structpb.Struct)
		if err := c.conn.Invoke(ctx, method, req, resp); err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return err
	}

	return decode(result.(*structpb.Struct), out)
}

// SubmitOrder places the draft as an order.
func (c *OrderClient) SubmitOrder(ctx context.Context, d wizard.Draft) (models.OrderConfirmation, error) {
	var conf models.OrderConfirmation
	if err := c.invoke(ctx, SubmitOrderMethod, NewSubmitOrderRequest(d), &conf); err != nil {
		c.logger.Warn("Order submission failed", zap.Error(err))
		return models.OrderConfirmation{}, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	return conf, nil
}

func (c *OrderClient) GetOrder(ctx context.Context, orderID string) (models.OrderConfirmation, error) {
	var conf models.OrderConfirmation
	if err := c.invoke(ctx, GetOrderMethod, GetOrderRequest{OrderID: orderID}, &conf); err != nil {
		return models.OrderConfirmation{}, fmt.Errorf("failed to get order %s: %w", orderID, err)
	}
	return conf, nil
}

func (c *OrderClient) GetOrderHistory(ctx context.Context, orderID string) (OrderHistory, error) {
	var history OrderHistory
	if err := c.invoke(ctx, GetHistoryMethod, GetOrderRequest{OrderID: orderID}, &history); err != nil {
		return OrderHistory{}, fmt.Errorf("failed to get history of order %s: %w", orderID, err)
	}
	return history, nil
}

// GetPolicy fetches the tax rate and options the order service accepts. It
// waits for the connection to become ready and does not go through the
// breaker.
func (c *OrderClient) GetPolicy(ctx context.Context) (wizard.Policy, error) {
	req, err := encode(GetPolicyRequest{})
	if err != nil {
		return wizard.Policy{}, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, GetPolicyMethod, req, resp, grpc.WaitForReady(true)); err != nil {
		return wizard.Policy{}, fmt.Errorf("failed to get order policy: %w", err)
	}

	var policy wizard.Policy
	if err := decode(resp, &policy); err != nil {
		return wizard.Policy{}, err
	}
	if len(policy.PaymentMethods) == 0 || len(policy.DeliveryOptions) == 0 {
		return wizard.Policy{}, errors.New("order service returned a policy without options")
	}
	return policy, nil
}
