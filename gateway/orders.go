package gateway

import (
	"context"
	"net/http"

	ordergrpc "github.com/example/orderdesk/pkg/grpc"
	"github.com/example/orderdesk/pkg/models"
	"github.com/gin-gonic/gin"
)

// OrderLookup reads placed orders back from the order service.
type OrderLookup interface {
	GetOrder(ctx context.Context, orderID string) (models.OrderConfirmation, error)
	GetOrderHistory(ctx context.Context, orderID string) (ordergrpc.OrderHistory, error)
}

// getOrder godoc
// @Summary Look up a placed order
// @Tags    orders
// @Produce json
// @Param   id path string true "Order ID"
// @Success 200 {object} models.OrderConfirmation
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router  /orders/{id} [get]
func (g *Gateway) getOrder(c *gin.Context) {
	conf, err := g.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, conf)
}

// getOrderHistory godoc
// @Summary Audit trail of a placed order, newest first
// @Tags    orders
// @Produce json
// @Param   id path string true "Order ID"
// @Success 200 {object} grpc.OrderHistory
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router  /orders/{id}/history [get]
func (g *Gateway) getOrderHistory(c *gin.Context) {
	history, err := g.orders.GetOrderHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, history)
}
