package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/example/orderdesk/docs"
	"github.com/example/orderdesk/pkg/catalog"
	"github.com/example/orderdesk/pkg/config"
	"github.com/example/orderdesk/pkg/metrics"
	"github.com/example/orderdesk/pkg/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title       orderdesk API
// @version     1.0
// @description Order-creation wizard for restaurant staff.
// @BasePath    /api/v1

type Gateway struct {
	config   *config.Config
	logger   *zap.Logger
	router   *gin.Engine
	server   *http.Server
	sessions *session.Manager
	catalog  catalog.Catalog
	orders   OrderLookup
}

func NewGateway(cfg *config.Config, logger *zap.Logger, sessions *session.Manager, cat catalog.Catalog, orders OrderLookup) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))
	router.Use(metrics.PrometheusMiddleware())
	router.Use(cors.New(corsConfig(cfg.Gateway.CORSOrigins)))

	return &Gateway{
		config:   cfg,
		logger:   logger,
		router:   router,
		sessions: sessions,
		catalog:  cat,
		orders:   orders,
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func (g *Gateway) SetupRoutes() {
	g.router.GET("/health", g.health)
	g.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := g.router.Group("/api/v1")
	{
		v1.GET("/options", g.options)

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", g.createSession)
			sessions.GET("/:id", g.getSession)
			sessions.DELETE("/:id", g.deleteSession)

			sessions.GET("/:id/customers", g.searchCustomers)
			sessions.GET("/:id/restaurants", g.searchRestaurants)

			sessions.PUT("/:id/customer", g.selectCustomer)
			sessions.PUT("/:id/restaurant", g.selectRestaurant)
			sessions.PUT("/:id/menu", g.selectMenu)
			sessions.PUT("/:id/category", g.selectCategory)

			sessions.POST("/:id/change/confirm", g.confirmChange)
			sessions.POST("/:id/change/cancel", g.cancelChange)

			sessions.POST("/:id/cart/items", g.addItem)
			sessions.PATCH("/:id/cart/lines/:lineId", g.updateLine)
			sessions.DELETE("/:id/cart/lines/:lineId", g.removeLine)

			sessions.PUT("/:id/checkout", g.updateCheckout)

			sessions.POST("/:id/next", g.next)
			sessions.POST("/:id/prev", g.prev)
			sessions.POST("/:id/submit", g.submit)
			sessions.POST("/:id/reset", g.reset)
		}

		cat := v1.Group("/catalog")
		{
			cat.GET("/customers", g.listCustomers)
			cat.GET("/restaurants", g.listRestaurants)
			cat.GET("/restaurants/:id/menus", g.listMenus)
			cat.GET("/menus/:id/categories", g.listCategories)
			cat.GET("/menus/:id/items", g.listMenuItems)
		}

		orders := v1.Group("/orders")
		{
			orders.GET("/:id", g.getOrder)
			orders.GET("/:id/history", g.getOrderHistory)
		}
	}

	docs.SwaggerInfo.Host = fmt.Sprintf("%s:%d", g.config.Gateway.Host, g.config.Gateway.Port)
	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Handler exposes the router, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	addr := fmt.Sprintf("%s:%d", g.config.Gateway.Host, g.config.Gateway.Port)
	g.server = &http.Server{
		Addr:              addr,
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.logger.Info("Gateway starting", zap.String("address", addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}

// health godoc
// @Summary Liveness check
// @Tags    system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router  /health [get]
func (g *Gateway) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": g.sessions.Len(),
	})
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		logger.Info("HTTP request", fields...)
	}
}
