package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/config"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/http/handler"
	httpmiddleware "github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/http/middleware"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/middleware"
)

// HealthPath is exempt from rate limiting.
const HealthPath = "/api/health"

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, logger *zap.Logger, gatewayHandler *handler.GatewayHandler, rateLimiter *middleware.RateLimiter) *gin.Engine {
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(httpmiddleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}

	r.GET(HealthPath, gatewayHandler.Health)

	api := r.Group("/api/aliexpress")
	{
		api.GET("/auth", gatewayHandler.Authorize)
		api.GET("/config", gatewayHandler.Config)
		api.GET("/oauth-callback", gatewayHandler.OAuthCallback)
		api.GET("/token/status", gatewayHandler.TokenStatus)

		products := api.Group("/products")
		{
			products.GET("", gatewayHandler.SearchProducts)
			products.GET("/details", gatewayHandler.ProductDetails)
			products.GET("/category", gatewayHandler.ProductsByCategory)
		}
		api.GET("/categories", gatewayHandler.Categories)
		api.GET("/hot-products", gatewayHandler.HotProducts)

		api.POST("/order", gatewayHandler.CreateOrder)
		api.GET("/tracking", gatewayHandler.Tracking)
		api.GET("/test", gatewayHandler.Test)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "error_description": "Route not found."})
	})

	return r
}
