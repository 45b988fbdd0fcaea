package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/api/handlers"
	"github.com/gibbarosa/storefront/internal/api/middleware"
	"github.com/gibbarosa/storefront/internal/repository"
)

const maxWebhookBodyBytes = 64 << 10

// Services are the handlers' collaborators. Carts is nil when no cart store is configured.
type Services struct {
	Checkout    handlers.CheckoutService
	Webhooks    handlers.WebhookReceiver
	Inventory   handlers.StockRestorer
	DeadLetters handlers.DeadLetterAdmin
	Carts       handlers.CartService
}

// NewRouter creates and configures the Gin router
func NewRouter(environment string, repos *repository.Repositories, services Services, logger *zap.Logger) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logging(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	webhook := handlers.HandleStripeWebhook(services.Webhooks, environment, logger)
	paymentIntent := handlers.HandleCreatePaymentIntent(services.Checkout, logger)
	webhookLimit := middleware.BodyLimit(maxWebhookBodyBytes)

	// Paths the storefront already calls
	legacy := router.Group("/api")
	{
		legacy.POST("/create-payment-intent", paymentIntent)
		legacy.POST("/webhook", webhookLimit, webhook)
	}

	v1 := router.Group("/v1")
	{
		v1.POST("/payment-intents", paymentIntent)
		v1.POST("/checkout-sessions", handlers.HandleCreateCheckoutSession(services.Checkout, logger))
		v1.POST("/webhooks/stripe", webhookLimit, webhook)

		if services.Carts != nil {
			carts := v1.Group("/carts/:cartId")
			{
				carts.GET("", handlers.HandleGetCart(services.Carts, logger))
				carts.DELETE("", handlers.HandleClearCart(services.Carts, logger))
				carts.POST("/items", handlers.HandleAddCartItem(services.Carts, logger))
				carts.DELETE("/items/:productId", handlers.HandleRemoveCartItem(services.Carts, logger))
			}
		}

		adminRoutes := v1.Group("/admin")
		adminRoutes.Use(middleware.OperatorAuth(repos.Operator, logger))
		{
			adminRoutes.POST("/products/:id/restore-stock", handlers.HandleRestoreStock(services.Inventory, logger))
			adminRoutes.GET("/orders/:orderNumber", handlers.HandleGetOrder(repos.Order, logger))
			adminRoutes.GET("/dead-letters", handlers.HandleListDeadLetters(services.DeadLetters, logger))
			adminRoutes.POST("/dead-letters/:id/replay", handlers.HandleReplayDeadLetter(services.DeadLetters, logger))
		}
	}

	legacyAdmin := legacy.Group("/admin")
	legacyAdmin.Use(middleware.OperatorAuth(repos.Operator, logger))
	legacyAdmin.POST("/restore-stock", handlers.HandleRestoreStock(services.Inventory, logger))

	return router
}
