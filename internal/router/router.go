package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/pantrychef/backend/internal/api"
	"github.com/pantrychef/backend/internal/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth       *api.AuthHandler
	Token      *api.TokenHandler
	Recipe     *api.RecipeHandler
	Generation *api.GenerationHandler
	Payment    *api.PaymentHandler
	Photo      *api.PhotoHandler
	Health     api.HealthChecker
}

// SetupRouter configures the application routes
func SetupRouter(h Handlers, validator middleware.TokenValidator, redisClient *redis.Client) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://frontend:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Accept", "Origin", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))

	router.GET("/health", api.HealthCheck(h.Health))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
	}

	// The webhook authenticates with the processor's signature, not a JWT.
	v1.POST("/webhooks/stripe", h.Payment.StripeWebhook)

	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(validator))
	{
		profile := protected.Group("/profile")
		{
			profile.GET("", h.Auth.GetProfile)
			profile.PUT("", h.Auth.UpdateProfile)
		}

		tokens := protected.Group("/tokens")
		{
			tokens.GET("", h.Token.GetTokens)
			tokens.POST("", h.Token.TokenAction)
			tokens.POST("/purchase", h.Payment.PurchaseTokens)
		}

		recipes := protected.Group("/recipes")
		{
			recipes.GET("", h.Recipe.ListRecipes)
			recipes.GET("/:id", h.Recipe.GetRecipe)
			recipes.DELETE("/:id", h.Recipe.DeleteRecipe)

			generationLimiter := middleware.NewGenerationRateLimiter(redisClient)
			recipes.POST("/generate", generationLimiter.RateLimitMiddleware(), h.Generation.GenerateRecipe)

			modificationLimiter := middleware.NewModificationRateLimiter(redisClient)
			recipes.POST("/:id/modify", modificationLimiter.PerRecipeRateLimitMiddleware(), h.Generation.ModifyRecipe)
		}

		protected.POST("/pantry/photo", h.Photo.AnalyzePantryPhoto)
	}

	return router
}
