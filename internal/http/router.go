package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/library/internal/auth"
	"github.com/mrlokans/library/internal/config"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(auth.SecurityHeadersMiddleware())

	health := NewHealthController(cfg.Database, cfg.Version, cfg.SweepSchedule)
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	api := router.Group("/api")

	// Registration and login are the only unauthenticated API routes.
	if cfg.Authenticator != nil && cfg.AuthMode == config.AuthModeLocal {
		authController := NewAuthController(cfg.Authenticator, cfg.LoginLimiter)
		api.POST("/auth/register", authController.Register)
		api.POST("/auth/login", authController.Login)
	}

	authMiddleware := cfg.AuthMiddleware
	if authMiddleware == nil {
		authMiddleware = auth.NewMiddleware(nil, nil, config.AuthModeNone)
	}
	protected := api.Group("")
	protected.Use(authMiddleware.Handler())
	staff := auth.RequireStaff()

	users := NewUsersController(cfg.Users)
	protected.GET("/auth/me", users.Me)

	books := NewBooksController(cfg.Books)
	bookRoutes := protected.Group("/books")
	bookRoutes.GET("", books.List)
	bookRoutes.POST("", staff, books.Create)
	bookRoutes.GET("/isbn/:isbn", books.GetByISBN)
	bookRoutes.GET("/lookup/:isbn", staff, books.Lookup)
	bookRoutes.GET("/:id", books.Get)
	bookRoutes.PUT("/:id", staff, books.Update)
	bookRoutes.DELETE("/:id", staff, books.Delete)

	userRoutes := protected.Group("/users")
	userRoutes.GET("", staff, users.List)
	userRoutes.POST("", staff, users.Create)
	userRoutes.GET("/me", users.Me)
	userRoutes.GET("/email/:email", staff, users.GetByEmail)
	userRoutes.GET("/:id", users.Get)
	userRoutes.PUT("/:id", users.Update)
	userRoutes.DELETE("/:id", staff, users.Delete)

	checkouts := NewCheckoutsController(cfg.Checkouts, cfg.Overdue)
	checkoutRoutes := protected.Group("/checkouts")
	checkoutRoutes.GET("", checkouts.List)
	checkoutRoutes.POST("", checkouts.Create)
	checkoutRoutes.POST("/checkout", checkouts.Create)
	checkoutRoutes.POST("/return", checkouts.Return)
	checkoutRoutes.POST("/renew", checkouts.Renew)
	checkoutRoutes.GET("/overdue", staff, checkouts.Overdue)
	checkoutRoutes.POST("/overdue/notify", staff, checkouts.NotifyOverdue)
	checkoutRoutes.GET("/failures", staff, checkouts.Failures)
	checkoutRoutes.GET("/user/:user_id", checkouts.ListForUser)
	checkoutRoutes.GET("/:id", checkouts.Get)
	checkoutRoutes.POST("/:id/return", checkouts.Return)
	checkoutRoutes.POST("/:id/renew", checkouts.Renew)

	return router
}
