package api

import (
	"betmaster/internal/account"    // Account service
	"betmaster/internal/game"       // Game service
	"betmaster/internal/middleware" // Auth and logging middleware

	"github.com/gin-gonic/gin" // Gin web framework
)

// NewRouter mounts every route on a fresh engine
func NewRouter(accounts *account.Service, games *game.Service, jwtSecret string) *gin.Engine {
	RegisterValidators()

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	auth := middleware.JWTAuthMiddleware(jwtSecret)

	// Auth routes
	userGroup := r.Group("/user")
	userGroup.POST("", RegisterHandler(accounts))    // Registration endpoint
	userGroup.POST("/login", LoginHandler(accounts)) // Login endpoint
	userGroup.GET("/me", auth, MeHandler(accounts))  // Profile and balance
	userGroup.GET("/transactions", auth, MyTransactionsHandler(accounts))

	// Public round history
	roundGroup := r.Group("/rounds")
	roundGroup.GET("", LatestRoundsHandler(games))
	roundGroup.GET("/:number", RoundHandler(games))

	// Betting (protected by JWT)
	betGroup := r.Group("/bets")
	betGroup.Use(auth)
	betGroup.POST("", PlaceBetHandler(games))
	betGroup.GET("", MyBetsHandler(games))

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin")
	adminGroup.Use(auth, middleware.AdminOnlyMiddleware(accounts))
	adminGroup.GET("/users", ListUsersHandler(accounts))
	adminGroup.GET("/users/:id/transactions", UserTransactionsHandler(accounts))
	adminGroup.PUT("/users/:id/balance", SetBalanceHandler(accounts))
	adminGroup.PUT("/users/:id/status", SetStatusHandler(accounts))
	adminGroup.GET("/transactions", ListTransactionsHandler(accounts))
	adminGroup.POST("/rounds", OpenRoundHandler(games))
	adminGroup.POST("/rounds/:number/settle", SettleRoundHandler(games))
	adminGroup.POST("/rounds/:number/resume", ResumeRoundHandler(games))
	adminGroup.POST("/reconcile", ReconcileHandler(games))

	return r
}
