package api

import (
	"context" // Context for cache invalidation

	"coin_economy/internal/db"         // User directory and shop registry
	"coin_economy/internal/economy"    // Transaction orchestrator
	"coin_economy/internal/inventory"  // Purses and shop stock
	"coin_economy/internal/middleware" // JWT and admin middleware
	"coin_economy/internal/utils"      // Cache helpers
	"coin_economy/internal/votes"      // Vote rewards

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// Deps are the components the HTTP surface calls into
type Deps struct {
	Economy     *economy.Service
	Votes       *votes.Service
	Users       db.UserDirectory
	Shops       db.ShopRegistry
	Inventories inventory.Provider
	Redis       redis.UniversalClient
	JWTSecret   string
}

// RegisterRoutes mounts every endpoint on r
func RegisterRoutes(r *gin.Engine, d Deps) {
	// Auth routes
	r.POST("/user", RegisterHandler(d.Users, d.Economy)) // Registration endpoint
	r.GET("/user", LoginHandler(d.Users, d.JWTSecret))   // Login endpoint

	// Wallet routes (protected by JWT)
	walletGroup := r.Group("/wallet")
	walletGroup.Use(middleware.JWTAuthMiddleware(d.JWTSecret))
	walletGroup.GET("", GetBalanceHandler(d.Economy, d.Redis))                        // Balance endpoint
	walletGroup.GET("/history", GetHistoryHandler(d.Economy, d.Users, d.Redis))       // History endpoint
	walletGroup.POST("/pay", PayHandler(d.Economy, d.Users, d.Redis))                 // Pay endpoint
	walletGroup.POST("/withdraw", WithdrawHandler(d.Economy, d.Inventories, d.Redis)) // Withdraw endpoint
	walletGroup.POST("/deposit", DepositHandler(d.Economy, d.Inventories, d.Redis))   // Deposit endpoint
	walletGroup.GET("/coins", CoinsHandler(d.Economy, d.Inventories))                 // Coin tally endpoint
	walletGroup.GET("/breakdown", BreakdownHandler(d.Economy))                        // Greedy breakdown endpoint
	walletGroup.GET("/votes", PendingVotesHandler(d.Votes))                           // Pending vote rewards
	walletGroup.POST("/votes/claim", ClaimVotesHandler(d.Votes, d.Redis))             // Claim vote rewards

	// Shop routes (protected by JWT)
	shopGroup := r.Group("/shops")
	shopGroup.Use(middleware.JWTAuthMiddleware(d.JWTSecret))
	shopGroup.POST("", CreateShopHandler(d.Shops))                                               // Create shop endpoint
	shopGroup.GET("", ListShopsHandler(d.Shops))                                                 // Own shops endpoint
	shopGroup.POST("/:id/settle", SettleShopHandler(d.Economy, d.Shops, d.Inventories, d.Redis)) // Trade endpoint

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.JWTAuthMiddleware(d.JWTSecret), middleware.AdminOnlyMiddleware(d.Users))
	adminGroup.GET("/accounts/:id", GetAccountHandler(d.Economy, d.Users, d.Redis))    // Account endpoint
	adminGroup.POST("/accounts/:id/balance", AdjustBalanceHandler(d.Economy, d.Redis)) // Balance override
	adminGroup.GET("/accounts/:id/history", AccountHistoryHandler(d.Economy, d.Users)) // Account history
	adminGroup.DELETE("/accounts/:id", ResetAccountHandler(d.Economy, d.Redis))        // Account reset
	adminGroup.GET("/shops", ListShopsByOwnerHandler(d.Shops))                         // Shops by owner
	adminGroup.POST("/votes", RecordVoteHandler(d.Votes, d.Users, d.Redis))            // Vote intake
}

// invalidate drops cached wallet views after a mutation
func invalidate(ctx context.Context, rdb redis.UniversalClient, accountIDs ...string) {
	if rdb == nil {
		return
	}
	if err := utils.InvalidateAccounts(ctx, rdb, accountIDs...); err != nil {
		logrus.WithFields(logrus.Fields{
			"accounts": accountIDs,  // Accounts whose cache is stale
			"error":    err.Error(), // Error message
		}).Warn("Failed to invalidate wallet cache")
	}
}
