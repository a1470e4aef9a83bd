package main

import (
	"context"   // context package is needed for Redis operations
	"errors"    // Server shutdown errors
	"net/http"  // HTTP server
	"os"        // Interrupt signal
	"os/signal" // Graceful shutdown
	"syscall"   // Termination signals
	"time"      // Shutdown timeout

	"coin_economy/internal/api"       // Custom package for API handlers
	"coin_economy/internal/coins"     // Coin reconciler
	"coin_economy/internal/config"    // Custom package for configuration
	"coin_economy/internal/db"        // Stores and registries
	"coin_economy/internal/domain"    // Coin catalog
	"coin_economy/internal/economy"   // Transaction orchestrator
	"coin_economy/internal/inventory" // Purses and shop stock
	"coin_economy/internal/ledger"    // Balance ledger
	"coin_economy/internal/lock"      // Account locks
	"coin_economy/internal/votes"     // Vote rewards

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})
	defer redisClient.Close()

	// Test Redis connection
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// Ledger store plus the user and shop directories
	var (
		store db.Store
		users db.UserDirectory
		shops db.ShopRegistry
	)
	if cfg.StoreBackend == config.BackendMySQL {
		gdb, err := db.OpenMySQL(cfg.MySQLDSN())
		if err != nil {
			logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
		}
		store = db.NewGormStore(gdb)
		users = db.NewGormUsers(gdb)
		shops = db.NewGormShops(gdb)
	} else {
		store, err = db.Open(db.Options{Backend: cfg.StoreBackend, SQLitePath: cfg.SQLitePath})
		if err != nil {
			logrus.Fatalf("failed to open store: %v", err)
		}
		// Users and shops have no document schema; they live with the process
		users = db.NewMemoryUsers()
		shops = db.NewMemoryShops()
		logrus.WithField("backend", cfg.StoreBackend).Warn("Users and shops are kept in memory")
	}

	led := ledger.New(store,
		ledger.WithStartingBalance(cfg.StartingBalance),
		ledger.WithHistoryLimit(cfg.HistoryLimit),
		ledger.WithSharedStore(cfg.SharedStore),
	)
	if err := led.Open(ctx); err != nil {
		logrus.Fatalf("failed to open ledger: %v", err)
	}
	defer func() {
		if err := led.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close ledger")
		}
	}()

	// Several processes over one store need a distributed lock
	var locker lock.Locker = lock.NewLocal()
	if cfg.SharedStore {
		locker = lock.NewRedis(redisClient, lock.DefaultOptions())
	}

	reconciler := coins.NewReconciler(domain.DefaultCatalog(), coins.WithStackSize(cfg.CoinStackSize))
	econ := economy.New(led, reconciler, locker, nil)

	voteService := votes.New(econ, votes.NewRedisPending(redisClient),
		votes.WithReward(cfg.VoteReward),
		votes.WithWindow(cfg.VoteDedupWindow),
	)
	if err := voteService.Start(); err != nil {
		logrus.Fatalf("failed to start vote sweep: %v", err)
	}
	defer voteService.Stop()

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	api.RegisterRoutes(r, api.Deps{
		Economy:     econ,
		Votes:       voteService,
		Users:       users,
		Shops:       shops,
		Inventories: inventory.NewRedisProvider(redisClient, cfg.StockCapacity),
		Redis:       redisClient,
		JWTSecret:   cfg.JWTSecret,
	})

	srv := &http.Server{Addr: ":" + cfg.AppPort, Handler: r}
	go func() {
		logrus.WithField("port", cfg.AppPort).Info("Server running") // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server shutdown failed")
	}
}
