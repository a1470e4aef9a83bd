package api

import (
	"fmt"      // Error formatting
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"strings"  // String manipulation

	"coin_economy/internal/db"         // Shop registry
	"coin_economy/internal/domain"     // Importing domain models
	"coin_economy/internal/economy"    // Transaction orchestrator
	"coin_economy/internal/inventory"  // Purses and stock
	"coin_economy/internal/middleware" // Authenticated account

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// CreateShopRequest defines a shop sign
type CreateShopRequest struct {
	Location string `json:"location" binding:"required"` // Sign location key
	Mode     string `json:"mode" binding:"required"`     // BUY or SELL
	Price    int64  `json:"price" binding:"required"`    // Price per trade
	ItemID   string `json:"item_id" binding:"required"`  // Goods item tag
	Quantity int64  `json:"quantity"`                    // Goods per trade, default 1
	Template string `json:"template"`                    // Optional JSON item payload
}

// CreateShopHandler registers a shop owned by the authenticated account
func CreateShopHandler(shops db.ShopRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateShopRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		mode, err := domain.ParseShopMode(req.Mode)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}
		if req.Price <= 0 || req.Quantity < 0 {
			respondError(c, fmt.Errorf("%w: price %d, quantity %d", domain.ErrInvalidAmount, req.Price, req.Quantity))
			return
		}
		// Bad templates are refused here; at trade time they are only logged
		if err := economy.ValidateTemplate(req.Template); err != nil {
			respondError(c, err)
			return
		}
		shop := domain.Shop{
			OwnerID:  middleware.AccountID(c),
			Location: strings.TrimSpace(req.Location),
			Mode:     mode,
			Price:    req.Price,
			ItemID:   req.ItemID,
			Quantity: req.Quantity,
			Template: req.Template,
		}
		if err := shops.Create(c.Request.Context(), &shop); err != nil {
			respondError(c, err)
			return
		}
		logrus.WithFields(logrus.Fields{
			"shop_id":  shop.ID,       // New shop
			"owner_id": shop.OwnerID,  // Owning account
			"location": shop.Location, // Sign location
			"mode":     shop.Mode,     // Trade direction
		}).Info("Shop created")
		c.JSON(http.StatusCreated, gin.H{"shop": shop})
	}
}

// ListShopsHandler lists the shops of the authenticated account
func ListShopsHandler(shops db.ShopRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := shops.ListByOwner(c.Request.Context(), middleware.AccountID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"shops": list})
	}
}

// SettleShopHandler trades once with a shop on behalf of the authenticated account
func SettleShopHandler(econ *economy.Service, shops db.ShopRegistry, invs inventory.Provider, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		trader := middleware.AccountID(c)
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid shop id"})
			return
		}
		shop, err := shops.Get(ctx, uint(id))
		if err != nil {
			respondError(c, err)
			return
		}
		if err := econ.ShopSettle(ctx, trader, shop, invs.Purse(trader), invs.Stock(shop.ID)); err != nil {
			respondError(c, err)
			return
		}
		invalidate(ctx, rdb, trader, shop.OwnerID)
		balance, err := econ.Balance(ctx, trader)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":  "Trade settled",
			"shop_id":  shop.ID,
			"mode":     shop.Mode,
			"item_id":  shop.ItemID,
			"quantity": shop.Quantity,
			"price":    shop.Price,
			"balance":  balance,
		})
	}
}
