package api

import (
	"context"  // Context for Redis operations
	"errors"   // Error matching
	"fmt"      // Error formatting
	"io"       // Empty body detection
	"net/http" // HTTP status codes
	"strconv"  // String conversion

	"coin_economy/internal/db"         // User directory
	"coin_economy/internal/domain"     // Importing domain models
	"coin_economy/internal/economy"    // Transaction orchestrator
	"coin_economy/internal/inventory"  // Purses
	"coin_economy/internal/middleware" // Authenticated account
	"coin_economy/internal/utils"      // Utility functions
	"coin_economy/internal/votes"      // Vote rewards

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// PayRequest names the recipient by username or by account id
type PayRequest struct {
	ToUsername string `json:"to_username"`                // Target username
	ToAccount  string `json:"to_account"`                 // Target account id
	Amount     int64  `json:"amount" binding:"required"` // Coins to send
}

// WithdrawRequest turns balance into physical coins
type WithdrawRequest struct {
	Amount       int64 `json:"amount" binding:"required"` // Coins to withdraw
	Denomination int64 `json:"denomination"`              // Optional coin value to pay out in
}

// DepositRequest turns physical coins into balance
type DepositRequest struct {
	Amount *int64 `json:"amount"` // Omitted deposits every coin held
}

// HistoryView is a history entry with the counterparty resolved for display
type HistoryView struct {
	domain.HistoryEntry
	CounterpartyName string `json:"counterparty_name,omitempty"` // Username of the counterparty
}

// readCache is GetCache that tolerates running without Redis
func readCache(ctx context.Context, rdb redis.UniversalClient, key string, dest any) bool {
	if rdb == nil {
		return false
	}
	found, err := utils.GetCache(ctx, rdb, key, dest)
	return err == nil && found
}

// writeCache is SetCache that tolerates running without Redis
func writeCache(ctx context.Context, rdb redis.UniversalClient, key string, value any) {
	if rdb == nil {
		return
	}
	_ = utils.SetCache(ctx, rdb, key, value, utils.BalanceTTL) // Cache errors only cost a reload
}

// GetBalanceHandler returns the balance of the authenticated account
func GetBalanceHandler(econ *economy.Service, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		accountID := middleware.AccountID(c) // Get account from context
		cacheKey := utils.BalanceCacheKey(accountID)
		var balance int64
		// If found in cache, return it
		if readCache(ctx, rdb, cacheKey, &balance) {
			c.JSON(http.StatusOK, gin.H{"account_id": accountID, "balance": balance, "cached": true})
			return
		}
		balance, err := econ.Balance(ctx, accountID)
		if err != nil {
			respondError(c, err)
			return
		}
		writeCache(ctx, rdb, cacheKey, balance)
		c.JSON(http.StatusOK, gin.H{"account_id": accountID, "balance": balance, "cached": false})
	}
}

// GetHistoryHandler returns the most recent history entries, newest first
func GetHistoryHandler(econ *economy.Service, users db.UserDirectory, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		accountID := middleware.AccountID(c)
		cacheKey := utils.HistoryCacheKey(accountID)
		var views []HistoryView
		if readCache(ctx, rdb, cacheKey, &views) {
			c.JSON(http.StatusOK, gin.H{"history": views, "cached": true})
			return
		}
		views, err := historyViews(ctx, econ, users, accountID)
		if err != nil {
			respondError(c, err)
			return
		}
		writeCache(ctx, rdb, cacheKey, views)
		c.JSON(http.StatusOK, gin.H{"history": views, "cached": false})
	}
}

// historyViews loads an account history and resolves counterparty names
func historyViews(ctx context.Context, econ *economy.Service, users db.UserDirectory, accountID string) ([]HistoryView, error) {
	entries, err := econ.History(ctx, accountID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string) // Resolve each counterparty once
	views := make([]HistoryView, len(entries))
	for i, e := range entries {
		views[i] = HistoryView{HistoryEntry: e}
		if e.Counterparty == "" {
			continue
		}
		name, ok := names[e.Counterparty]
		if !ok {
			name = users.DisplayName(ctx, e.Counterparty)
			names[e.Counterparty] = name
		}
		views[i].CounterpartyName = name
	}
	return views, nil
}

// PayHandler moves balance from the authenticated account to another
func PayHandler(econ *economy.Service, users db.UserDirectory, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		sender := middleware.AccountID(c)
		var req PayRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		recipient := req.ToAccount
		if req.ToUsername != "" {
			user, err := users.ByUsername(ctx, req.ToUsername)
			if err != nil {
				respondError(c, err)
				return
			}
			recipient = user.AccountID
		}
		if recipient == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to_username or to_account is required"})
			return
		}
		if err := econ.Pay(ctx, sender, recipient, req.Amount); err != nil {
			respondError(c, err)
			return
		}
		invalidate(ctx, rdb, sender, recipient) // Both balances changed
		balance, err := econ.Balance(ctx, sender)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Payment successful", "balance": balance})
	}
}

// WithdrawHandler pays balance out as coins into the account purse
func WithdrawHandler(econ *economy.Service, invs inventory.Provider, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		accountID := middleware.AccountID(c)
		var req WithdrawRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var denom *domain.Denomination // Nil means fewest coins
		if req.Denomination != 0 {
			d, ok := econ.Reconciler().Catalog().ByValue(req.Denomination)
			if !ok {
				respondError(c, fmt.Errorf("%w: %d", domain.ErrUnknownDenomination, req.Denomination))
				return
			}
			denom = &d
		}
		plan, err := econ.Withdraw(ctx, accountID, invs.Purse(accountID), req.Amount, denom)
		if err != nil {
			respondError(c, err)
			return
		}
		invalidate(ctx, rdb, accountID)
		balance, err := econ.Balance(ctx, accountID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"withdrawn": plan.Total(), "coins": plan, "balance": balance})
	}
}

// DepositHandler takes coins out of the account purse and credits them
func DepositHandler(econ *economy.Service, invs inventory.Provider, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		accountID := middleware.AccountID(c)
		var req DepositRequest
		// An empty body deposits everything
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		credited, err := econ.Deposit(ctx, accountID, invs.Purse(accountID), req.Amount)
		if err != nil {
			respondError(c, err)
			return
		}
		invalidate(ctx, rdb, accountID)
		balance, err := econ.Balance(ctx, accountID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deposited": credited, "balance": balance})
	}
}

// CoinsHandler counts the coins held in the account purse
func CoinsHandler(econ *economy.Service, invs inventory.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := middleware.AccountID(c)
		held, err := econ.Reconciler().Snapshot(c.Request.Context(), invs.Purse(accountID))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, econ.Reconciler().CountInventory(held))
	}
}

// BreakdownHandler shows how an amount would be paid out in fewest coins
func BreakdownHandler(econ *economy.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		amount, err := strconv.ParseInt(c.Query("amount"), 10, 64)
		if err != nil || amount < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a non-negative integer"})
			return
		}
		plan := econ.Reconciler().DecomposeGreedy(amount)
		c.JSON(http.StatusOK, gin.H{"amount": amount, "covered": plan.Total(), "coins": plan})
	}
}

// PendingVotesHandler lists unclaimed vote rewards
func PendingVotesHandler(vs *votes.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rewards, err := vs.Pending(c.Request.Context(), middleware.AccountID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		var total int64
		for _, r := range rewards {
			total += r.Amount
		}
		c.JSON(http.StatusOK, gin.H{"rewards": rewards, "total": total})
	}
}

// ClaimVotesHandler credits every unclaimed vote reward
func ClaimVotesHandler(vs *votes.Service, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		accountID := middleware.AccountID(c)
		paid, err := vs.Claim(ctx, accountID)
		if paid > 0 {
			invalidate(ctx, rdb, accountID)
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"account_id": accountID, // Claiming account
				"paid":       paid,      // Paid before the failure
			}).WithError(err).Warn("Vote claim interrupted")
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"claimed": paid})
	}
}
