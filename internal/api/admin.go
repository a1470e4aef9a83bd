package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"strings"  // String manipulation

	"coin_economy/internal/db"         // User directory and shop registry
	"coin_economy/internal/economy"    // Transaction orchestrator
	"coin_economy/internal/middleware" // Authenticated account
	"coin_economy/internal/utils"      // Cache keys
	"coin_economy/internal/votes"      // Vote rewards

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// Balance operations accepted by AdjustBalanceHandler
const (
	OpSet      = "set"
	OpAdd      = "add"
	OpSubtract = "subtract"
)

// AdjustBalanceRequest overrides an account balance
type AdjustBalanceRequest struct {
	Op     string `json:"op" binding:"required,oneof=set add subtract"` // set, add or subtract
	Amount int64  `json:"amount"`                                       // Amount applied by op
}

// VoteRequest is a vote reported by a server list
type VoteRequest struct {
	Username string `json:"username"`                   // Voting player
	Account  string `json:"account"`                    // Or the player's account id
	Service  string `json:"service" binding:"required"` // Server list the vote came from
	Online   bool   `json:"online"`                     // Player is online and can be credited now
}

// AccountAdminResponse represents the account data returned to admin
type AccountAdminResponse struct {
	AccountID string `json:"account_id"` // Ledger account
	Username  string `json:"username"`   // Owning user, or the account id
	Balance   int64  `json:"balance"`    // Current balance
}

// GetAccountHandler returns one account with its owner and balance
func GetAccountHandler(econ *economy.Service, users db.UserDirectory, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		accountID := c.Param("id")
		balance, err := econ.Balance(ctx, accountID)
		if err != nil {
			respondError(c, err)
			return
		}
		writeCache(ctx, rdb, utils.BalanceCacheKey(accountID), balance)
		c.JSON(http.StatusOK, AccountAdminResponse{
			AccountID: accountID,
			Username:  users.DisplayName(ctx, accountID),
			Balance:   balance,
		})
	}
}

// AdjustBalanceHandler applies a set, add or subtract override
func AdjustBalanceHandler(econ *economy.Service, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		accountID := c.Param("id")
		var req AdjustBalanceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var err error
		switch req.Op {
		case OpSet:
			err = econ.AdminSet(ctx, accountID, req.Amount)
		case OpAdd:
			err = econ.AdminAdd(ctx, accountID, req.Amount)
		case OpSubtract:
			err = econ.AdminSubtract(ctx, accountID, req.Amount)
		}
		if err != nil {
			respondError(c, err)
			return
		}
		invalidate(ctx, rdb, accountID)
		audit(c, "Balance override", logrus.Fields{"account_id": accountID, "op": req.Op, "amount": req.Amount})
		balance, err := econ.Balance(ctx, accountID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"account_id": accountID, "balance": balance})
	}
}

// AccountHistoryHandler returns a page of an account history, newest first
func AccountHistoryHandler(econ *economy.Service, users db.UserDirectory) gin.HandlerFunc {
	return func(c *gin.Context) {
		views, err := historyViews(c.Request.Context(), econ, users, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		page := 1      // Default page number
		pageSize := 20 // Default page size
		if p := c.Query("page"); p != "" {
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v // Set page if valid
			}
		}
		// Check and set page size within limits
		if ps := c.Query("page_size"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
				pageSize = v // Set page size
			}
		}
		total := len(views)
		start := min((page-1)*pageSize, total) // Clamp offset to the history length
		end := min(start+pageSize, total)
		c.JSON(http.StatusOK, gin.H{
			"history":     views[start:end],                   // Entries on this page
			"page":        page,                               // Current page
			"page_size":   pageSize,                           // Page size
			"total":       total,                              // Entries kept for the account
			"total_pages": (total + pageSize - 1) / pageSize, // Total pages
		})
	}
}

// ResetAccountHandler wipes an account balance and history
func ResetAccountHandler(econ *economy.Service, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		accountID := c.Param("id")
		if err := econ.ResetAccount(ctx, accountID); err != nil {
			respondError(c, err)
			return
		}
		invalidate(ctx, rdb, accountID)
		audit(c, "Account reset", logrus.Fields{"account_id": accountID})
		c.JSON(http.StatusOK, gin.H{"message": "Account reset"})
	}
}

// ListShopsByOwnerHandler lists the shops of any account
func ListShopsByOwnerHandler(shops db.ShopRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := strings.TrimSpace(c.Query("owner"))
		if owner == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "owner is required"})
			return
		}
		list, err := shops.ListByOwner(c.Request.Context(), owner)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"owner": owner, "shops": list})
	}
}

// RecordVoteHandler accepts a vote and credits or queues its reward
func RecordVoteHandler(vs *votes.Service, users db.UserDirectory, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var req VoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		accountID := req.Account
		if req.Username != "" {
			user, err := users.ByUsername(ctx, req.Username)
			if err != nil {
				respondError(c, err)
				return
			}
			accountID = user.AccountID
		}
		if accountID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username or account is required"})
			return
		}
		outcome, err := vs.Record(ctx, accountID, req.Service, req.Online)
		if err != nil {
			if errors.Is(err, votes.ErrDuplicateVote) {
				c.JSON(http.StatusConflict, gin.H{"error": "Vote already counted"})
				return
			}
			respondError(c, err)
			return
		}
		if outcome == votes.Credited {
			invalidate(ctx, rdb, accountID)
		}
		c.JSON(http.StatusAccepted, gin.H{"account_id": accountID, "service": req.Service, "outcome": outcome})
	}
}

// audit logs an admin action with the acting account
func audit(c *gin.Context, msg string, fields logrus.Fields) {
	fields["admin_account_id"] = middleware.AccountID(c) // Acting admin
	logrus.WithFields(fields).Info(msg)
}
