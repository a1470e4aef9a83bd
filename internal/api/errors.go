package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes

	"coin_economy/internal/db"      // Directory and registry errors
	"coin_economy/internal/domain"  // Error kinds
	"coin_economy/internal/economy" // Template errors
	"coin_economy/internal/votes"   // Vote errors

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// statusFor maps an error kind to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrNotDivisible),
		errors.Is(err, domain.ErrSameAccount),
		errors.Is(err, domain.ErrInvalidKind),
		errors.Is(err, domain.ErrUnknownDenomination),
		errors.Is(err, economy.ErrInvalidTemplate):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrShopNotFound),
		errors.Is(err, db.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInsufficientCoins),
		errors.Is(err, domain.ErrNotExactChange),
		errors.Is(err, domain.ErrOutOfStock),
		errors.Is(err, domain.ErrInventoryFull),
		errors.Is(err, domain.ErrBalanceOverflow),
		errors.Is(err, db.ErrLocationTaken),
		errors.Is(err, db.ErrUserExists),
		errors.Is(err, votes.ErrDuplicateVote):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPersistenceUnavailable),
		errors.Is(err, domain.ErrLedgerClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": msg} with the status of err's kind
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		logrus.WithFields(logrus.Fields{
			"path":  c.FullPath(), // Route that failed
			"error": err.Error(),  // Error message
		}).Error("Request failed")
		msg = "Internal server error" // Do not leak internals
	case http.StatusServiceUnavailable:
		logrus.WithFields(logrus.Fields{
			"path":  c.FullPath(),
			"error": err.Error(),
		}).Error("Ledger unavailable")
		msg = domain.ErrPersistenceUnavailable.Error()
	}
	c.JSON(status, gin.H{"error": msg})
}
