package middleware

import (
	"net/http" // HTTP status codes

	"coin_economy/internal/db"     // User directory
	"coin_economy/internal/domain" // Role constants

	"github.com/gin-gonic/gin" // Gin web framework
)

// AdminOnlyMiddleware checks the user's role from the database on each request
func AdminOnlyMiddleware(users db.UserDirectory) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := AccountID(c) // Get account from context
		// Check if the account exists in context
		if accountID == "" {
			// If not, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		// Fetch user from the directory; the token's role claim is not trusted
		user, err := users.ByAccount(c.Request.Context(), accountID)
		if err != nil {
			// If user not found or any error, abort with forbidden status
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		// Check if user role is admin
		if user.Role != domain.RoleAdmin {
			// If not admin, abort with forbidden status
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		// If admin, proceed to the next handler
		c.Next()
	}
}
