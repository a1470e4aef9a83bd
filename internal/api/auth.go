package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"regexp"   // Regular expressions
	"strings"  // String manipulation

	"coin_economy/internal/db"      // User directory
	"coin_economy/internal/domain"  // Importing domain models
	"coin_economy/internal/economy" // Ledger account setup
	"coin_economy/internal/utils"   // Utility functions

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/google/uuid"     // Account identifiers
	"github.com/sirupsen/logrus" // Logging library
	"golang.org/x/crypto/bcrypt" // Password hashing
)

// Request and Response structs
type RegisterRequest struct {
	Username string `json:"username" binding:"required"` // Username must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// Request struct for login
type LoginRequest struct {
	Username string `json:"username" binding:"required"` // Username must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// Response struct for authentication
type AuthResponse struct {
	Token     string `json:"token"`      // JWT token
	AccountID string `json:"account_id"` // Ledger account of the user
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z]+$`)

// isValidUsername checks if the username contains only alphabetic characters
func isValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// isValidPassword checks if the password length is between 8 and 15 characters
func isValidPassword(password string) bool {
	return len(password) >= 8 && len(password) <= 15 // Return true if length is valid
}

// RegisterHandler creates a user together with its ledger account
func RegisterHandler(users db.UserDirectory, econ *economy.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		// Validate username and password
		if !isValidUsername(req.Username) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username must be alphabetic only"})
			return
		}
		if !isValidPassword(req.Password) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be 8-15 characters"})
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		// Lowercase username keeps logins case insensitive
		user := domain.User{
			Username:  strings.ToLower(req.Username),
			Password:  string(hash),
			Role:      domain.RoleUser,
			AccountID: uuid.NewString(),
		}
		if err := users.Create(c.Request.Context(), &user); err != nil {
			if errors.Is(err, db.ErrUserExists) {
				c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
				return
			}
			respondError(c, err)
			return
		}
		// First read creates the account with the starting balance
		balance, err := econ.Balance(c.Request.Context(), user.AccountID)
		if err != nil {
			respondError(c, err)
			return
		}
		logrus.WithFields(logrus.Fields{
			"username":   user.Username,  // New username
			"account_id": user.AccountID, // New ledger account
			"balance":    balance,        // Starting balance
		}).Info("User registered")
		c.JSON(http.StatusCreated, gin.H{
			"message":    "User registered successfully",
			"account_id": user.AccountID,
			"balance":    balance,
		})
	}
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(users db.UserDirectory, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		user, err := users.ByUsername(c.Request.Context(), req.Username)
		if err != nil {
			// Unknown user and wrong password look the same
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		token, err := utils.GenerateJWT(user.ID, user.AccountID, user.Role, jwtSecret)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		c.JSON(http.StatusOK, AuthResponse{Token: token, AccountID: user.AccountID})
	}
}
