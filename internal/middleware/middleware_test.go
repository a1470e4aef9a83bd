package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"coin_economy/internal/db"
	"coin_economy/internal/domain"
	"coin_economy/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func init() { gin.SetMode(gin.TestMode) }

func newRouter(users db.UserDirectory) *gin.Engine {
	r := gin.New()
	r.GET("/me", JWTAuthMiddleware(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"account": AccountID(c), "role": c.GetString(RoleKey)})
	})
	r.GET("/admin", JWTAuthMiddleware(secret), AdminOnlyMiddleware(users), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func get(t *testing.T, r http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuthMiddleware(t *testing.T) {
	r := newRouter(db.NewMemoryUsers())

	w := get(t, r, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(t, r, "/me", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := utils.GenerateJWT(1, "acc-1", domain.RoleUser, secret)
	require.NoError(t, err)
	w = get(t, r, "/me", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"account":"acc-1","role":"user"}`, w.Body.String())
}

func TestAdminOnlyMiddleware(t *testing.T) {
	ctx := context.Background()
	users := db.NewMemoryUsers()
	require.NoError(t, users.Create(ctx, &domain.User{Username: "alice", Password: "x", Role: domain.RoleAdmin, AccountID: "acc-admin"}))
	require.NoError(t, users.Create(ctx, &domain.User{Username: "bob", Password: "x", Role: domain.RoleUser, AccountID: "acc-user"}))
	r := newRouter(users)

	admin, _ := utils.GenerateJWT(1, "acc-admin", domain.RoleAdmin, secret)
	assert.Equal(t, http.StatusNoContent, get(t, r, "/admin", admin).Code)

	// A forged role claim does not help: the directory decides
	forged, _ := utils.GenerateJWT(2, "acc-user", domain.RoleAdmin, secret)
	assert.Equal(t, http.StatusForbidden, get(t, r, "/admin", forged).Code)

	unknown, _ := utils.GenerateJWT(3, "acc-ghost", domain.RoleAdmin, secret)
	assert.Equal(t, http.StatusForbidden, get(t, r, "/admin", unknown).Code)
}
