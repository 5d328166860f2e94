package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	myredis "snack_chat_server/internal/dao/redis"
	"snack_chat_server/pkg/errorx"
	"snack_chat_server/pkg/util/jwt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	jwt.Init("middleware-test-secret-middleware", 10)
}

func TestAuthenticateRejectsRevokedToken(t *testing.T) {
	cache := myredis.NewMemoryCache()
	token, tokenID, err := jwt.GenerateAccessToken(7)
	require.NoError(t, err)

	claims, err := Authenticate(context.Background(), cache, token)
	require.NoError(t, err)
	assert.EqualValues(t, 7, claims.UserID)

	require.NoError(t, cache.Set(context.Background(), myredis.RevokedTokenKey(tokenID), "1", time.Minute))
	_, err = Authenticate(context.Background(), cache, token)
	assert.Equal(t, errorx.CodeUnauthorized, errorx.GetCode(err))
}

func TestJWTAuthSetsUserID(t *testing.T) {
	r := gin.New()
	r.GET("/me", JWTAuth(myredis.NewMemoryCache()), func(c *gin.Context) {
		id, ok := CurrentUserID(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, _, err := jwt.GenerateAccessToken(9)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":9}`, w.Body.String())
}

func TestTokenFromRequestFallsBackToQuery(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/wss?token=abc", nil)
	assert.Equal(t, "abc", TokenFromRequest(c))

	c.Request.Header.Set("Authorization", "Bearer xyz")
	assert.Equal(t, "xyz", TokenFromRequest(c))
}
