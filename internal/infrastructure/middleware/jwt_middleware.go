package middleware

import (
	"context"
	"net/http"
	"strings"

	myredis "snack_chat_server/internal/dao/redis"
	"snack_chat_server/pkg/errorx"
	"snack_chat_server/pkg/util/jwt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContextUserID / ContextClaims 认证成功后写入 gin.Context 的键
const (
	ContextUserID = "user_id"
	ContextClaims = "claims"
)

// JWTAuth JWT 认证中间件
// 验证 Access Token 并将用户信息存入上下文
func JWTAuth(cache myredis.CacheService) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 从 Header 获取 Token
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "请先登录")
			return
		}

		// 2. 解析 Bearer Token
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "Token 格式错误，请使用 Bearer Token")
			return
		}

		// 3. 验证 Token
		claims, err := Authenticate(c.Request.Context(), cache, parts[1])
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		// 4. 将用户信息存入上下文，供后续 Handler 使用
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// Authenticate 校验签名、过期时间、subject，并确认 token 未被注销
// WebSocket 握手与 HTTP 中间件共用
func Authenticate(ctx context.Context, cache myredis.CacheService, token string) (*jwt.Claims, error) {
	claims, err := jwt.ParseToken(token)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeUnauthorized, "Token 已过期或无效，请重新登录")
	}
	if claims.Subject != jwt.SubjectAccessToken {
		return nil, errorx.New(errorx.CodeUnauthorized, "请使用 Access Token 访问此接口")
	}
	if cache != nil && claims.TokenID != "" {
		revoked, err := cache.Exists(ctx, myredis.RevokedTokenKey(claims.TokenID))
		if err != nil {
			// Redis 不可用时放行，只记录日志
			zap.L().Warn("check revoked token failed", zap.Error(err))
		} else if revoked {
			return nil, errorx.New(errorx.CodeUnauthorized, "Token 已注销，请重新登录")
		}
	}
	return claims, nil
}

// TokenFromRequest 依次从 Authorization 头和 ?token= 查询参数取 token
// 浏览器的 WebSocket API 无法设置请求头，只能走查询参数
func TokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}

// CurrentUserID 从上下文取当前用户 ID
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code": errorx.CodeUnauthorized,
		"msg":  msg,
	})
}
