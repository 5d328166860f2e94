package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// TlsHandler 将 HTTP 请求重定向到 HTTPS，由 mainConfig.tlsRedirect 开启
func TlsHandler(host string, port int) gin.HandlerFunc {
	// 在返回函数之前初始化，避免每次请求都重复创建对象
	secureMiddleware := secure.New(secure.Options{
		SSLRedirect: true,
		SSLHost:     host + ":" + strconv.Itoa(port),
	})

	return func(c *gin.Context) {
		// 需要重定向时 Process 已写出 302 并返回 error
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			zap.L().Debug("TLS redirection", zap.Error(err))
			c.Abort()
			return
		}
		c.Next()
	}
}
