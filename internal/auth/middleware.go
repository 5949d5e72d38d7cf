package auth

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// RequireBasicAuth は Basic 認証を検証するミドルウェアを返します。
// 同じクライアントから一定回数失敗すると一定時間 429 を返します。
func (m *Manager) RequireBasicAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := m.ensureCredentials(); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    "SERVER_MISCONFIGURATION",
				"message": err.Error(),
			})
			return
		}

		ip := c.ClientIP()
		if retryAfter := m.checkLock(ip); retryAfter > 0 {
			// Retry-After は秒数で返す
			c.Header("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds())+1, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    "TOO_MANY_ATTEMPTS",
				"message": "一定時間後に再度お試しください",
			})
			return
		}

		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "認証が必要です",
			})
			return
		}

		if !m.verify(username, password) {
			remaining := m.recordFailure(ip)
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":              "INVALID_CREDENTIALS",
				"message":           "ユーザー名またはパスワードが正しくありません",
				"remainingAttempts": remaining,
			})
			return
		}

		m.resetAttempts(ip)
		c.Set(ContextUserKey, username)
		c.Next()
	}
}
