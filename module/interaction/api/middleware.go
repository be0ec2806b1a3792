package api

import (
	"net/http"
	"strings"

	"SocialSync/tools/errs"
	"SocialSync/tools/security"

	"github.com/gin-gonic/gin"
)

// —— context key ——
const (
	CtxUserKey    = "userId"    // string
	CtxSessionKey = "sessionId" // string，可选：X-Session-Id 头
)

// AuthMiddleware 解析 Authorization: Bearer，把已认证身份写入 context。
// 本核心信任该身份，不做账号体系。
func AuthMiddleware(opts security.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token = strings.TrimSpace(authz[len("bearer "):])
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, failEnvelope(errs.ErrTokenInvalid))
			return
		}
		userID, err := security.Verify(opts, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, failEnvelope(errs.ErrTokenInvalid))
			return
		}
		c.Set(CtxUserKey, userID)
		// 发起会话ID用于回声抑制，可缺省
		if sid := strings.TrimSpace(c.GetHeader("X-Session-Id")); sid != "" {
			c.Set(CtxSessionKey, sid)
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(CtxUserKey)
}

func originSession(c *gin.Context) string {
	return c.GetString(CtxSessionKey)
}
