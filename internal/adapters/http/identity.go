package http

import (
	"net/http"
	"strings"

	"github.com/GKAANU/Sonox-panel/internal/adapters/signal"
	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const sessionUserKey = "uid"

// UserIdentityMiddleware resolves the caller's stable user id without auth:
// the "uid" query parameter wins, then the cookie session, then a fresh id.
// The result is stored back into the session so reconnects keep it.
func UserIdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)

		raw := c.Query("uid")
		if raw == "" {
			if v, ok := sess.Get(sessionUserKey).(string); ok {
				raw = v
			}
		}
		uid, err := domain.ParseUserID(raw)
		if err != nil {
			uid = domain.NewUserID()
		}
		if sess.Get(sessionUserKey) != string(uid) {
			sess.Set(sessionUserKey, string(uid))
			if err := sess.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		}
		c.Set(signal.UserIDKey, string(uid))
		c.Next()
	}
}

type Claims struct {
	jwt.RegisteredClaims
}

// JWTAuthMiddleware requires an HMAC-signed token (Authorization bearer or
// "token" query parameter, since browsers cannot set headers on WebSocket
// upgrades). The "sub" claim becomes the stable user id.
func JWTAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			log.Warn().Err(err).Str("module", "adapters.http").Str("ip", c.ClientIP()).Msg("invalid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		uid, err := domain.ParseUserID(claims.Subject)
		if err != nil {
			log.Warn().Str("module", "adapters.http").Str("ip", c.ClientIP()).Msg("token without usable sub claim")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(signal.UserIDKey, string(uid))
		c.Next()
	}
}
