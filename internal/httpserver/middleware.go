package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nexus-storefront/internal/domain"
	"nexus-storefront/internal/identity"
)

const (
	headerSessionID      = "X-Session-ID"
	headerIdempotencyKey = "Idempotency-Key"

	ctxIdentity   = "identity"
	ctxToken      = "token"
	ctxSessionKey = "sessionKey"
)

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	// browsers cannot set headers on websocket upgrades
	if c.IsWebsocket() {
		return c.Query("access_token")
	}
	return ""
}

// requireIdentity resolves the bearer token and stores the identity and the
// cart session key on the context. The session key is scoped to the user so
// a leaked X-Session-ID cannot reach another user's cart.
func requireIdentity(provider identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abortError(c, http.StatusUnauthorized, "missing bearer token")
			return
		}
		who, err := provider.CurrentUser(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, identity.ErrUnauthenticated) {
				abortError(c, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			abortError(c, http.StatusInternalServerError, "internal error")
			return
		}

		session := strings.TrimSpace(c.GetHeader(headerSessionID))
		if session == "" {
			session = token
		}
		c.Set(ctxIdentity, who)
		c.Set(ctxToken, token)
		c.Set(ctxSessionKey, who.UID+":"+session)
		c.Next()
	}
}

func requireAdmin(profiles profileService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		who := currentIdentity(c)
		ok, err := profiles.IsAdmin(c.Request.Context(), who.UID)
		if err != nil {
			logger.Error("admin check", zap.String("uid", who.UID), zap.Error(err))
			abortError(c, http.StatusInternalServerError, "internal error")
			return
		}
		if !ok {
			abortError(c, http.StatusForbidden, domain.ErrForbidden.Error())
			return
		}
		c.Next()
	}
}

func currentIdentity(c *gin.Context) *domain.Identity {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return nil
	}
	who, _ := v.(*domain.Identity)
	return who
}

func sessionKey(c *gin.Context) string {
	return c.GetString(ctxSessionKey)
}

func abortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
