package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/logger"
	"go.uber.org/zap"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "

	sessionsKey = "sessions"
)

// TokenVerifier turns a bearer token into the caller's identity.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Sessions is the cookie session used for anonymous carts and notifications.
type Sessions interface {
	SessionKey(w http.ResponseWriter, r *http.Request) (string, error)
	AddFlash(w http.ResponseWriter, r *http.Request, message string) error
	Flashes(w http.ResponseWriter, r *http.Request) ([]string, error)
}

// Authenticate resolves the caller. A bearer token must verify; without
// one the visitor is anonymous and identified by the session cookie, which
// is minted on first use.
func Authenticate(tokens TokenVerifier, sessions Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(sessionsKey, sessions)

		var id auth.Identity
		if header := c.GetHeader(authHeader); header != "" {
			if !strings.HasPrefix(header, bearerPrefix) {
				abortWith(c, http.StatusUnauthorized, CodeUnauthorized, "invalid authorization header format")
				return
			}
			verified, err := tokens.Verify(strings.TrimPrefix(header, bearerPrefix))
			if err != nil {
				abortWith(c, http.StatusUnauthorized, CodeUnauthorized, err.Error())
				return
			}
			id = verified
		} else {
			key, err := sessions.SessionKey(c.Writer, c.Request)
			if err != nil {
				logger.FromGin(c).Warn("session unavailable", zap.Error(err))
			}
			id.SessionKey = key
		}

		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

func identity(c *gin.Context) auth.Identity {
	return auth.FromContext(c.Request.Context())
}

func notify(c *gin.Context, message string) {
	v, ok := c.Get(sessionsKey)
	if !ok || message == "" {
		return
	}
	sessions, ok := v.(Sessions)
	if !ok {
		return
	}
	if err := sessions.AddFlash(c.Writer, c.Request, message); err != nil {
		logger.FromGin(c).Warn("notification not stored", zap.Error(err))
	}
}
