package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shaj13/libcache"

	// Provides libcache.LRU
	_ "github.com/shaj13/libcache/lru"

	"github.com/dbt-cloudrun/config"
	"github.com/dbt-cloudrun/dto"
	"github.com/dbt-cloudrun/logging"
	"github.com/dbt-cloudrun/services"
)

// CallerKey is the gin context key holding who authenticated the request
const CallerKey = "caller"

const (
	verifiedKeyCacheSize = 16
	verifiedKeyTTL       = 10 * time.Minute
)

// AuthMiddleware requires an X-API-Key or a bearer token once either API_KEY_HASH or
// JWT_SECRET is configured. Without both it lets every request through.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	// bcrypt is slow on purpose, so keys that already matched skip it for a while
	verified := libcache.LRU.New(verifiedKeyCacheSize)
	verified.SetTTL(verifiedKeyTTL)

	return func(c *gin.Context) {
		if !cfg.AuthEnabled() {
			c.Next()
			return
		}

		logger := logging.Log(c.Request.Context())

		if key := c.GetHeader("X-API-Key"); key != "" && cfg.APIKeyHash != "" {
			digest := keyDigest(key)
			if _, ok := verified.Load(digest); !ok {
				if err := services.CompareAPIKey(cfg.APIKeyHash, key); err != nil {
					logger.Warn().Msg("Rejected request with invalid API key")
					unauthorized(c, "Invalid API key")
					return
				}
				verified.Store(digest, true)
			}

			c.Set(CallerKey, "api-key")
			c.Next()
			return
		}

		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") && cfg.JWTSecret != "" {
			claims, err := services.ValidateToken(strings.TrimPrefix(header, "Bearer "), cfg.JWTSecret)
			if err != nil {
				logger.Warn().Err(err).Msg("Rejected request with invalid token")
				unauthorized(c, "Invalid token")
				return
			}

			c.Set(CallerKey, claims.Subject)
			c.Next()
			return
		}

		unauthorized(c, "Authentication required")
	}
}

func keyDigest(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func unauthorized(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Detail: detail})
}
