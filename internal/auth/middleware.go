package auth

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// TokenHeader carries the shared API secret
const TokenHeader = "x-auth-token"

const claimsKey = "claims"

// PublicPaths are never subject to the shared secret check
var PublicPaths = []string{"/", "/health", "/metrics", "/api/v1/auth/login"}

// AuthMiddleware handles authentication for protected routes
type AuthMiddleware struct {
	authService   *AuthService
	secretToken   string
	basicUsername string
	basicPassword string
	public        map[string]bool
	logger        zerolog.Logger
}

// MiddlewareConfig configures the shared secret and basic auth checks
type MiddlewareConfig struct {
	SecretToken   string
	BasicUsername string
	BasicPassword string
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authService *AuthService, config MiddlewareConfig) *AuthMiddleware {
	public := make(map[string]bool, len(PublicPaths))
	for _, p := range PublicPaths {
		public[p] = true
	}

	return &AuthMiddleware{
		authService:   authService,
		secretToken:   config.SecretToken,
		basicUsername: config.BasicUsername,
		basicPassword: config.BasicPassword,
		public:        public,
		logger:        zerolog.New(os.Stdout).With().Timestamp().Str("component", "auth").Logger(),
	}
}

// SetLogger sets the logger
func (m *AuthMiddleware) SetLogger(logger zerolog.Logger) {
	m.logger = logger
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"code": status, "msg": msg})
}

// TokenRequired checks the shared secret header on every non-public path and
// answers 403 on mismatch. It is a no-op when no secret is configured.
func (m *AuthMiddleware) TokenRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.secretToken == "" || m.public[c.Request.URL.Path] {
			c.Next()
			return
		}

		token := c.GetHeader(TokenHeader)
		if token == "" || !secretMatches(m.secretToken, token) {
			m.logger.Warn().Str("path", c.Request.URL.Path).Str("client_ip", c.ClientIP()).Msg("Invalid auth token")
			abort(c, http.StatusForbidden, "Permission Denied: Invalid Secret Token")
			return
		}
		c.Next()
	}
}

// BasicAuthEnabled reports whether both basic auth credentials are configured
func (m *AuthMiddleware) BasicAuthEnabled() bool {
	return m.basicUsername != "" && m.basicPassword != ""
}

// BasicAuth requires HTTP basic auth when it is configured
func (m *AuthMiddleware) BasicAuth() gin.HandlerFunc {
	if !m.BasicAuthEnabled() {
		return func(c *gin.Context) { c.Next() }
	}
	return gin.BasicAuth(gin.Accounts{m.basicUsername: m.basicPassword})
}

// AdminRequired enforces an admin bearer token
func (m *AuthMiddleware) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get token from Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "Authorization header required")
			return
		}

		// Extract token from Bearer format
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			abort(c, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		claims, err := m.authService.ValidateToken(tokenString)
		if err != nil {
			m.logger.Warn().Err(err).Msg("Invalid token")
			abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// GetClaims returns the validated admin claims from context
func GetClaims(c *gin.Context) (*Claims, bool) {
	v, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}
