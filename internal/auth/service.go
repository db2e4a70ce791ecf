package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/iotsentry/iotsentry/internal/config"
	"github.com/iotsentry/iotsentry/internal/types"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

// Service authenticates statically provisioned users and issues JWT access
// tokens. When disabled (the default), the middleware passes everything
// through and the API is open.
type Service struct {
	enabled bool
	users   map[string]config.UserConfig
	jwt     *JWTHandler
	hasher  *PasswordHasher
	logger  *zap.Logger
}

func NewService(cfg config.AuthConfig, logger *zap.Logger) *Service {
	users := make(map[string]config.UserConfig, len(cfg.Users))
	for _, user := range cfg.Users {
		users[user.Username] = user
	}

	if cfg.Enabled && !cfg.IsProductionReady() {
		logger.Warn("Auth is enabled with a development JWT secret")
	}

	return &Service{
		enabled: cfg.Enabled,
		users:   users,
		jwt:     NewJWTHandler(cfg.GetJWTSecret(), cfg.AccessTokenTTL),
		hasher:  NewPasswordHasher(),
		logger:  logger,
	}
}

func (s *Service) Enabled() bool {
	return s.enabled
}

// Login verifies credentials and returns an access token.
func (s *Service) Login(username, password string) (string, error) {
	user, exists := s.users[username]
	if !exists {
		return "", fmt.Errorf("invalid credentials")
	}

	ok, err := s.hasher.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		s.logger.Warn("Login failed", zap.String("username", username))
		return "", fmt.Errorf("invalid credentials")
	}

	token, err := s.jwt.GenerateAccessToken(user.Username, user.Role)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("User logged in",
		zap.String("username", username),
		zap.String("role", user.Role))

	return token, nil
}

// ValidateToken parses a bearer token and returns its claims.
func (s *Service) ValidateToken(token string) (*JWTClaims, error) {
	return s.jwt.ValidateAccessToken(token)
}

// Middleware extracts and validates the Authorization header. A no-op when
// auth is disabled.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.enabled {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse("AUTH_401", "Missing bearer token", nil))
			return
		}

		claims, err := s.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse("AUTH_401", "Invalid or expired token", nil))
			return
		}

		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RequireRole gates a route on the caller's role. Admins pass every gate.
func (s *Service) RequireRole(role Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.enabled {
			c.Next()
			return
		}

		callerRole, _ := c.Get("role")
		if callerRole == string(RoleAdmin) || callerRole == string(role) {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusForbidden,
			types.NewErrorResponse("AUTH_403", "Insufficient permissions", nil))
	}
}
