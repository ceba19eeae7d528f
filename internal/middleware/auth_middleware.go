package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/loadlink/loadlink-backend/internal/models"
	"github.com/loadlink/loadlink-backend/internal/utils"
	"github.com/loadlink/loadlink-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
)

// UserContextKey is the key used to store user information in Gin context
const UserContextKey = "user"

// UserContext represents the authenticated user's information
type UserContext struct {
	UserID uuid.UUID       `json:"user_id"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
}

func abortUnauthorized(c *gin.Context, detail, code string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"detail": detail,
		"code":   code,
	})
}

// AuthMiddleware creates a middleware that validates JWT access tokens
func AuthMiddleware(jwtService *jwt.Service, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		fields := logrus.Fields{"path": c.Request.URL.Path, "ip": c.ClientIP()}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.WithFields(fields).Debug("Auth failed: missing authorization header")
			abortUnauthorized(c, "Authorization header is required", "MISSING_AUTH_HEADER")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			logger.WithFields(fields).Debug("Auth failed: invalid authorization format")
			abortUnauthorized(c, "Invalid authorization header format. Expected: Bearer <token>", "INVALID_AUTH_FORMAT")
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			abortUnauthorized(c, "Token cannot be empty", "INVALID_AUTH_FORMAT")
			return
		}

		claims, err := jwtService.ValidateAccessToken(tokenString)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				logger.WithFields(fields).Info("Auth failed: token expired")
				abortUnauthorized(c, "Access token has expired. Please refresh your token.", "TOKEN_EXPIRED")
				return
			}
			logger.WithFields(fields).WithError(err).Warn("Auth failed: invalid token")
			abortUnauthorized(c, "Invalid access token", "INVALID_TOKEN")
			return
		}

		c.Set(UserContextKey, UserContext{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   models.UserRole(claims.Role),
		})
		c.Next()
	}
}

// RequireRole creates a middleware that checks if user has one of roles
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			abortUnauthorized(c, "User context not found. Auth middleware may not be applied.", "MISSING_USER_CONTEXT")
			return
		}

		for _, role := range roles {
			if userCtx.Role == role {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"detail": "You don't have permission to access this resource",
			"code":   "INSUFFICIENT_PERMISSIONS",
		})
	}
}

// GetUserContext retrieves the user context from Gin context
func GetUserContext(c *gin.Context) (UserContext, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return UserContext{}, false
	}

	userCtx, ok := value.(UserContext)
	return userCtx, ok
}

// Actor builds the service-layer actor for the authenticated request
func Actor(c *gin.Context) (models.Actor, bool) {
	userCtx, ok := GetUserContext(c)
	if !ok {
		return models.Actor{}, false
	}
	return models.Actor{
		UserID:    userCtx.UserID,
		Role:      userCtx.Role,
		IP:        utils.GetRealIP(c),
		UserAgent: utils.GetUserAgent(c),
	}, true
}
