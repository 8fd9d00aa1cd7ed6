package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vidswitch/backend/internal/auth"
	"github.com/vidswitch/backend/pkg/response"
)

const (
	// ContextUserID is the key for the authenticated identity's database id in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for the identity role in gin context.
	ContextUserRole = "user_role"
	// ContextUserLabel is the key for the human-readable identity (participant_id or email).
	ContextUserLabel = "user_label"
)

// JWT returns a middleware that validates JWT and sets identity claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserLabel, claims.Label)
		c.Next()
	}
}
