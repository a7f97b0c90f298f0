package middleware

import (
	"context"

	"github.com/SscSPs/sledge/internal/core/domain"
	"github.com/gin-gonic/gin"
)

type contextKey string

// userIDKey is the key used to store the authenticated user's ID in the request context.
const userIDKey = contextKey("userID")

// WithUserID returns a copy of ctx carrying the authenticated user.
func WithUserID(ctx context.Context, user domain.UserID) context.Context {
	return context.WithValue(ctx, userIDKey, user)
}

// GetUserIDFromContext retrieves the authenticated user ID from the request context.
// It returns the user ID and a boolean indicating if it was found.
func GetUserIDFromContext(c *gin.Context) (domain.UserID, bool) {
	user, ok := c.Request.Context().Value(userIDKey).(domain.UserID)
	if !ok || user == "" {
		return "", false
	}
	return user, true
}
