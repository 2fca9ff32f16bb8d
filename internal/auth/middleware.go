package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	contextUserKey  = "currentUser"
	contextAdminKey = "currentUserIsAdmin"
)

// AdminLookup reports whether a user id carries the admin flag.
type AdminLookup func(ctx context.Context, userID uuid.UUID) (bool, error)

// Middleware resolves bearer tokens into the current user for downstream
// handlers.
type Middleware struct {
	issuer  *TokenIssuer
	isAdmin AdminLookup
}

// NewMiddleware creates the auth middleware.
func NewMiddleware(issuer *TokenIssuer, isAdmin AdminLookup) *Middleware {
	return &Middleware{issuer: issuer, isAdmin: isAdmin}
}

// RequireUser rejects requests without a valid bearer token and stores the
// authenticated user id in the gin context.
func (m *Middleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := m.resolve(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(contextUserKey, userID)
		c.Next()
	}
}

// RequireAdmin additionally checks the admin flag on the user record.
func (m *Middleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := m.resolve(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		admin, err := m.isAdmin(c.Request.Context(), userID)
		if err != nil || !admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}

		c.Set(contextUserKey, userID)
		c.Set(contextAdminKey, true)
		c.Next()
	}
}

// OptionalUser resolves the current user when a token is present but lets
// anonymous requests through. Used on public read endpoints that vary their
// response for team members.
func (m *Middleware) OptionalUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, ok := m.resolve(c); ok {
			c.Set(contextUserKey, userID)
		}
		c.Next()
	}
}

func (m *Middleware) resolve(c *gin.Context) (uuid.UUID, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return uuid.Nil, false
	}
	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return uuid.Nil, false
	}

	userID, err := m.issuer.Verify(tokenString)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}

// CurrentUser returns the authenticated user id stored by the middleware.
func CurrentUser(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(contextUserKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
