// Package middleware contains the gin middleware guarding protected routes.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vidtube/vidtube-backend/internal/domain"
	"github.com/vidtube/vidtube-backend/internal/httpx"
	"github.com/vidtube/vidtube-backend/internal/repo"
	"github.com/vidtube/vidtube-backend/internal/token"
)

const (
	// AccessTokenCookie is the cookie carrying the access token.
	AccessTokenCookie = "accessToken"

	contextKeyUser = "authUser"
)

// SetCurrentUser attaches the resolved identity to the request context.
func SetCurrentUser(c *gin.Context, user domain.PublicUser) {
	c.Set(contextKeyUser, user)
}

// CurrentUser returns the identity attached by RequireAuth.
func CurrentUser(c *gin.Context) (domain.PublicUser, bool) {
	v, ok := c.Get(contextKeyUser)
	if !ok {
		return domain.PublicUser{}, false
	}
	user, ok := v.(domain.PublicUser)
	return user, ok
}

// RequireAuth verifies the access token from the accessToken cookie or the
// Authorization: Bearer header, resolves it to a stored user, and attaches
// the public projection to the request context. It never mutates state.
func RequireAuth(tokens *token.Manager, users repo.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := accessToken(c)
		if tokenStr == "" {
			httpx.AbortError(c, 401, "Unauthorized Request")
			return
		}

		claims, err := tokens.ParseAccess(tokenStr)
		if err != nil {
			httpx.AbortError(c, 401, "Invalid Access Token")
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UID)
		if err != nil {
			// Covers both a deleted account and a store failure; neither
			// may let the request through.
			httpx.AbortError(c, 401, "Invalid Access Token")
			return
		}

		SetCurrentUser(c, user.Public())
		c.Next()
	}
}

func accessToken(c *gin.Context) string {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie
	}
	return bearerToken(c.GetHeader("Authorization"))
}

func bearerToken(value string) string {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return ""
	}
	return value[len(bearer):]
}
