package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vidtube/vidtube-backend/internal/config"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// CookieHelper manages the auth cookie pair.
type CookieHelper struct {
	config config.CookieConfig
}

func NewCookieHelper(cfg config.CookieConfig) *CookieHelper {
	return &CookieHelper{config: cfg}
}

// SetAuthCookies sets both token cookies with max-ages matching the token TTLs.
func (h *CookieHelper) SetAuthCookies(c *gin.Context, accessToken, refreshToken string, accessTTL, refreshTTL time.Duration) {
	h.setCookie(c, AccessTokenCookie, accessToken, int(accessTTL.Seconds()))
	h.setCookie(c, RefreshTokenCookie, refreshToken, int(refreshTTL.Seconds()))
}

// ClearAuthCookies removes both token cookies.
func (h *CookieHelper) ClearAuthCookies(c *gin.Context) {
	h.setCookie(c, AccessTokenCookie, "", -1)
	h.setCookie(c, RefreshTokenCookie, "", -1)
}

// GetRefreshToken reads the refresh token cookie, empty if absent.
func (h *CookieHelper) GetRefreshToken(c *gin.Context) string {
	cookie, err := c.Cookie(RefreshTokenCookie)
	if err != nil {
		return ""
	}
	return cookie
}

func (h *CookieHelper) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(
		name,
		value,
		maxAge,
		"/",
		h.config.Domain,
		h.config.Secure,
		true, // httpOnly, always
	)
}
