// Package handlers contains the HTTP request handlers.
package handlers

import (
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vidtube/vidtube-backend/internal/httpx"
	"github.com/vidtube/vidtube-backend/internal/logging"
	"github.com/vidtube/vidtube-backend/internal/middleware"
	"github.com/vidtube/vidtube-backend/internal/service"
)

// AuthHandler handles registration and the session-token lifecycle.
type AuthHandler struct {
	auth       service.AuthService
	cookies    *CookieHelper
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        logging.Logger
}

func NewAuthHandler(auth service.AuthService, cookies *CookieHelper, accessTTL, refreshTTL time.Duration, log logging.Logger) *AuthHandler {
	return &AuthHandler{
		auth:       auth,
		cookies:    cookies,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		log:        log,
	}
}

// LoginRequest is the JSON body for POST /users/login. Either username or
// email identifies the account.
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the JSON body fallback for POST /users/refresh-token
// when no cookie is present.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ChangePasswordRequest is the JSON body for POST /users/change-password.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// sessionBody is the data payload returned by login and refresh.
type sessionBody struct {
	User         any    `json:"user,omitempty"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Register handles multipart account creation: text fields plus a required
// avatar file and an optional coverImage file.
func (h *AuthHandler) Register(c *gin.Context) {
	in := service.RegisterInput{
		FullName: c.PostForm("fullName"),
		Email:    c.PostForm("email"),
		Username: c.PostForm("username"),
		Password: c.PostForm("password"),
	}

	avatar, closeAvatar, err := formUpload(c, "avatar")
	if err != nil {
		httpx.Error(c, http.StatusBadRequest, "Avatar file is required")
		return
	}
	if closeAvatar != nil {
		defer closeAvatar()
	}
	in.Avatar = avatar

	cover, closeCover, err := formUpload(c, "coverImage")
	if err == nil && closeCover != nil {
		defer closeCover()
		in.CoverImage = cover
	}

	user, err := h.auth.Register(c.Request.Context(), in)
	if err != nil {
		h.logFailure(c, "register failed", err)
		respondServiceError(c, err)
		return
	}
	httpx.JSON(c, http.StatusCreated, user, "User registered successfully")
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		h.logFailure(c, "login failed", err)
		respondServiceError(c, err)
		return
	}

	h.cookies.SetAuthCookies(c, result.Tokens.AccessToken, result.Tokens.RefreshToken, h.accessTTL, h.refreshTTL)
	httpx.JSON(c, http.StatusOK, sessionBody{
		User:         result.User,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	}, "User logged in successfully")
}

// Logout clears the stored refresh token and instructs the client to drop
// both cookies. Requires a verified session, so it always succeeds.
func (h *AuthHandler) Logout(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		httpx.Error(c, http.StatusUnauthorized, "Unauthorized Request")
		return
	}

	if err := h.auth.Logout(c.Request.Context(), user.ID); err != nil {
		h.logFailure(c, "logout failed", err)
		respondServiceError(c, err)
		return
	}

	h.cookies.ClearAuthCookies(c)
	httpx.JSON(c, http.StatusOK, nil, "User logged out")
}

// Refresh exchanges a still-current refresh token, from cookie or body, for
// a new pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken := h.cookies.GetRefreshToken(c)
	if refreshToken == "" {
		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			refreshToken = req.RefreshToken
		}
	}

	result, err := h.auth.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		h.logFailure(c, "token refresh failed", err)
		respondServiceError(c, err)
		return
	}

	h.cookies.SetAuthCookies(c, result.Tokens.AccessToken, result.Tokens.RefreshToken, h.accessTTL, h.refreshTTL)
	httpx.JSON(c, http.StatusOK, sessionBody{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	}, "Access token refreshed")
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		httpx.Error(c, http.StatusUnauthorized, "Unauthorized Request")
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, http.StatusBadRequest, "All fields are required")
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		h.logFailure(c, "password change failed", err)
		respondServiceError(c, err)
		return
	}
	httpx.JSON(c, http.StatusOK, nil, "Password changed successfully")
}

func (h *AuthHandler) logFailure(c *gin.Context, msg string, err error) {
	h.log.Warn(c.Request.Context(), msg, "err", err, "path", c.FullPath())
}

// formUpload opens a multipart file field as a service.FileUpload. The
// returned close func must be deferred by the caller.
func formUpload(c *gin.Context, field string) (*service.FileUpload, func(), error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &service.FileUpload{Filename: fh.Filename, Reader: f}, func() { closeMultipart(f) }, nil
}

func closeMultipart(f multipart.File) { _ = f.Close() }
