package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidtube/vidtube-backend/internal/httpx"
	"github.com/vidtube/vidtube-backend/internal/service"
)

// respondServiceError translates a service-layer error into the HTTP error
// envelope. Unknown errors collapse to a 500 without leaking internals.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrFieldsRequired):
		httpx.Error(c, http.StatusBadRequest, "All fields are required")
	case errors.Is(err, service.ErrAvatarRequired):
		httpx.Error(c, http.StatusBadRequest, "Avatar file is required")
	case errors.Is(err, service.ErrCoverImageRequired):
		httpx.Error(c, http.StatusBadRequest, "Cover image file is required")
	case errors.Is(err, service.ErrIdentifierRequired):
		httpx.Error(c, http.StatusBadRequest, "Username or email is required")
	case errors.Is(err, service.ErrInvalidOldPassword):
		httpx.Error(c, http.StatusBadRequest, "Invalid old Password")
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.Error(c, http.StatusUnauthorized, "Invalid user credentials")
	case errors.Is(err, service.ErrRefreshMissing):
		httpx.Error(c, http.StatusUnauthorized, "Unauthorized Request")
	case errors.Is(err, service.ErrRefreshExpiredOrUsed):
		httpx.Error(c, http.StatusUnauthorized, "Refresh Token is expired or used")
	case errors.Is(err, service.ErrRefreshInvalid):
		// Surfaces the underlying verification failure when one was wrapped.
		message := "Invalid refresh token"
		if err.Error() != service.ErrRefreshInvalid.Error() {
			message = err.Error()
		}
		httpx.Error(c, http.StatusUnauthorized, message)
	case errors.Is(err, service.ErrUserNotFound):
		httpx.Error(c, http.StatusNotFound, "User does not exist")
	case errors.Is(err, service.ErrUserExists):
		httpx.Error(c, http.StatusConflict, "User with email or username already exists")
	case errors.Is(err, service.ErrTooManyAttempts):
		httpx.Error(c, http.StatusTooManyRequests, "Too many attempts, please try again later")
	default:
		httpx.Error(c, http.StatusInternalServerError, "Something went wrong")
	}
}
