package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidtube/vidtube-backend/internal/domain"
	"github.com/vidtube/vidtube-backend/internal/httpx"
	"github.com/vidtube/vidtube-backend/internal/middleware"
	"github.com/vidtube/vidtube-backend/internal/service"
)

// UserHandler handles profile management for the authenticated user.
type UserHandler struct {
	users service.UserService
}

func NewUserHandler(users service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// UpdateAccountRequest is the JSON body for PATCH /users/update-account.
type UpdateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// CurrentUser returns the identity resolved by the auth middleware.
func (h *UserHandler) CurrentUser(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		httpx.Error(c, http.StatusUnauthorized, "Unauthorized Request")
		return
	}
	httpx.JSON(c, http.StatusOK, user, "Current user fetched successfully")
}

func (h *UserHandler) UpdateAccount(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		httpx.Error(c, http.StatusUnauthorized, "Unauthorized Request")
		return
	}

	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, http.StatusBadRequest, "All fields are required")
		return
	}

	updated, err := h.users.UpdateAccount(c.Request.Context(), user.ID, service.UpdateAccountInput{
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	httpx.JSON(c, http.StatusOK, updated, "Account details updated successfully")
}

func (h *UserHandler) UpdateAvatar(c *gin.Context) {
	h.updateImage(c, "avatar", h.users.UpdateAvatar, "Avatar updated successfully")
}

func (h *UserHandler) UpdateCoverImage(c *gin.Context) {
	h.updateImage(c, "coverImage", h.users.UpdateCoverImage, "Cover image updated successfully")
}

type imageUpdateFunc func(ctx context.Context, userID string, file *service.FileUpload) (domain.PublicUser, error)

func (h *UserHandler) updateImage(c *gin.Context, field string, update imageUpdateFunc, message string) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		httpx.Error(c, http.StatusUnauthorized, "Unauthorized Request")
		return
	}

	file, closeFile, err := formUpload(c, field)
	if err != nil {
		// Let the service produce the field-specific validation error.
		file = nil
	}
	if closeFile != nil {
		defer closeFile()
	}

	updated, err := update(c.Request.Context(), user.ID, file)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	httpx.JSON(c, http.StatusOK, updated, message)
}
