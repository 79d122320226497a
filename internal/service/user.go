package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vidtube/vidtube-backend/internal/domain"
	"github.com/vidtube/vidtube-backend/internal/media"
	"github.com/vidtube/vidtube-backend/internal/repo"
)

// UpdateAccountInput carries the mutable account details.
type UpdateAccountInput struct {
	FullName string
	Email    string
}

// UserService covers profile management for an already-authenticated user.
type UserService interface {
	UpdateAccount(ctx context.Context, userID string, in UpdateAccountInput) (domain.PublicUser, error)
	UpdateAvatar(ctx context.Context, userID string, file *FileUpload) (domain.PublicUser, error)
	UpdateCoverImage(ctx context.Context, userID string, file *FileUpload) (domain.PublicUser, error)
}

type userService struct {
	users    repo.UserRepository
	uploader media.Uploader
}

func NewUserService(users repo.UserRepository, uploader media.Uploader) UserService {
	return &userService{users: users, uploader: uploader}
}

func (s *userService) UpdateAccount(ctx context.Context, userID string, in UpdateAccountInput) (domain.PublicUser, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if fullName == "" || email == "" {
		return domain.PublicUser{}, ErrFieldsRequired
	}

	user, err := s.users.UpdateAccountDetails(ctx, userID, fullName, email)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return domain.PublicUser{}, ErrUserExists
		}
		return domain.PublicUser{}, fmt.Errorf("update account: %w", err)
	}
	return user.Public(), nil
}

func (s *userService) UpdateAvatar(ctx context.Context, userID string, file *FileUpload) (domain.PublicUser, error) {
	if file == nil {
		return domain.PublicUser{}, ErrAvatarRequired
	}
	url, err := s.uploader.Upload(ctx, file.Filename, file.Reader)
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("avatar upload: %w", err)
	}
	user, err := s.users.UpdateAvatar(ctx, userID, url)
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("update avatar: %w", err)
	}
	return user.Public(), nil
}

func (s *userService) UpdateCoverImage(ctx context.Context, userID string, file *FileUpload) (domain.PublicUser, error) {
	if file == nil {
		return domain.PublicUser{}, ErrCoverImageRequired
	}
	url, err := s.uploader.Upload(ctx, file.Filename, file.Reader)
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("cover image upload: %w", err)
	}
	user, err := s.users.UpdateCoverImage(ctx, userID, url)
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("update cover image: %w", err)
	}
	return user.Public(), nil
}
