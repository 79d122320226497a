// Package service implements the auth/session-token lifecycle and profile
// operations on top of the credential store.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/vidtube-backend/internal/domain"
	"github.com/vidtube/vidtube-backend/internal/logging"
	"github.com/vidtube/vidtube-backend/internal/media"
	"github.com/vidtube/vidtube-backend/internal/metrics"
	"github.com/vidtube/vidtube-backend/internal/rate"
	"github.com/vidtube/vidtube-backend/internal/repo"
	"github.com/vidtube/vidtube-backend/internal/token"
)

// FileUpload is an uploaded file handed down from the HTTP boundary.
type FileUpload struct {
	Filename string
	Reader   io.Reader
}

// RegisterInput is the validated payload for account creation. Avatar is
// required, CoverImage optional.
type RegisterInput struct {
	FullName   string
	Email      string
	Username   string
	Password   string
	Avatar     *FileUpload
	CoverImage *FileUpload
}

// LoginInput identifies the account by username or email. ClientIP feeds the
// rate limiter and is never persisted.
type LoginInput struct {
	Username string
	Email    string
	Password string
	ClientIP string
}

// SessionResult is returned by Login and Refresh: the resolved user plus a
// freshly minted token pair. The refresh token inside has already been
// persisted as the user's current one.
type SessionResult struct {
	User   domain.PublicUser
	Tokens token.Pair
}

// AuthService is the token-lifecycle core consumed by the HTTP handlers.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (domain.PublicUser, error)
	Login(ctx context.Context, in LoginInput) (SessionResult, error)
	Refresh(ctx context.Context, refreshToken string) (SessionResult, error)
	Logout(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
}

type authService struct {
	users    repo.UserRepository
	tokens   *token.Manager
	limiter  *rate.Limiter
	uploader media.Uploader
	metrics  *metrics.Metrics
	log      logging.Logger
}

func NewAuthService(
	users repo.UserRepository,
	tokens *token.Manager,
	limiter *rate.Limiter,
	uploader media.Uploader,
	m *metrics.Metrics,
	log logging.Logger,
) AuthService {
	return &authService{
		users:    users,
		tokens:   tokens,
		limiter:  limiter,
		uploader: uploader,
		metrics:  m,
		log:      log,
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (domain.PublicUser, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.ToLower(strings.TrimSpace(in.Username))

	// Blank input never reaches the store.
	if fullName == "" || email == "" || username == "" || strings.TrimSpace(in.Password) == "" {
		return domain.PublicUser{}, ErrFieldsRequired
	}
	if in.Avatar == nil {
		return domain.PublicUser{}, ErrAvatarRequired
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("existence check: %w", err)
	}
	if exists {
		s.metrics.RegistrationConflict.Inc()
		return domain.PublicUser{}, ErrUserExists
	}

	avatarURL, err := s.uploader.Upload(ctx, in.Avatar.Filename, in.Avatar.Reader)
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("avatar upload: %w", err)
	}
	var coverURL string
	if in.CoverImage != nil {
		coverURL, err = s.uploader.Upload(ctx, in.CoverImage.Filename, in.CoverImage.Reader)
		if err != nil {
			return domain.PublicUser{}, fmt.Errorf("cover image upload: %w", err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.Create(ctx, domain.User{
		ID:            uuid.NewString(),
		Username:      username,
		Email:         email,
		FullName:      fullName,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
		PasswordHash:  string(hash),
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// Lost the race against a concurrent registration; the unique
			// index is the source of truth.
			s.metrics.RegistrationConflict.Inc()
			return domain.PublicUser{}, ErrUserExists
		}
		return domain.PublicUser{}, fmt.Errorf("create user: %w", err)
	}

	s.metrics.RegistrationSuccess.Inc()
	return created.Public(), nil
}

func (s *authService) Login(ctx context.Context, in LoginInput) (SessionResult, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" && email == "" {
		return SessionResult{}, ErrIdentifierRequired
	}
	if in.Password == "" {
		return SessionResult{}, ErrFieldsRequired
	}

	identifier := username
	if identifier == "" {
		identifier = email
	}
	if err := s.limiter.CheckLogin(ctx, identifier, in.ClientIP); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			s.metrics.LoginRateLimited.Inc()
			return SessionResult{}, ErrTooManyAttempts
		}
		return SessionResult{}, fmt.Errorf("login throttle: %w", err)
	}

	user, err := s.users.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.metrics.LoginFailure.Inc()
			return SessionResult{}, ErrUserNotFound
		}
		return SessionResult{}, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		if incErr := s.limiter.IncrementLogin(ctx, identifier, in.ClientIP); incErr != nil &&
			!errors.Is(incErr, rate.ErrRateLimited) {
			s.log.Warn(ctx, "login attempt tracking failed", "err", incErr)
		}
		s.metrics.LoginFailure.Inc()
		return SessionResult{}, ErrInvalidCredentials
	}

	result, err := s.issueSession(ctx, user)
	if err != nil {
		return SessionResult{}, err
	}

	if err := s.limiter.ResetLogin(ctx, identifier, in.ClientIP); err != nil {
		s.log.Warn(ctx, "login attempt reset failed", "err", err)
	}
	s.metrics.LoginSuccess.Inc()
	return result, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (SessionResult, error) {
	if refreshToken == "" {
		return SessionResult{}, ErrRefreshMissing
	}

	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		s.metrics.RefreshFailure.Inc()
		return SessionResult{}, fmt.Errorf("%w: %v", ErrRefreshInvalid, err)
	}

	if err := s.limiter.CheckRefresh(ctx, claims.UID); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			return SessionResult{}, ErrTooManyAttempts
		}
		return SessionResult{}, fmt.Errorf("refresh throttle: %w", err)
	}

	user, err := s.users.GetByID(ctx, claims.UID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.metrics.RefreshFailure.Inc()
			return SessionResult{}, ErrRefreshInvalid
		}
		return SessionResult{}, fmt.Errorf("resolve user: %w", err)
	}

	pair, err := s.tokens.CreatePair(user.ID)
	if err != nil {
		return SessionResult{}, fmt.Errorf("mint token pair: %w", err)
	}

	// Currency check and rotation in one conditional write: the presented
	// token must still be the stored one, and the winner installs the next.
	rotated, err := s.users.RotateRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken)
	if err != nil {
		return SessionResult{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !rotated {
		s.metrics.RefreshReuseDetected.Inc()
		s.metrics.RefreshFailure.Inc()
		return SessionResult{}, ErrRefreshExpiredOrUsed
	}

	s.metrics.RefreshSuccess.Inc()
	return SessionResult{User: user.Public(), Tokens: pair}, nil
}

func (s *authService) Logout(ctx context.Context, userID string) error {
	if err := s.users.ClearRefreshToken(ctx, userID); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	s.metrics.Logout.Inc()
	return nil
}

func (s *authService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if strings.TrimSpace(oldPassword) == "" || strings.TrimSpace(newPassword) == "" {
		return ErrFieldsRequired
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidOldPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	// The active refresh token is left untouched; existing sessions survive
	// a password change.
	if err := s.users.UpdatePasswordHash(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	s.metrics.PasswordChange.Inc()
	return nil
}

// issueSession mints a pair and persists the refresh token as the user's
// current one, overwriting any prior session.
func (s *authService) issueSession(ctx context.Context, user domain.User) (SessionResult, error) {
	pair, err := s.tokens.CreatePair(user.ID)
	if err != nil {
		return SessionResult{}, fmt.Errorf("mint token pair: %w", err)
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return SessionResult{}, fmt.Errorf("persist refresh token: %w", err)
	}
	return SessionResult{User: user.Public(), Tokens: pair}, nil
}
