// Package repo provides user persistence over PostgreSQL.
package repo

import (
	"context"
	"errors"

	"github.com/vidtube/vidtube-backend/internal/domain"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate is returned when a unique constraint on username or
	// email is violated.
	ErrDuplicate = errors.New("username or email already taken")
)

// UserRepository is the credential-store contract consumed by the services.
type UserRepository interface {
	Create(ctx context.Context, u domain.User) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	// FindByUsernameOrEmail matches either column; both are stored lowercased.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (domain.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)

	// SetRefreshToken overwrites the stored refresh token, revoking any
	// prior session. A single column is written; the rest of the record is
	// not revalidated.
	SetRefreshToken(ctx context.Context, userID, token string) error
	// RotateRefreshToken atomically replaces the stored refresh token with
	// next, but only if the stored value still equals current. Returns
	// false when the compare fails, which signals reuse of a superseded
	// token.
	RotateRefreshToken(ctx context.Context, userID, current, next string) (bool, error)
	ClearRefreshToken(ctx context.Context, userID string) error

	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	UpdateAccountDetails(ctx context.Context, userID, fullName, email string) (domain.User, error)
	UpdateAvatar(ctx context.Context, userID, avatarURL string) (domain.User, error)
	UpdateCoverImage(ctx context.Context, userID, coverURL string) (domain.User, error)
}
