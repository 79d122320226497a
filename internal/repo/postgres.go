package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/vidtube-backend/internal/domain"
)

const userColumns = `id, username, email, full_name, avatar_url, cover_image_url,
	password_hash, refresh_token, created_at, updated_at`

// PGUserRepository implements UserRepository with Postgres.
type PGUserRepository struct {
	db *pgxpool.Pool
}

func NewPGUserRepository(db *pgxpool.Pool) *PGUserRepository {
	return &PGUserRepository{db: db}
}

func (r *PGUserRepository) Create(ctx context.Context, u domain.User) (domain.User, error) {
	query := `
		INSERT INTO users (id, username, email, full_name, avatar_url, cover_image_url, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns
	row := r.db.QueryRow(ctx, query,
		u.ID, u.Username, u.Email, u.FullName, u.AvatarURL, u.CoverImageURL, u.PasswordHash,
	)
	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, ErrDuplicate
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *PGUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *PGUserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 OR email = $2`,
		username, email,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (r *PGUserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`,
		username, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists check: %w", err)
	}
	return exists, nil
}

func (r *PGUserRepository) SetRefreshToken(ctx context.Context, userID, token string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET refresh_token = $1, updated_at = now() WHERE id = $2`,
		token, userID,
	)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGUserRepository) RotateRefreshToken(ctx context.Context, userID, current, next string) (bool, error) {
	// The WHERE clause is the currency check: two concurrent rotations can
	// both read the same prior token, but only one conditional update wins.
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET refresh_token = $1, updated_at = now()
		 WHERE id = $2 AND refresh_token = $3 AND refresh_token <> ''`,
		next, userID, current,
	)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PGUserRepository) ClearRefreshToken(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET refresh_token = '', updated_at = now() WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

func (r *PGUserRepository) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`,
		hash, userID,
	)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGUserRepository) UpdateAccountDetails(ctx context.Context, userID, fullName, email string) (domain.User, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE users SET full_name = $1, email = $2, updated_at = now()
		 WHERE id = $3 RETURNING `+userColumns,
		fullName, email, userID,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrNotFound
		}
		if isUniqueViolation(err) {
			return domain.User{}, ErrDuplicate
		}
		return domain.User{}, fmt.Errorf("update account: %w", err)
	}
	return u, nil
}

func (r *PGUserRepository) UpdateAvatar(ctx context.Context, userID, avatarURL string) (domain.User, error) {
	return r.updateImage(ctx, userID, "avatar_url", avatarURL)
}

func (r *PGUserRepository) UpdateCoverImage(ctx context.Context, userID, coverURL string) (domain.User, error) {
	return r.updateImage(ctx, userID, "cover_image_url", coverURL)
}

func (r *PGUserRepository) updateImage(ctx context.Context, userID, column, url string) (domain.User, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE users SET `+column+` = $1, updated_at = now()
		 WHERE id = $2 RETURNING `+userColumns,
		url, userID,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("update %s: %w", column, err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.FullName, &u.AvatarURL, &u.CoverImageURL,
		&u.PasswordHash, &u.RefreshToken, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (code 23505).
func isUniqueViolation(err error) bool {
	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		return pge.Code == "23505"
	}
	return false
}
