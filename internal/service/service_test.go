package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/vidtube-backend/internal/domain"
	"github.com/vidtube/vidtube-backend/internal/logging"
	"github.com/vidtube/vidtube-backend/internal/metrics"
	"github.com/vidtube/vidtube-backend/internal/rate"
	"github.com/vidtube/vidtube-backend/internal/repo"
	"github.com/vidtube/vidtube-backend/internal/token"
)

// mockUserRepo is an in-memory repo.UserRepository mirroring the conditional
// write semantics of the Postgres implementation.
type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User

	createCalls int
	existsCalls int
	findCalls   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]domain.User)}
}

func (m *mockUserRepo) Create(_ context.Context, u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	for _, existing := range m.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return domain.User{}, repo.ErrDuplicate
		}
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) FindByUsernameOrEmail(_ context.Context, username, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	for _, u := range m.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return u, nil
		}
	}
	return domain.User{}, repo.ErrNotFound
}

func (m *mockUserRepo) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsCalls++
	for _, u := range m.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) SetRefreshToken(_ context.Context, userID, tok string) error {
	return m.update(userID, func(u *domain.User) { u.RefreshToken = tok })
}

func (m *mockUserRepo) RotateRefreshToken(_ context.Context, userID, current, next string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.RefreshToken == "" || u.RefreshToken != current {
		return false, nil
	}
	u.RefreshToken = next
	m.users[userID] = u
	return true, nil
}

func (m *mockUserRepo) ClearRefreshToken(_ context.Context, userID string) error {
	return m.update(userID, func(u *domain.User) { u.RefreshToken = "" })
}

func (m *mockUserRepo) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	return m.update(userID, func(u *domain.User) { u.PasswordHash = hash })
}

func (m *mockUserRepo) UpdateAccountDetails(_ context.Context, userID, fullName, email string) (domain.User, error) {
	m.mu.Lock()
	for id, u := range m.users {
		if id != userID && u.Email == email {
			m.mu.Unlock()
			return domain.User{}, repo.ErrDuplicate
		}
	}
	m.mu.Unlock()
	if err := m.update(userID, func(u *domain.User) {
		u.FullName = fullName
		u.Email = email
	}); err != nil {
		return domain.User{}, err
	}
	return m.GetByID(context.Background(), userID)
}

func (m *mockUserRepo) UpdateAvatar(_ context.Context, userID, avatarURL string) (domain.User, error) {
	if err := m.update(userID, func(u *domain.User) { u.AvatarURL = avatarURL }); err != nil {
		return domain.User{}, err
	}
	return m.GetByID(context.Background(), userID)
}

func (m *mockUserRepo) UpdateCoverImage(_ context.Context, userID, coverURL string) (domain.User, error) {
	if err := m.update(userID, func(u *domain.User) { u.CoverImageURL = coverURL }); err != nil {
		return domain.User{}, err
	}
	return m.GetByID(context.Background(), userID)
}

func (m *mockUserRepo) update(userID string, fn func(*domain.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return repo.ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now()
	m.users[userID] = u
	return nil
}

type stubUploader struct {
	mu      sync.Mutex
	uploads int
}

func (s *stubUploader) Upload(_ context.Context, filename string, r io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r != nil {
		_, _ = io.Copy(io.Discard, r)
	}
	s.uploads++
	return fmt.Sprintf("/media/%d-%s", s.uploads, filename), nil
}

type nopLogger struct{}

func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

type authFixture struct {
	repo     *mockUserRepo
	tokens   *token.Manager
	uploader *stubUploader
	metrics  *metrics.Metrics
	auth     AuthService
}

func defaultRateConfig() rate.Config {
	return rate.Config{
		Enabled:                 true,
		MaxLoginAttempts:        5,
		LoginCooldownDuration:   time.Minute,
		MaxRefreshAttempts:      50,
		RefreshCooldownDuration: time.Minute,
	}
}

func newAuthFixture(t *testing.T, rateCfg rate.Config) *authFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens, err := token.NewManager(token.Config{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		Issuer:        "vidtube",
	})
	require.NoError(t, err)

	users := newMockUserRepo()
	uploader := &stubUploader{}
	m := metrics.New(prometheus.NewRegistry())

	return &authFixture{
		repo:     users,
		tokens:   tokens,
		uploader: uploader,
		metrics:  m,
		auth:     NewAuthService(users, tokens, rate.New(client, rateCfg), uploader, m, nopLogger{}),
	}
}

// seedUser inserts a user with a bcrypt-hashed password straight into the
// store, bypassing registration.
func (f *authFixture) seedUser(t *testing.T, id, username, email, password string) domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := f.repo.Create(context.Background(), domain.User{
		ID:           id,
		Username:     username,
		Email:        email,
		FullName:     "Seeded User",
		AvatarURL:    "/media/seed.png",
		PasswordHash: string(hash),
	})
	require.NoError(t, err)
	return u
}

func domainUser(id, username, email string) domain.User {
	return domain.User{
		ID:           id,
		Username:     username,
		Email:        email,
		FullName:     "Seeded User",
		AvatarURL:    "/media/seed.png",
		PasswordHash: "irrelevant",
	}
}

func (f *authFixture) storedRefreshToken(t *testing.T, userID string) string {
	t.Helper()
	u, err := f.repo.GetByID(context.Background(), userID)
	require.NoError(t, err)
	return u.RefreshToken
}
