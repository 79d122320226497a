package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidtube/vidtube-backend/internal/config"
	"github.com/vidtube/vidtube-backend/internal/domain"
	"github.com/vidtube/vidtube-backend/internal/logging"
	"github.com/vidtube/vidtube-backend/internal/middleware"
	"github.com/vidtube/vidtube-backend/internal/service"
	"github.com/vidtube/vidtube-backend/internal/token"
)

type mockAuthService struct {
	registerFn func(context.Context, service.RegisterInput) (domain.PublicUser, error)
	loginFn    func(context.Context, service.LoginInput) (service.SessionResult, error)
	refreshFn  func(context.Context, string) (service.SessionResult, error)
	logoutFn   func(context.Context, string) error
	changeFn   func(ctx context.Context, userID, oldPassword, newPassword string) error
}

func (m *mockAuthService) Register(ctx context.Context, in service.RegisterInput) (domain.PublicUser, error) {
	return m.registerFn(ctx, in)
}

func (m *mockAuthService) Login(ctx context.Context, in service.LoginInput) (service.SessionResult, error) {
	return m.loginFn(ctx, in)
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (service.SessionResult, error) {
	return m.refreshFn(ctx, refreshToken)
}

func (m *mockAuthService) Logout(ctx context.Context, userID string) error {
	return m.logoutFn(ctx, userID)
}

func (m *mockAuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	return m.changeFn(ctx, userID, oldPassword, newPassword)
}

type nopLogger struct{}

func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

// identity injects a fixed authenticated user, standing in for RequireAuth.
func identity(user domain.PublicUser) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetCurrentUser(c, user)
		c.Next()
	}
}

func newAuthRouter(auth service.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cookies := NewCookieHelper(config.CookieConfig{Secure: false})
	h := NewAuthHandler(auth, cookies, 15*time.Minute, 240*time.Hour, nopLogger{})

	r := gin.New()
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/refresh-token", h.Refresh)

	me := domain.PublicUser{ID: "u1", Username: "johndoe"}
	r.POST("/logout", identity(me), h.Logout)
	r.POST("/change-password", identity(me), h.ChangePassword)
	return r
}

func postJSON(t *testing.T, r http.Handler, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func sessionFor(id string) service.SessionResult {
	return service.SessionResult{
		User:   domain.PublicUser{ID: id, Username: "johndoe"},
		Tokens: token.Pair{AccessToken: "new-access", RefreshToken: "new-refresh"},
	}
}

func TestLoginSetsAuthCookies(t *testing.T) {
	auth := &mockAuthService{
		loginFn: func(_ context.Context, in service.LoginInput) (service.SessionResult, error) {
			assert.Equal(t, "johndoe", in.Username)
			assert.Equal(t, "hunter22", in.Password)
			assert.NotEmpty(t, in.ClientIP)
			return sessionFor("u1"), nil
		},
	}
	r := newAuthRouter(auth)

	w := postJSON(t, r, "/login", gin.H{"username": "johndoe", "password": "hunter22"})
	require.Equal(t, http.StatusOK, w.Code)

	e := decodeEnvelope(t, w)
	assert.True(t, e.Success)
	assert.Equal(t, "User logged in successfully", e.Message)

	cookies := w.Result().Cookies()
	access := findCookie(cookies, AccessTokenCookie)
	require.NotNil(t, access)
	assert.Equal(t, "new-access", access.Value)
	assert.True(t, access.HttpOnly)

	refresh := findCookie(cookies, RefreshTokenCookie)
	require.NotNil(t, refresh)
	assert.Equal(t, "new-refresh", refresh.Value)
	assert.True(t, refresh.HttpOnly)
}

func TestLoginMalformedBody(t *testing.T) {
	r := newAuthRouter(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"unknown user", service.ErrUserNotFound, http.StatusNotFound, "User does not exist"},
		{"bad credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid user credentials"},
		{"throttled", service.ErrTooManyAttempts, http.StatusTooManyRequests, "Too many attempts, please try again later"},
		{"missing identifier", service.ErrIdentifierRequired, http.StatusBadRequest, "Username or email is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &mockAuthService{
				loginFn: func(context.Context, service.LoginInput) (service.SessionResult, error) {
					return service.SessionResult{}, tt.err
				},
			}
			w := postJSON(t, newAuthRouter(auth), "/login", gin.H{"username": "x", "password": "y"})

			assert.Equal(t, tt.status, w.Code)
			e := decodeEnvelope(t, w)
			assert.False(t, e.Success)
			assert.Equal(t, tt.message, e.Message)
		})
	}
}

func TestRefreshPrefersCookie(t *testing.T) {
	var received string
	auth := &mockAuthService{
		refreshFn: func(_ context.Context, refreshToken string) (service.SessionResult, error) {
			received = refreshToken
			return sessionFor("u1"), nil
		},
	}
	r := newAuthRouter(auth)

	w := postJSON(t, r, "/refresh-token",
		gin.H{"refreshToken": "from-body"},
		&http.Cookie{Name: RefreshTokenCookie, Value: "from-cookie"},
	)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "from-cookie", received)

	refresh := findCookie(w.Result().Cookies(), RefreshTokenCookie)
	require.NotNil(t, refresh)
	assert.Equal(t, "new-refresh", refresh.Value)
}

func TestRefreshBodyFallback(t *testing.T) {
	var received string
	auth := &mockAuthService{
		refreshFn: func(_ context.Context, refreshToken string) (service.SessionResult, error) {
			received = refreshToken
			return sessionFor("u1"), nil
		},
	}

	w := postJSON(t, newAuthRouter(auth), "/refresh-token", gin.H{"refreshToken": "from-body"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "from-body", received)
}

func TestRefreshWithoutToken(t *testing.T) {
	auth := &mockAuthService{
		refreshFn: func(_ context.Context, refreshToken string) (service.SessionResult, error) {
			assert.Empty(t, refreshToken)
			return service.SessionResult{}, service.ErrRefreshMissing
		},
	}

	w := postJSON(t, newAuthRouter(auth), "/refresh-token", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthorized Request", decodeEnvelope(t, w).Message)
}

func TestRefreshReplayResponse(t *testing.T) {
	auth := &mockAuthService{
		refreshFn: func(context.Context, string) (service.SessionResult, error) {
			return service.SessionResult{}, service.ErrRefreshExpiredOrUsed
		},
	}

	w := postJSON(t, newAuthRouter(auth), "/refresh-token", gin.H{"refreshToken": "stale"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Refresh Token is expired or used", decodeEnvelope(t, w).Message)
}

func TestLogoutClearsCookies(t *testing.T) {
	var loggedOut string
	auth := &mockAuthService{
		logoutFn: func(_ context.Context, userID string) error {
			loggedOut = userID
			return nil
		},
	}

	w := postJSON(t, newAuthRouter(auth), "/logout", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", loggedOut)

	cookies := w.Result().Cookies()
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		c := findCookie(cookies, name)
		require.NotNil(t, c, name)
		assert.Empty(t, c.Value)
		assert.Less(t, c.MaxAge, 0)
	}
}

func TestChangePassword(t *testing.T) {
	var gotOld, gotNew string
	auth := &mockAuthService{
		changeFn: func(_ context.Context, userID, oldPassword, newPassword string) error {
			assert.Equal(t, "u1", userID)
			gotOld, gotNew = oldPassword, newPassword
			return nil
		},
	}
	r := newAuthRouter(auth)

	w := postJSON(t, r, "/change-password", gin.H{"oldPassword": "hunter22", "newPassword": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hunter22", gotOld)
	assert.Equal(t, "correct-horse", gotNew)

	// Missing fields never reach the service.
	w = postJSON(t, r, "/change-password", gin.H{"oldPassword": "hunter22"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "All fields are required", decodeEnvelope(t, w).Message)
}

func TestChangePasswordWrongOld(t *testing.T) {
	auth := &mockAuthService{
		changeFn: func(context.Context, string, string, string) error {
			return service.ErrInvalidOldPassword
		},
	}

	w := postJSON(t, newAuthRouter(auth), "/change-password", gin.H{"oldPassword": "x", "newPassword": "y"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid old Password", decodeEnvelope(t, w).Message)
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, filename := range files {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = io.WriteString(fw, "file-content")
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestRegisterMultipart(t *testing.T) {
	auth := &mockAuthService{
		registerFn: func(_ context.Context, in service.RegisterInput) (domain.PublicUser, error) {
			assert.Equal(t, "John Doe", in.FullName)
			assert.Equal(t, "john@example.com", in.Email)
			assert.Equal(t, "johndoe", in.Username)
			assert.Equal(t, "hunter22", in.Password)
			require.NotNil(t, in.Avatar)
			assert.Equal(t, "avatar.png", in.Avatar.Filename)
			assert.Nil(t, in.CoverImage)
			return domain.PublicUser{ID: "u1", Username: in.Username}, nil
		},
	}
	r := newAuthRouter(auth)

	body, contentType := multipartBody(t,
		map[string]string{
			"fullName": "John Doe",
			"email":    "john@example.com",
			"username": "johndoe",
			"password": "hunter22",
		},
		map[string]string{"avatar": "avatar.png"},
	)
	req := httptest.NewRequest(http.MethodPost, "/register", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	e := decodeEnvelope(t, w)
	assert.True(t, e.Success)
	assert.Equal(t, "User registered successfully", e.Message)
}

func TestRegisterMissingAvatar(t *testing.T) {
	r := newAuthRouter(&mockAuthService{})

	body, contentType := multipartBody(t,
		map[string]string{"fullName": "John Doe"},
		nil,
	)
	req := httptest.NewRequest(http.MethodPost, "/register", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Avatar file is required", decodeEnvelope(t, w).Message)
}

func TestRegisterConflict(t *testing.T) {
	auth := &mockAuthService{
		registerFn: func(context.Context, service.RegisterInput) (domain.PublicUser, error) {
			return domain.PublicUser{}, service.ErrUserExists
		},
	}
	r := newAuthRouter(auth)

	body, contentType := multipartBody(t,
		map[string]string{"fullName": "John Doe"},
		map[string]string{"avatar": "avatar.png"},
	)
	req := httptest.NewRequest(http.MethodPost, "/register", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "User with email or username already exists", decodeEnvelope(t, w).Message)
}
