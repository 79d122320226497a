// Package token issues and verifies the signed access/refresh token pair.
// Access and refresh tokens are both HS256 JWTs carrying the user id, signed
// with two independent secrets so that one kind can never pass for the other.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Config holds the signing material and validity windows. Instances are
// configured once during initialization and treated as immutable afterwards.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

// Claims are embedded in both token kinds. UID is the user id the token
// authorizes.
type Claims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

// Pair is an access token plus the refresh token issued alongside it.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Manager mints and parses token pairs. Safe for concurrent use.
type Manager struct {
	config Config
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("refresh TTL must exceed access TTL")
	}
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("hs256 requires both secrets")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Manager{config: cfg}, nil
}

// CreateAccess mints a short-lived access token for uid.
func (m *Manager) CreateAccess(uid string) (string, error) {
	return m.create(uid, m.config.AccessSecret, m.config.AccessTTL)
}

// CreateRefresh mints a long-lived refresh token for uid.
func (m *Manager) CreateRefresh(uid string) (string, error) {
	return m.create(uid, m.config.RefreshSecret, m.config.RefreshTTL)
}

// CreatePair mints both tokens for uid. The refresh token is expected to be
// persisted by the caller before the pair is handed out.
func (m *Manager) CreatePair(uid string) (Pair, error) {
	access, err := m.CreateAccess(uid)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := m.CreateRefresh(uid)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// ParseAccess verifies tokenStr against the access secret and returns its claims.
func (m *Manager) ParseAccess(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, m.config.AccessSecret)
}

// ParseRefresh verifies tokenStr against the refresh secret and returns its claims.
func (m *Manager) ParseRefresh(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, m.config.RefreshSecret)
}

func (m *Manager) create(uid string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
			// Timestamps have second resolution, so the jti is what keeps two
			// tokens minted back-to-back for the same user distinct. Rotation
			// depends on that.
			ID: uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (m *Manager) parse(tokenStr string, secret []byte) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.UID == "" {
		return nil, errors.New("token missing uid claim")
	}
	return claims, nil
}
