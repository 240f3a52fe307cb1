package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrMissingKey   = errors.New("jwt secret is not configured")
)

// Claims represents the access token claims issued by the auth service.
// The subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
	Type  string `json:"type,omitempty"` // "access" or "refresh"
}

// UserID returns the subject of the token.
func (c *Claims) UserID() string {
	return c.Subject
}

// Manager verifies (and, for tooling and tests, issues) HMAC-signed tokens
// shared with the issuing auth service.
type Manager struct {
	secret         []byte
	issuer         string
	accessDuration time.Duration
	leeway         time.Duration
	now            func() time.Time
}

// Option customises a Manager.
type Option func(*Manager)

// WithLeeway tolerates clock skew when checking exp/nbf.
func WithLeeway(d time.Duration) Option {
	return func(m *Manager) { m.leeway = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager for the given secret. issuer may be empty to
// accept tokens from any issuer.
func NewManager(secret, issuer string, accessDuration time.Duration, opts ...Option) (*Manager, error) {
	if secret == "" {
		return nil, ErrMissingKey
	}
	m := &Manager{
		secret:         []byte(secret),
		issuer:         issuer,
		accessDuration: accessDuration,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// GenerateAccessToken signs an access token for the user.
func (m *Manager) GenerateAccessToken(userID, email, role string) (string, error) {
	now := m.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessDuration)),
		},
		Email: email,
		Role:  role,
		Type:  "access",
	}
	return m.sign(claims)
}

// ValidateToken verifies signature, algorithm, expiry and issuer.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.leeway > 0 {
		parserOpts = append(parserOpts, jwt.WithLeeway(m.leeway))
	}
	if m.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if claims.Type != "" && claims.Type != "access" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (m *Manager) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}
