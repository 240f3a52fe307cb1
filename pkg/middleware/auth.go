package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-gig-live/pkg/response"
)

const (
	UserIDKey     = "user_id"
	EmailKey      = "email"
	RoleKey       = "role"
	PrincipalKey  = "principal"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "

	// AccessTokenCookie is the cookie set by the web frontend after login.
	AccessTokenCookie = "accessToken"
	// TokenQueryParam carries the token for clients that cannot set headers
	// on a websocket handshake.
	TokenQueryParam = "token"
)

// Authentication failures shared by every entry point. Their messages are
// returned to clients verbatim.
var (
	ErrNoToken      = errors.New("no token")
	ErrInvalidToken = errors.New("invalid token")
	ErrUnauthorized = errors.New("unauthorized")
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Email  string
	Role   string
	Name   string
}

// Authenticator turns a raw bearer token into a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// ExtractToken reads the bearer token from the Authorization header, the
// accessToken cookie or the token query parameter, in that order.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get(AuthHeaderKey); h != "" {
		// A non-bearer scheme is passed through so it fails as an invalid token.
		return strings.TrimSpace(strings.TrimPrefix(h, BearerPrefix))
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get(TokenQueryParam)
}

// IsAuthError reports whether err is one of the client-facing auth errors.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNoToken) || errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrUnauthorized)
}

// AuthMiddleware validates bearer tokens for REST routes.
type AuthMiddleware struct {
	auth Authenticator
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// RequireAuth aborts with 401 unless the request carries a valid token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c.Request)
		if token == "" {
			response.AbortUnauthorized(c, ErrNoToken.Error())
			return
		}

		p, err := m.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			if IsAuthError(err) {
				response.AbortUnauthorized(c, err.Error())
				return
			}
			c.Error(err)
			response.AbortInternalError(c, "authentication unavailable")
			return
		}

		SetPrincipal(c, p)
		c.Next()
	}
}

// SetPrincipal stores p in the Gin context.
func SetPrincipal(c *gin.Context, p *Principal) {
	c.Set(PrincipalKey, p)
	c.Set(UserIDKey, p.UserID)
	c.Set(EmailKey, p.Email)
	c.Set(RoleKey, p.Role)
}

// GetPrincipal extracts the principal from Gin context.
func GetPrincipal(c *gin.Context) *Principal {
	if v, ok := c.Get(PrincipalKey); ok {
		if p, ok := v.(*Principal); ok {
			return p
		}
	}
	return nil
}

// GetUserID extracts user ID from Gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// GetRole extracts the role from Gin context.
func GetRole(c *gin.Context) string {
	return c.GetString(RoleKey)
}

// RequireHeaderToken guards service-to-service routes with a shared secret
// header. An empty secret disables the routes entirely.
func RequireHeaderToken(header, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			response.AbortNotFound(c, "not found")
			return
		}
		if subtle.ConstantTimeCompare([]byte(c.GetHeader(header)), []byte(secret)) != 1 {
			response.AbortForbidden(c, "invalid internal token")
			return
		}
		c.Next()
	}
}
