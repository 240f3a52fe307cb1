package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestExtractToken_Precedence(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  string
	}{
		{"none", func(*http.Request) {}, ""},
		{"query", func(r *http.Request) {}, "from-query"},
		{"cookie beats query", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "from-cookie"})
		}, "from-cookie"},
		{"header beats cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "from-cookie"})
			r.Header.Set(AuthHeaderKey, "Bearer from-header")
		}, "from-header"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/ws"
			if tt.want != "" {
				target += "?token=from-query"
			}
			r := httptest.NewRequest(http.MethodGet, target, nil)
			tt.setup(r)
			assert.Equal(t, tt.want, ExtractToken(r))
		})
	}
}

type stubAuthenticator struct {
	principal *Principal
	err       error
}

func (s stubAuthenticator) Authenticate(context.Context, string) (*Principal, error) {
	return s.principal, s.err
}

func serve(handlers ...gin.HandlerFunc) func(header string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", append(handlers, func(c *gin.Context) {
		c.String(http.StatusOK, GetUserID(c)+"/"+GetRole(c))
	})...)
	return func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set(AuthHeaderKey, header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}
}

func TestRequireAuth(t *testing.T) {
	ok := serve(NewAuthMiddleware(stubAuthenticator{principal: &Principal{UserID: "u1", Role: "ADMIN"}}).RequireAuth())
	w := ok("Bearer t")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1/ADMIN", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, ok("").Code)

	rejected := serve(NewAuthMiddleware(stubAuthenticator{err: ErrInvalidToken}).RequireAuth())
	assert.Equal(t, http.StatusUnauthorized, rejected("Bearer t").Code)

	broken := serve(NewAuthMiddleware(stubAuthenticator{err: errors.New("db down")}).RequireAuth())
	assert.Equal(t, http.StatusInternalServerError, broken("Bearer t").Code)
}

func TestRequireHeaderToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	run := func(secret, sent string) int {
		r := gin.New()
		r.POST("/", RequireHeaderToken("X-Internal-Token", secret), func(c *gin.Context) { c.Status(http.StatusNoContent) })
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if sent != "" {
			req.Header.Set("X-Internal-Token", sent)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNotFound, run("", "anything"))
	assert.Equal(t, http.StatusForbidden, run("s3cret", ""))
	assert.Equal(t, http.StatusForbidden, run("s3cret", "wrong"))
	assert.Equal(t, http.StatusForbidden, run("s3cret", "s3cre"))
	assert.Equal(t, http.StatusForbidden, run("s3cret", "s3cret2"))
	assert.Equal(t, http.StatusNoContent, run("s3cret", "s3cret"))
}
