package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const (
	testInternalToken = "internal-secret"
	testJWTSecret     = "jwt-secret"
)

func testMiddleware() echo.MiddlewareFunc {
	return InternalMiddleware(InternalConfig{
		InternalToken: testInternalToken,
		JWTSecret:     testJWTSecret,
		AdminEmails:   []string{"admin@example.com"},
		Logger:        zap.NewNop(),
	})
}

func runGuarded(t *testing.T, setHeaders func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reconcile", nil)
	setHeaders(req)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := testMiddleware()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	err := handler(c)
	assert.NoError(t, err)
	return rec
}

func signedToken(t *testing.T, secret, email string) string {
	t.Helper()

	claims := jwt.MapClaims{
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	assert.NoError(t, err)
	return token
}

func TestInternalMiddleware(t *testing.T) {
	t.Run("valid internal token passes", func(t *testing.T) {
		rec := runGuarded(t, func(req *http.Request) {
			req.Header.Set("X-Internal-Token", testInternalToken)
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong internal token is forbidden", func(t *testing.T) {
		rec := runGuarded(t, func(req *http.Request) {
			req.Header.Set("X-Internal-Token", "guess")
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin jwt passes", func(t *testing.T) {
		rec := runGuarded(t, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+signedToken(t, testJWTSecret, "admin@example.com"))
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("admin email comparison is case insensitive", func(t *testing.T) {
		rec := runGuarded(t, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+signedToken(t, testJWTSecret, "Admin@Example.com"))
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("non-admin jwt is forbidden", func(t *testing.T) {
		rec := runGuarded(t, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+signedToken(t, testJWTSecret, "user@example.com"))
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("jwt signed with wrong secret is rejected", func(t *testing.T) {
		rec := runGuarded(t, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+signedToken(t, "other-secret", "admin@example.com"))
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing credentials are unauthorized", func(t *testing.T) {
		rec := runGuarded(t, func(req *http.Request) {})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
