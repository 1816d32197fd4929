package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, claims *Claims, secret []byte) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func validClaims() *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "clinic-idp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{"admin"},
	}
}

func runMiddleware(t *testing.T, cfg Config, authHeader string) (error, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Middleware(cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return h(c), c
}

func TestMiddleware_ValidToken(t *testing.T) {
	cfg := Config{Secret: testSecret, Issuer: "clinic-idp"}
	raw := signToken(t, validClaims(), testSecret)

	err, c := runMiddleware(t, cfg, "Bearer "+raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid := UserIDFromContext(c.Request().Context()); uid != "user-1" {
		t.Errorf("expected subject user-1, got %q", uid)
	}
	roles := RolesFromContext(c.Request().Context())
	if len(roles) != 1 || roles[0] != "admin" {
		t.Errorf("unexpected roles: %v", roles)
	}
}

func TestMiddleware_MissingHeader(t *testing.T) {
	err, _ := runMiddleware(t, Config{Secret: testSecret}, "")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestMiddleware_WrongScheme(t *testing.T) {
	err, _ := runMiddleware(t, Config{Secret: testSecret}, "Basic abc123")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestMiddleware_WrongSecret(t *testing.T) {
	raw := signToken(t, validClaims(), []byte("other-secret"))
	err, _ := runMiddleware(t, Config{Secret: testSecret}, "Bearer "+raw)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestMiddleware_ExpiredToken(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	raw := signToken(t, claims, testSecret)

	err, _ := runMiddleware(t, Config{Secret: testSecret}, "Bearer "+raw)
	if err == nil {
		t.Error("expected error for expired token")
	}
}

func TestMiddleware_WrongIssuer(t *testing.T) {
	claims := validClaims()
	claims.Issuer = "someone-else"
	raw := signToken(t, claims, testSecret)

	err, _ := runMiddleware(t, Config{Secret: testSecret, Issuer: "clinic-idp"}, "Bearer "+raw)
	if err == nil {
		t.Error("expected error for wrong issuer")
	}
}

func TestMiddleware_HealthExempt(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/health")

	h := Middleware(Config{Secret: testSecret})(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err := h(c); err != nil {
		t.Fatalf("health check should not require auth: %v", err)
	}
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims())
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := Verify(raw, Config{Secret: testSecret}); err == nil {
		t.Error("expected error for alg=none token")
	}
}
