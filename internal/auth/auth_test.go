package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

func newTestService(t *testing.T, config Config) *AuthService {
	t.Helper()
	logger := zerolog.Nop()
	config.Logger = &logger
	s, err := NewAuthService(config)
	if err != nil {
		t.Fatalf("Failed to create auth service: %v", err)
	}
	return s
}

func TestAuthenticate(t *testing.T) {
	s := newTestService(t, Config{AdminPassword: "s3cret", JWTSecret: "jwt"})

	if _, _, err := s.Authenticate("wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}

	token, expiresAt, err := s.Authenticate("s3cret")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if token == "" {
		t.Fatal("Expected a token")
	}
	if time.Until(expiresAt) < 23*time.Hour {
		t.Errorf("Expected default expiry of 24h, got %v", expiresAt)
	}

	claims, err := s.ValidateToken(token)
	if err != nil {
		t.Fatalf("Expected valid token, got %v", err)
	}
	if claims.Subject != adminSubject || claims.Role != adminRole {
		t.Errorf("Unexpected claims %+v", claims)
	}
}

func TestAuthenticate_Disabled(t *testing.T) {
	s := newTestService(t, Config{})

	if s.AdminEnabled() {
		t.Error("Expected admin to be disabled without a password")
	}
	if _, _, err := s.Authenticate(""); !errors.Is(err, ErrAdminDisabled) {
		t.Errorf("Expected ErrAdminDisabled, got %v", err)
	}
}

func TestValidateToken_Rejections(t *testing.T) {
	s := newTestService(t, Config{AdminPassword: "pw", JWTSecret: "one"})
	other := newTestService(t, Config{AdminPassword: "pw", JWTSecret: "two"})

	token, _, err := other.Authenticate("pw")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := s.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for a foreign signature, got %v", err)
	}

	if _, err := s.ValidateToken("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for garbage, got %v", err)
	}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, _ := expired.SignedString([]byte("one"))
	if _, err := s.ValidateToken(signed); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}

	wrongRole := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: "viewer",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, _ = wrongRole.SignedString([]byte("one"))
	if _, err := s.ValidateToken(signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for a non-admin role, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: adminRole})
	signed, _ = none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := s.ValidateToken(signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for alg none, got %v", err)
	}
}

func TestRandomSecret(t *testing.T) {
	a := newTestService(t, Config{AdminPassword: "pw"})
	b := newTestService(t, Config{AdminPassword: "pw"})

	token, _, err := a.Authenticate("pw")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := a.ValidateToken(token); err != nil {
		t.Errorf("Expected token to validate with its issuer, got %v", err)
	}
	if _, err := b.ValidateToken(token); err == nil {
		t.Error("Expected random secrets to differ")
	}
}

func newTestRouter(m *AuthMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(m.TokenRequired())

	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	router.GET("/health", ok)
	router.GET("/video/share/url/parse", m.BasicAuth(), ok)
	router.PUT("/api/v1/admin/credential", m.AdminRequired(), func(c *gin.Context) {
		if _, ok := GetClaims(c); !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, "ok")
	})
	return router
}

func TestTokenRequired(t *testing.T) {
	s := newTestService(t, Config{})
	m := NewAuthMiddleware(s, MiddlewareConfig{SecretToken: "shared"})
	m.SetLogger(zerolog.Nop())
	router := newTestRouter(m)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"public path without token", "/health", "", http.StatusOK},
		{"protected without token", "/video/share/url/parse", "", http.StatusForbidden},
		{"protected with wrong token", "/video/share/url/parse", "nope", http.StatusForbidden},
		{"protected with token", "/video/share/url/parse", "shared", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set(TokenHeader, tt.token)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestTokenRequired_NoSecret(t *testing.T) {
	m := NewAuthMiddleware(newTestService(t, Config{}), MiddlewareConfig{})
	router := newTestRouter(m)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/video/share/url/parse", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 without a configured secret, got %d", rec.Code)
	}
}

func TestBasicAuth(t *testing.T) {
	m := NewAuthMiddleware(newTestService(t, Config{}), MiddlewareConfig{
		BasicUsername: "user",
		BasicPassword: "pass",
	})
	router := newTestRouter(m)

	if !m.BasicAuthEnabled() {
		t.Fatal("Expected basic auth to be enabled")
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/video/share/url/parse", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without basic auth, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/video/share/url/parse", nil)
	req.SetBasicAuth("user", "pass")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 with basic auth, got %d", rec.Code)
	}

	partial := NewAuthMiddleware(newTestService(t, Config{}), MiddlewareConfig{BasicUsername: "user"})
	if partial.BasicAuthEnabled() {
		t.Error("Expected basic auth to require both username and password")
	}
}

func TestAdminRequired(t *testing.T) {
	s := newTestService(t, Config{AdminPassword: "pw", JWTSecret: "jwt"})
	m := NewAuthMiddleware(s, MiddlewareConfig{})
	m.SetLogger(zerolog.Nop())
	router := newTestRouter(m)

	token, _, err := s.Authenticate("pw")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer garbage", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/credential", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, rec.Code)
			}
		})
	}
}
