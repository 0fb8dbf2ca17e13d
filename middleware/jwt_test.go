package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret, tenantID string, expiry time.Time) string {
	t.Helper()
	claims := TenantClaims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func protectedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", JWTMiddleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tenant": c.GetString("tenant_id")})
	})
	return router
}

func TestJWTMiddlewareAcceptsValidToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token := signToken(t, "test-secret", "tenant-42", time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	protectedRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != `{"tenant":"tenant-42"}` {
		t.Errorf("tenant id must flow into the request context, got %s", got)
	}
}

func TestJWTMiddlewareRejections(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not a bearer token", "Basic abc"},
		{"garbage token", "Bearer not.a.token"},
		{"wrong signing key", "Bearer " + signToken(t, "other-secret", "tenant-42", time.Now().Add(time.Hour))},
		{"expired token", "Bearer " + signToken(t, "test-secret", "tenant-42", time.Now().Add(-time.Hour))},
		{"missing tenant claim", "Bearer " + signToken(t, "test-secret", "", time.Now().Add(time.Hour))},
	}

	router := protectedRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", w.Code)
			}
		})
	}
}

func TestJWTMiddlewareRequiresConfiguredSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	protectedRouter().ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 without a configured secret, got %d", w.Code)
	}
}
