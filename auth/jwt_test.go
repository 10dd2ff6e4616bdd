package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"takealot_sync/models"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func TestJWTAuthenticator(t *testing.T) {
	authn := NewJWTAuthenticator(testSecret)
	user := uuid.New()

	token, err := GenerateToken(testSecret, user, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	got, err := authn.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got != user {
		t.Fatalf("expected %s, got %s", user, got)
	}
}

func TestJWTAuthenticatorRejects(t *testing.T) {
	authn := NewJWTAuthenticator(testSecret)
	user := uuid.New()

	wrongKey, _ := GenerateToken("another-secret", user, time.Hour)
	expired, _ := GenerateToken(testSecret, user, -time.Minute)

	notUUID := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "service-account"},
	})
	notUUIDToken, _ := notUUID.SignedString([]byte(testSecret))

	cases := map[string]string{
		"wrong key":   wrongKey,
		"expired":     expired,
		"bad subject": notUUIDToken,
		"garbage":     "not.a.token",
		"empty":       "",
	}
	for name, token := range cases {
		_, err := authn.Authenticate(context.Background(), token)
		if !errors.Is(err, models.ErrUnauthorized) {
			t.Fatalf("%s: expected unauthorized, got %v", name, err)
		}
	}
}

func TestStaticAuthenticator(t *testing.T) {
	user := uuid.New()
	authn := StaticAuthenticator{UserID: user}

	got, err := authn.Authenticate(context.Background(), "anything")
	if err != nil || got != user {
		t.Fatalf("expected static user, got %s %v", got, err)
	}
	if got, err := authn.Authenticate(context.Background(), ""); err != nil || got != user {
		t.Fatalf("expected static user without token, got %s %v", got, err)
	}
	if _, err := (StaticAuthenticator{}).Authenticate(context.Background(), "x"); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("expected unconfigured static user rejected, got %v", err)
	}
}

func TestBearerAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	user := uuid.New()

	router := gin.New()
	router.GET("/me", BearerAuth(NewJWTAuthenticator(testSecret)), func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c).String())
	})

	token, _ := GenerateToken(testSecret, user, time.Hour)

	tests := []struct {
		header string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"Basic abc", http.StatusUnauthorized},
		{"Bearer nope", http.StatusUnauthorized},
		{"Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != tt.status {
			t.Fatalf("header %q: expected %d, got %d", tt.header, tt.status, w.Code)
		}
		if tt.status == http.StatusOK && w.Body.String() != user.String() {
			t.Fatalf("expected user id in context, got %s", w.Body.String())
		}
	}
}

func TestAPIKeyAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.POST("/admin", APIKeyAuth("k1"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for key, want := range map[string]int{"": http.StatusUnauthorized, "k2": http.StatusUnauthorized, "k1": http.StatusNoContent} {
		req := httptest.NewRequest(http.MethodPost, "/admin", nil)
		if key != "" {
			req.Header.Set("X-API-KEY", key)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("key %q: expected %d, got %d", key, want, w.Code)
		}
	}
}
