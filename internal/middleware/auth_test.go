package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/soyoon/studylog/internal/model"
)

const testSecret = "test-secret-key"

func signToken(t *testing.T, secret, subject, role string, method jwt.SigningMethod) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func authTestHandler(t *testing.T) (http.Handler, *string, *model.Role) {
	t.Helper()
	var gotUserID string
	var gotRole model.Role

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("UserIDFromContext() error = %v", err)
		}
		role, err := RoleFromContext(r.Context())
		if err != nil {
			t.Errorf("RoleFromContext() error = %v", err)
		}
		gotUserID = userID
		gotRole = role
		w.WriteHeader(http.StatusOK)
	})

	return NewAuthMiddleware(testSecret)(inner), &gotUserID, &gotRole
}

// 有効なトークンでユーザーIDと役割がコンテキストに注入されることを検証
func TestAuthMiddleware_ValidToken(t *testing.T) {
	handler, gotUserID, gotRole := authTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/plans", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-1", "student", jwt.SigningMethodHS256))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if *gotUserID != "user-1" {
		t.Errorf("userID = %q, want user-1", *gotUserID)
	}
	if *gotRole != model.RoleStudent {
		t.Errorf("role = %v, want student", *gotRole)
	}
}

// 認証失敗のケースを検証
func TestAuthMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, r *http.Request)
	}{
		{
			"missing header",
			func(t *testing.T, r *http.Request) {},
		},
		{
			"not bearer",
			func(t *testing.T, r *http.Request) {
				r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
			},
		},
		{
			"wrong secret",
			func(t *testing.T, r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", "user-1", "student", jwt.SigningMethodHS256))
			},
		},
		{
			"wrong signing method",
			func(t *testing.T, r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-1", "student", jwt.SigningMethodHS512))
			},
		},
		{
			"unknown role",
			func(t *testing.T, r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-1", "superuser", jwt.SigningMethodHS256))
			},
		},
		{
			"empty subject",
			func(t *testing.T, r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "", "student", jwt.SigningMethodHS256))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAuthMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("inner handler should not be reached")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/plans", nil)
			tt.setup(t, req)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

// 期限切れトークンが拒否されることを検証
func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	claims := jwt.MapClaims{
		"sub":  "user-1",
		"role": "student",
		"exp":  time.Now().Add(-time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	handler := NewAuthMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/plans", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// コンテキストヘルパーの往復を検証
func TestContextWithAuth(t *testing.T) {
	ctx := ContextWithAuth(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "user-9", model.RoleAdmin)

	userID, err := UserIDFromContext(ctx)
	if err != nil || userID != "user-9" {
		t.Errorf("UserIDFromContext() = %q, %v", userID, err)
	}
	role, err := RoleFromContext(ctx)
	if err != nil || role != model.RoleAdmin {
		t.Errorf("RoleFromContext() = %v, %v", role, err)
	}
}
