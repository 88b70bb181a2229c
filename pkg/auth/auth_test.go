package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGenerateAndVerify(t *testing.T) {
	m := NewJWTManager("secret", time.Hour, nil)
	token, exp, err := m.GenerateToken("u1", "a@unisabana.edu.co", []string{RolePassenger, RoleDriver})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("expiry %v not in the future", exp)
	}
	claims, err := m.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "u1" || !claims.HasRole(RoleDriver) || claims.ID == "" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestVerifyRejectsOtherSecretAndExpired(t *testing.T) {
	m := NewJWTManager("secret", time.Hour, nil)
	token, _, _ := m.GenerateToken("u1", "", nil)

	other := NewJWTManager("other", time.Hour, nil)
	if _, err := other.Verify(context.Background(), token); err == nil {
		t.Error("token signed with another secret accepted")
	}

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := m.Verify(context.Background(), token); err == nil {
		t.Error("expired token accepted")
	}
}

func TestRevokedTokenRejected(t *testing.T) {
	ctx := context.Background()
	m := NewJWTManager("secret", time.Hour, NewMemoryRevoker())
	token, _, _ := m.GenerateToken("u1", "", nil)
	claims, err := m.Verify(ctx, token)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Revoke(ctx, claims); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := m.Verify(ctx, token); !errors.Is(err, ErrRevokedToken) {
		t.Errorf("err = %v, want ErrRevokedToken", err)
	}
}

func TestAuthMiddleware(t *testing.T) {
	m := NewJWTManager("secret", time.Hour, nil)
	token, _, _ := m.GenerateToken("u1", "", []string{RolePassenger})

	var seen string
	h := m.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := GetClaims(r.Context())
		seen = claims.UserID
	}))

	tests := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Token " + token, http.StatusUnauthorized},
		{"Bearer garbage", http.StatusUnauthorized},
		{"Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("header %q: status %d, want %d", tt.header, rec.Code, tt.want)
		}
	}
	if seen != "u1" {
		t.Errorf("claims not propagated, saw %q", seen)
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	m := NewJWTManager("secret", time.Hour, nil)
	var authed bool
	h := m.OptionalAuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, authed = GetClaims(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || authed {
		t.Errorf("bad token: status %d authed %v", rec.Code, authed)
	}

	token, _, _ := m.GenerateToken("u1", "", nil)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !authed {
		t.Error("valid token not attached")
	}
}
