package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!", 0)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// CONSTRUCTION
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	if _, err := NewTokenService("short", time.Hour); err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_DefaultTTL(t *testing.T) {
	ts := newTestTokenService(t)
	if ts.ttl != DefaultTokenTTL {
		t.Errorf("ttl = %v, want %v", ts.ttl, DefaultTokenTTL)
	}
}

// =========================================================================
// GENERATE / VALIDATE
// =========================================================================

func TestGenerate_LooksLikeJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("user-123", "alice")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if n := strings.Count(token, "."); n != 2 {
		t.Errorf("token has %d dots, want 2 (header.payload.signature)", n)
	}
}

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("user-abc-123", "alice")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	got, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	want := Identity{UserID: "user-abc-123", Name: "alice"}
	if got != want {
		t.Errorf("Validate() = %+v, want %+v", got, want)
	}
}

func TestGenerate_PayloadCarriesUserIDAndName(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Generate("user-1", "alice")

	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		t.Fatalf("ParseUnverified() error = %v", err)
	}
	if c.UserID != "user-1" || c.Name != "alice" {
		t.Errorf("payload = {userId:%q name:%q}, want {user-1 alice}", c.UserID, c.Name)
	}

	ttl := c.ExpiresAt.Sub(c.IssuedAt.Time)
	if ttl != 6*time.Hour {
		t.Errorf("token lifetime = %v, want 6h", ttl)
	}
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	other, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!", 0)

	valid, _ := ts.Generate("user-123", "alice")
	expired, _ := ts.GenerateWithDuration("user-123", "alice", -time.Second)
	foreign, _ := other.Generate("user-123", "alice")
	noSubject, _ := ts.Generate("", "ghost")

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"tampered signature", valid[:len(valid)-3] + "xxx"},
		{"signed with another secret", foreign},
		{"empty", ""},
		{"garbage", "not.a.jwt.token"},
		{"no subject", noSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ts.Validate(tt.token); err == nil {
				t.Fatal("Validate() should have returned an error")
			}
		})
	}
}

func TestValidate_CustomTTL(t *testing.T) {
	ts, err := NewTokenService("test-secret-at-least-16-chars!!", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	token, _ := ts.Generate("user-123", "alice")
	if _, err := ts.Validate(token); err != nil {
		t.Fatalf("Validate() on fresh token error = %v", err)
	}
}
