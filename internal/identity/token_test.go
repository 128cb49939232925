package identity

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokens(t *testing.T) {
	tokens := NewTokens([]byte("secret"))
	tok, err := tokens.Issue("alice")
	if err != nil {
		t.Fatal(err)
	}
	if !tokens.Verify(tok) {
		t.Fatal("freshly issued token should verify")
	}
	if user, ok := tokens.UserOf(tok); !ok || user != "alice" {
		t.Errorf("UserOf = %q, %v", user, ok)
	}

	// No expiry claim is set.
	parsed, _, err := jwt.NewParser().ParseUnverified(tok, jwt.MapClaims{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := parsed.Claims.(jwt.MapClaims)["exp"]; ok {
		t.Error("token must not carry exp")
	}

	other := NewTokens([]byte("another secret"))
	noneTok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user": "alice"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	parts := strings.Split(tok, ".")
	tampered := parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(`{"user":"mallory"}`)) + "." + parts[2]

	bad := []struct {
		name  string
		codec *Tokens
		token string
	}{
		{"empty", tokens, ""},
		{"garbage", tokens, "not-a-token"},
		{"tampered payload", tokens, tampered},
		{"wrong secret", other, tok},
		{"alg none", tokens, noneTok},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			if tt.codec.Verify(tt.token) {
				t.Error("Verify should be false")
			}
			if _, ok := tt.codec.UserOf(tt.token); ok {
				t.Error("UserOf should fail")
			}
		})
	}

	t.Run("missing user claim", func(t *testing.T) {
		if !tokens.Verify(noUser) {
			t.Error("signature is valid")
		}
		if _, ok := tokens.UserOf(noUser); ok {
			t.Error("UserOf should fail without user claim")
		}
	})
}
