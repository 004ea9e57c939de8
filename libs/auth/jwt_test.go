package auth

import (
	"testing"
	"time"
)

func TestHS256RoundTrip(t *testing.T) {
	claims := Claims{
		Sub:  "user-1",
		Role: "expert",
		Iat:  time.Now().Unix(),
		Exp:  time.Now().Add(1 * time.Hour).Unix(),
	}
	secret := "test-secret"

	token, err := SignHS256(claims, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	parsed, err := ParseAndVerifyHS256(token, secret)
	if err != nil {
		t.Fatalf("ParseAndVerifyHS256 failed: %v", err)
	}
	if parsed.Sub != claims.Sub || parsed.Role != claims.Role {
		t.Fatalf("claims mismatch: got %+v", parsed)
	}
	if _, err := ParseAndVerifyHS256(token, "wrong-secret"); err == nil {
		t.Fatal("expected verification error with wrong secret")
	}
}

func TestHS256Expired(t *testing.T) {
	claims := Claims{
		Sub:  "user-1",
		Role: "client",
		Iat:  time.Now().Add(-2 * time.Hour).Unix(),
		Exp:  time.Now().Add(-1 * time.Hour).Unix(),
	}
	token, err := SignHS256(claims, "s")
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	if _, err := ParseAndVerifyHS256(token, "s"); err == nil {
		t.Fatal("expected expired token to fail verification")
	}
}

func TestHS256Malformed(t *testing.T) {
	for _, token := range []string{"", "a.b", "a.b.c.d", "!!!.???.###"} {
		if _, err := ParseAndVerifyHS256(token, "s"); err == nil {
			t.Fatalf("expected error for malformed token %q", token)
		}
	}
}
