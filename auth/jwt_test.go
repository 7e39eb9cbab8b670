package auth

import (
	"testing"
	"time"
)

var testSecret = []byte("test-secret-at-least-32-bytes-long!")

func TestGenerateAndValidateTokenRoundTrip(t *testing.T) {
	claims := &HorosClaims{UserID: "u1", Username: "alice", Role: "operator"}
	tok, err := GenerateToken(testSecret, claims, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	got, err := ValidateToken(testSecret, tok)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if got.UserID != "u1" || got.Username != "alice" || got.Role != "operator" {
		t.Fatalf("unexpected claims: %+v", got)
	}
}

func TestGenerateTokenRejectsShortSecret(t *testing.T) {
	_, err := GenerateToken([]byte("short"), &HorosClaims{UserID: "u1"}, time.Hour)
	if err == nil {
		t.Fatal("expected an error for a secret shorter than MinSecretLen")
	}
}

func TestValidateTokenRejectsTamperedSignature(t *testing.T) {
	tok, err := GenerateToken(testSecret, &HorosClaims{UserID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	otherSecret := []byte("a-totally-different-secret-32-bytes!")
	if _, err := ValidateToken(otherSecret, tok); err == nil {
		t.Fatal("expected validation against the wrong secret to fail")
	}
}

func TestValidateTokenRejectsExpiredToken(t *testing.T) {
	tok, err := GenerateToken(testSecret, &HorosClaims{UserID: "u1"}, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ValidateToken(testSecret, tok); err == nil {
		t.Fatal("expected an expired token to fail validation")
	}
}
