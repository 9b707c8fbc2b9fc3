package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"neurocare-api/internal/auth"
	"neurocare-api/internal/model"
)

const secret = "test_secret_for_testing"

func TestPasswordHash(t *testing.T) {
	hash, err := auth.HashPassword("testpass123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !auth.CheckPassword(hash, "testpass123") {
		t.Error("correct password rejected")
	}
	if auth.CheckPassword(hash, "wrongpassword") {
		t.Error("wrong password accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	p := model.Principal{ID: 42, Name: "Ada", Role: model.RoleCounselor}
	tok, err := auth.MakeToken(p, secret, 24*time.Hour)
	if err != nil {
		t.Fatalf("make token: %v", err)
	}

	claims, err := auth.ParseToken(tok, secret)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Principal() != p {
		t.Errorf("principal mismatch: %+v", claims.Principal())
	}

	diff := time.Until(claims.ExpiresAt.Time)
	if diff < 23*time.Hour || diff > 25*time.Hour {
		t.Errorf("expected ~24h expiry, got %v", diff)
	}
}

func TestTokenExpired(t *testing.T) {
	tok, _ := auth.MakeToken(model.Principal{ID: 1, Role: model.RoleStudent}, secret, -time.Minute)
	if _, err := auth.ParseToken(tok, secret); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestAlgorithmConfusion(t *testing.T) {
	tok, _ := auth.MakeToken(model.Principal{ID: 1, Role: model.RoleStudent}, secret, time.Hour)

	// wrong secret fails
	if _, err := auth.ParseToken(tok, "wrong-secret"); err == nil {
		t.Fatal("expected error for wrong secret")
	}

	// garbage token fails
	if _, err := auth.ParseToken("not.a.token", secret); err == nil {
		t.Fatal("expected error for garbage token")
	}

	// unsigned token fails
	none := jwt.NewWithClaims(jwt.SigningMethodNone, auth.Claims{ID: 1, Role: model.RoleAdmin})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := auth.ParseToken(raw, secret); err == nil {
		t.Fatal("expected alg=none token to fail")
	}
}

func TestTokenUnknownRole(t *testing.T) {
	c := auth.Claims{ID: 7, Name: "X", Role: model.Role("superuser")}
	raw, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	if _, err := auth.ParseToken(raw, secret); err == nil {
		t.Fatal("expected unknown role to be rejected")
	}
}
