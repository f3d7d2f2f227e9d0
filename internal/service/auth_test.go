package service

import (
	"errors"
	"testing"
	"time"

	"github.com/fintrackhq/fintrack-go/internal/domain"

	"go.uber.org/zap"
)

func TestValidateAccessTokenRoundTrip(t *testing.T) {
	svc := NewAuthService("secret", time.Minute, zap.NewNop())

	token, err := svc.SignAccessToken("user-42")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Sub != "user-42" {
		t.Errorf("expected sub user-42, got %q", claims.Sub)
	}
	if claims.Type != "access" {
		t.Errorf("expected access type, got %q", claims.Type)
	}
}

func TestValidateAccessTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewAuthService("secret-a", time.Minute, zap.NewNop())
	verifier := NewAuthService("secret-b", time.Minute, zap.NewNop())

	token, err := issuer.SignAccessToken("user-42")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, err = verifier.ValidateAccessToken(token)
	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestValidateAccessTokenRejectsExpired(t *testing.T) {
	svc := NewAuthService("secret", -time.Minute, zap.NewNop())

	token, err := svc.SignAccessToken("user-42")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := svc.ValidateAccessToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestValidateAccessTokenRejectsGarbage(t *testing.T) {
	svc := NewAuthService("secret", time.Minute, zap.NewNop())

	if _, err := svc.ValidateAccessToken("not.a.token"); err == nil {
		t.Fatal("expected garbage token to be rejected")
	}
}
