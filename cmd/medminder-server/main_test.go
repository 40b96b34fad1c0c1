package main

import (
	"testing"

	"github.com/medminder/medminder/internal/config"
)

func TestResolveJWTSecret_FromConfig(t *testing.T) {
	cfg := &config.Config{JWTSecret: "configured-secret"}

	secret, generated, err := resolveJWTSecret(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if generated {
		t.Error("expected generated=false when JWT_SECRET is set")
	}
	if secret != "configured-secret" {
		t.Errorf("secret = %q", secret)
	}
}

func TestResolveJWTSecret_RandomGeneration(t *testing.T) {
	cfg := &config.Config{}

	secret, generated, err := resolveJWTSecret(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !generated {
		t.Error("expected generated=true when JWT_SECRET is empty")
	}
	if len(secret) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(secret))
	}

	secret2, _, err := resolveJWTSecret(cfg)
	if err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}
	if secret == secret2 {
		t.Error("two generated secrets should not be identical")
	}
}
