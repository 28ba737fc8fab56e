package main

import (
	"testing"

	"go.uber.org/zap"
)

func TestSessionSecret(t *testing.T) {
	got, err := sessionSecret("configured", zap.NewNop())
	if err != nil {
		t.Fatalf("sessionSecret() error = %v", err)
	}
	if string(got) != "configured" {
		t.Errorf("sessionSecret() = %q, want configured", got)
	}

	a, err := sessionSecret("", zap.NewNop())
	if err != nil {
		t.Fatalf("sessionSecret(\"\") error = %v", err)
	}
	b, _ := sessionSecret("", zap.NewNop())
	if len(a) != 32 {
		t.Errorf("random secret length = %d, want 32", len(a))
	}
	if string(a) == string(b) {
		t.Error("random secrets should differ")
	}
}
