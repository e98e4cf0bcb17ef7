package container

import (
	"context"
	"testing"
)

func TestScopedOverrideShadowsBase(t *testing.T) {
	base := New(nil)
	base.RegisterInstance("svc", "base-value")

	scope := base.Scoped()
	scope.RegisterInstance("svc", "scoped-value")

	ctx := context.Background()
	got, err := scope.Resolve(ctx, "svc")
	if err != nil {
		t.Fatalf("scoped resolve failed: %v", err)
	}
	if got != "scoped-value" {
		t.Errorf("expected scoped override, got %v", got)
	}

	// Base remains untouched.
	got, err = base.Resolve(ctx, "svc")
	if err != nil {
		t.Fatalf("base resolve failed: %v", err)
	}
	if got != "base-value" {
		t.Errorf("expected base value, got %v", got)
	}
}

func TestScopedFallsBackToBase(t *testing.T) {
	base := New(nil)
	base.RegisterInstance("svc", "base-value")

	scope := base.Scoped()
	got, err := scope.Resolve(context.Background(), "svc")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got != "base-value" {
		t.Errorf("expected base value through scope, got %v", got)
	}
}

func TestScopedResolveRequiredUnknown(t *testing.T) {
	scope := New(nil).Scoped()

	if _, err := scope.ResolveRequired(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown service")
	}
}
