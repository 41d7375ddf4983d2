package context

import (
	"context"
	"testing"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}

	ctx = WithRequestID(ctx, " req-1 ")
	ctx = WithActor(ctx, "user", "42")
	ctx = WithActorRole(ctx, "accountant")

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
	actorType, actorID := ActorFromContext(ctx)
	if actorType != "user" || actorID != "42" {
		t.Fatalf("unexpected actor %s/%s", actorType, actorID)
	}
	if got := ActorRoleFromContext(ctx); got != "accountant" {
		t.Fatalf("expected accountant, got %q", got)
	}
}
