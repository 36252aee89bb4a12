package net_test

import (
	"context"
	"testing"

	pnet "taplist/internal/platform/net"
)

func TestWithRequest_And_Getters(t *testing.T) {
	base := context.Background()

	t.Run("sets request id", func(t *testing.T) {
		ctx := pnet.WithRequest(base, "req-123")

		if got := pnet.RequestID(ctx); got != "req-123" {
			t.Fatalf("RequestID got %q want %q", got, "req-123")
		}
	})

	t.Run("empty id returns same ctx and empty getter", func(t *testing.T) {
		ctx := pnet.WithRequest(base, "")

		// should be the same reference since nothing was set
		if ctx != base {
			t.Fatalf("expected ctx to be unchanged when id empty")
		}
		if got := pnet.RequestID(ctx); got != "" {
			t.Fatalf("RequestID got %q want empty", got)
		}
	})
}

func TestActorAndClient(t *testing.T) {
	base := context.Background()

	ctx := pnet.WithActor(base, "admin:ab12cd34")
	if got := pnet.Actor(ctx); got != "admin:ab12cd34" {
		t.Fatalf("Actor got %q", got)
	}
	if got := pnet.Actor(base); got != "" {
		t.Fatalf("Actor on bare ctx got %q want empty", got)
	}
	if ctx := pnet.WithActor(base, ""); ctx != base {
		t.Fatalf("empty actor should not annotate")
	}

	ctx2 := pnet.WithClient(base, "203.0.113.9")
	if got := pnet.Client(ctx2); got != "203.0.113.9" {
		t.Fatalf("Client got %q", got)
	}
	if got := pnet.Client(base); got != "" {
		t.Fatalf("Client on bare ctx got %q want empty", got)
	}
}
