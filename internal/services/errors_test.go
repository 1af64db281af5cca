package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"mediaorganizer/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("permission denied")
	err := services.Wrap(services.ErrUnreadable, "find_duplicates", "fingerprint", "/library/a.jpg", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrUnreadable) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"find_duplicates", "fingerprint", "/library/a.jpg", "permission denied"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unreadable", services.Wrap(services.ErrUnreadable, "s", "op", "", errors.New("io")), false},
		{"already processed", services.ErrAlreadyProcessed, false},
		{"setup", services.Wrap(services.ErrSetupFailure, "s", "prepare", "missing dir", nil), true},
		{"write", fmt.Errorf("save: %w", services.ErrWriteFailed), true},
		{"canceled", context.Canceled, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.IsFatal(tt.err); got != tt.want {
				t.Fatalf("IsFatal(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestKind(t *testing.T) {
	if got := services.Kind(services.Wrap(services.ErrWriteFailed, "", "", "x", nil)); got != "write_failed" {
		t.Fatalf("unexpected kind %q", got)
	}
	if got := services.Kind(errors.New("plain")); got != "transient" {
		t.Fatalf("unexpected kind for plain error %q", got)
	}
	if got := services.Kind(nil); got != "" {
		t.Fatalf("expected empty kind for nil, got %q", got)
	}
}
