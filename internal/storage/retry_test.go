package storage

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestIsStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"Nil error", nil, false},
		{"ESTALE", syscall.ESTALE, true},
		{"Wrapped ESTALE", fmt.Errorf("stat: %w", syscall.ESTALE), true},
		{"ENOENT", syscall.ENOENT, false},
		{"Plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isStaleError(tt.err); got != tt.want {
				t.Errorf("isStaleError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWithRetryRecoversFromTransientErrors(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), "local", "stat", "some/path", fastRetryConfig(), isStaleError, func() error {
		attempts++
		if attempts < 3 {
			return syscall.ESTALE
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetryDoesNotRetryPermanentErrors(t *testing.T) {
	attempts := 0
	permanent := errors.New("permission denied")
	err := withRetry(context.Background(), "local", "read", "some/path", fastRetryConfig(), isStaleError, func() error {
		attempts++
		return permanent
	})

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for a permanent error, got %d", attempts)
	}

	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("Expected *IOError, got %T", err)
	}
	if !errors.Is(err, permanent) {
		t.Error("Expected IOError to wrap the underlying error")
	}
	if ioErr.Op != "read" || ioErr.Backend != "local" {
		t.Errorf("Expected op read on backend local, got %s on %s", ioErr.Op, ioErr.Backend)
	}
}

func TestWithRetryExhaustsRetries(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), "local", "stat", "some/path", fastRetryConfig(), isStaleError, func() error {
		attempts++
		return syscall.ESTALE
	})

	if err == nil {
		t.Fatal("Expected error after exhausting retries, got nil")
	}
	// MaxRetries 3 means 4 total attempts
	if attempts != 4 {
		t.Errorf("Expected 4 attempts, got %d", attempts)
	}
	if !errors.Is(err, syscall.ESTALE) {
		t.Errorf("Expected wrapped ESTALE, got %v", err)
	}
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := withRetry(ctx, "local", "list", "some/path", fastRetryConfig(), isStaleError, func() error {
		attempts++
		return nil
	})

	if err == nil {
		t.Fatal("Expected error for canceled context, got nil")
	}
	if attempts != 0 {
		t.Errorf("Expected 0 attempts after cancellation, got %d", attempts)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	if cfg.MaxRetries != 3 {
		t.Errorf("Expected MaxRetries=3, got %d", cfg.MaxRetries)
	}
	if cfg.InitialBackoff != 50*time.Millisecond {
		t.Errorf("Expected InitialBackoff=50ms, got %v", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff != 500*time.Millisecond {
		t.Errorf("Expected MaxBackoff=500ms, got %v", cfg.MaxBackoff)
	}
}
