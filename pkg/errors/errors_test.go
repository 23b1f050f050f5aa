package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("creates error with derived defaults", func(t *testing.T) {
		err := New(ErrCodeInvalidConfig, "fs.swift URI has no host")
		if err == nil {
			t.Fatal("New returned nil")
		}
		if err.Code != ErrCodeInvalidConfig {
			t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidConfig)
		}
		if err.Category != CategoryConfiguration {
			t.Errorf("Category = %v, want %v", err.Category, CategoryConfiguration)
		}
		if err.Timestamp.IsZero() {
			t.Error("Timestamp not set")
		}
	})

	t.Run("only connection codes are retryable", func(t *testing.T) {
		if !New(ErrCodeConnectionTimeout, "timed out").Retryable {
			t.Error("ConnectionTimeout should be retryable")
		}
		if !New(ErrCodeConnectionFailed, "refused").Retryable {
			t.Error("ConnectionFailed should be retryable")
		}
		if New(ErrCodeObjectNotFound, "gone").Retryable {
			t.Error("ObjectNotFound must not be retryable")
		}
		if New(ErrCodeAuthenticationFailed, "denied").Retryable {
			t.Error("AuthenticationFailed must not be retryable")
		}
	})
}

func TestErrorString(t *testing.T) {
	t.Parallel()

	t.Run("includes component and operation", func(t *testing.T) {
		err := New(ErrCodeObjectNotFound, "no such object").
			WithComponent("store").
			WithOperation("getObjectMetadata")
		s := err.Error()
		if !strings.Contains(s, "[store:getObjectMetadata]") {
			t.Errorf("missing component prefix: %q", s)
		}
		if !strings.Contains(s, "OBJECT_NOT_FOUND") {
			t.Errorf("missing code: %q", s)
		}
	})

	t.Run("includes request context", func(t *testing.T) {
		err := New(ErrCodeInvalidResponse, "unexpected status").
			WithRequest("PUT", "https://swift.example.org/v1/AUTH_t/c/o").
			WithStatus(503, "Service Unavailable")
		s := err.Error()
		if !strings.Contains(s, "PUT https://swift.example.org/v1/AUTH_t/c/o") {
			t.Errorf("missing verb and url: %q", s)
		}
		if !strings.Contains(s, "503 Service Unavailable") {
			t.Errorf("missing status: %q", s)
		}
	})

	t.Run("includes cause", func(t *testing.T) {
		cause := fmt.Errorf("dial tcp: connection refused")
		err := New(ErrCodeConnectionFailed, "auth endpoint unreachable").WithCause(cause)
		if !strings.Contains(err.Error(), "connection refused") {
			t.Errorf("cause not rendered: %q", err.Error())
		}
	})
}

func TestErrorChains(t *testing.T) {
	t.Parallel()

	t.Run("unwrap exposes the cause", func(t *testing.T) {
		cause := fmt.Errorf("boom")
		err := New(ErrCodeOperationFailed, "rename failed").WithCause(cause)
		if !errors.Is(err, cause) {
			t.Error("errors.Is should find the cause")
		}
	})

	t.Run("is matches by code", func(t *testing.T) {
		err := New(ErrCodeObjectNotFound, "HEAD /a/b")
		if !errors.Is(err, New(ErrCodeObjectNotFound, "")) {
			t.Error("errors with identical codes should match")
		}
		if errors.Is(err, New(ErrCodeBadRequest, "")) {
			t.Error("errors with different codes must not match")
		}
	})

	t.Run("HasCode follows wrapping", func(t *testing.T) {
		inner := New(ErrCodeObjectNotFound, "gone")
		outer := fmt.Errorf("stat: %w", inner)
		if !HasCode(outer, ErrCodeObjectNotFound) {
			t.Error("HasCode should see through fmt wrapping")
		}
	})
}

func TestHelpers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		fn   func(error) bool
		want bool
	}{
		{"not found positive", New(ErrCodeObjectNotFound, ""), IsNotFound, true},
		{"not found negative", New(ErrCodeBadRequest, ""), IsNotFound, false},
		{"not found plain error", errors.New("x"), IsNotFound, false},
		{"bad request positive", New(ErrCodeBadRequest, ""), IsBadRequest, true},
		{"auth positive", New(ErrCodeAuthenticationFailed, ""), IsAuthFailure, true},
		{"retryable connection", New(ErrCodeConnectionFailed, ""), IsRetryable, true},
		{"retryable plain error", errors.New("x"), IsRetryable, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.fn(tc.err); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}
