package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestErrorClassString(t *testing.T) {
	tests := []struct {
		class ErrorClass
		want  string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorNotFound, "not_found"},
		{ErrorCapacity, "capacity"},
		{ErrorPermission, "permission"},
		{ErrorIO, "io"},
		{ErrorFatal, "fatal"},
		{ErrorClass(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.class.String(); got != tt.want {
			t.Errorf("ErrorClass(%d).String() = %q, want %q", tt.class, got, tt.want)
		}
	}
}

func TestClassifiedError(t *testing.T) {
	base := errors.New("underlying failure")
	ce := &ClassifiedError{
		Class:     ErrorInvalid,
		Err:       base,
		Message:   "queue.Enqueue: validate failed: underlying failure",
		Component: "queue",
		Operation: "Enqueue",
	}

	if ce.Error() != ce.Message {
		t.Errorf("Error() = %q, want %q", ce.Error(), ce.Message)
	}
	if !errors.Is(ce, base) {
		t.Error("errors.Is should find the underlying error")
	}

	// Without a message, Error falls through to the wrapped error
	ce2 := &ClassifiedError{Class: ErrorFatal, Err: base}
	if ce2.Error() != base.Error() {
		t.Errorf("Error() = %q, want %q", ce2.Error(), base.Error())
	}
}

func TestWrap(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(base, "engine", "SaveState", "write file")
	want := "engine.SaveState: write file failed: boom"
	if err.Error() != want {
		t.Errorf("Wrap() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, base) {
		t.Error("wrapped error should match base via errors.Is")
	}

	if Wrap(nil, "engine", "SaveState", "write file") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestWrapClassifiers(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		check func(error) bool
		class ErrorClass
	}{
		{"transient", WrapTransient, IsTransient, ErrorTransient},
		{"invalid", WrapInvalid, IsInvalid, ErrorInvalid},
		{"not_found", WrapNotFound, IsNotFound, ErrorNotFound},
		{"capacity", WrapCapacity, IsCapacity, ErrorCapacity},
		{"permission", WrapPermission, IsPermission, ErrorPermission},
		{"io", WrapIO, IsIO, ErrorIO},
		{"fatal", WrapFatal, IsFatal, ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wrap(base, "comp", "Method", "action")
			if err == nil {
				t.Fatal("expected non-nil error")
			}
			if !tt.check(err) {
				t.Errorf("Is%s should be true for Wrap%s", tt.name, tt.name)
			}
			if Classify(err) != tt.class {
				t.Errorf("Classify() = %v, want %v", Classify(err), tt.class)
			}
			if tt.wrap(nil, "comp", "Method", "action") != nil {
				t.Error("wrapping nil should return nil")
			}

			var ce *ClassifiedError
			if !errors.As(err, &ce) {
				t.Fatal("expected ClassifiedError")
			}
			if ce.Component != "comp" || ce.Operation != "Method" {
				t.Errorf("component/operation = %q/%q", ce.Component, ce.Operation)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"storage unavailable", ErrStorageUnavailable, true},
		{"rate limited", ErrRateLimited, true},
		{"context deadline", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"timeout pattern", errors.New("operation timeout occurred"), true},
		{"network pattern", errors.New("network unreachable"), true},
		{"plain error", errors.New("something else entirely"), false},
		{"classified invalid", WrapInvalid(errors.New("x"), "c", "M", "a"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsNotFoundStandardErrors(t *testing.T) {
	for _, err := range []error{
		ErrSessionNotFound,
		ErrPatchNotFound,
		ErrObjectNotFound,
		ErrParameterNotFound,
		ErrConnectionNotFound,
		ErrUnknownComponent,
		ErrUnknownService,
	} {
		if !IsNotFound(err) {
			t.Errorf("IsNotFound(%v) = false, want true", err)
		}
		if !IsNotFound(fmt.Errorf("lookup: %w", err)) {
			t.Errorf("IsNotFound(wrapped %v) = false, want true", err)
		}
	}
}

func TestIsCapacity(t *testing.T) {
	if !IsCapacity(ErrQueueFull) {
		t.Error("queue full should classify as capacity")
	}
	if !IsCapacity(fmt.Errorf("enqueue: %w", ErrQueueFull)) {
		t.Error("wrapped queue full should classify as capacity")
	}
	if IsCapacity(ErrObjectNotFound) {
		t.Error("not-found should not classify as capacity")
	}
}

func TestIsPermission(t *testing.T) {
	for _, err := range []error{ErrMessageTooLarge, ErrPortOutOfRange, ErrCommandRestricted} {
		if !IsPermission(err) {
			t.Errorf("IsPermission(%v) = false, want true", err)
		}
	}
	if IsPermission(ErrQueueFull) {
		t.Error("queue full should not classify as permission")
	}
}

func TestClassifyPrecedence(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil defaults transient", nil, ErrorTransient},
		{"invalid data", ErrInvalidData, ErrorInvalid},
		{"state format", ErrInvalidStateFormat, ErrorInvalid},
		{"session not found", ErrSessionNotFound, ErrorNotFound},
		{"queue full", ErrQueueFull, ErrorCapacity},
		{"restricted command", ErrCommandRestricted, ErrorPermission},
		{"invalid config", ErrInvalidConfig, ErrorFatal},
		{"unknown defaults transient", errors.New("mystery"), ErrorTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryConfigShouldRetry(t *testing.T) {
	rc := DefaultRetryConfig()

	if rc.ShouldRetry(nil, 0) {
		t.Error("nil error should not retry")
	}
	if rc.ShouldRetry(ErrConnectionTimeout, rc.MaxRetries) {
		t.Error("should not retry once attempts exhausted")
	}
	if !rc.ShouldRetry(ErrConnectionTimeout, 0) {
		t.Error("transient error should retry")
	}
	if rc.ShouldRetry(WrapInvalid(errors.New("bad"), "c", "M", "a"), 0) {
		t.Error("invalid error should not retry")
	}

	// Restricted list only retries the listed errors
	rc.RetryableErrors = []error{ErrConnectionLost}
	if rc.ShouldRetry(ErrConnectionTimeout, 0) {
		t.Error("timeout not in retryable list")
	}
	if !rc.ShouldRetry(fmt.Errorf("send: %w", ErrConnectionLost), 0) {
		t.Error("listed error should retry even when wrapped")
	}
}

func TestToRetryConfig(t *testing.T) {
	rc := RetryConfig{
		MaxRetries:    4,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 1.5,
	}
	cfg := rc.ToRetryConfig()

	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
	if cfg.InitialDelay != rc.InitialDelay || cfg.MaxDelay != rc.MaxDelay {
		t.Error("delays should carry over")
	}
	if !cfg.AddJitter {
		t.Error("jitter should be enabled")
	}
}
