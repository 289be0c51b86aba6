// Package errors provides standardized error handling patterns for maxbridge
// components. It includes error classification, standard error variables, and
// helper functions for consistent error wrapping and classification across
// the orchestrator, the state synchronization engine, and the transports.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/c360/maxbridge/pkg/retry"
)

// Re-exports so callers need only one errors import.
var (
	New = errors.New
	Is  = errors.Is
	As  = errors.As
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input, messages, or configuration
	ErrorInvalid
	// ErrorNotFound represents lookups for sessions, patches, objects, or
	// services that do not exist
	ErrorNotFound
	// ErrorCapacity represents bounded-resource exhaustion (full queues,
	// rate limits)
	ErrorCapacity
	// ErrorPermission represents operations rejected by security policy
	ErrorPermission
	// ErrorIO represents persistence and transport I/O failures
	ErrorIO
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorNotFound:
		return "not_found"
	case ErrorCapacity:
		return "capacity"
	case ErrorPermission:
		return "permission"
	case ErrorIO:
		return "io"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Component lifecycle errors
	ErrAlreadyStarted = errors.New("component already started")
	ErrNotStarted     = errors.New("component not started")
	ErrAlreadyStopped = errors.New("component already stopped")
	ErrShuttingDown   = errors.New("component is shutting down")

	// Queue and routing errors
	ErrQueueFull        = errors.New("message queue full")
	ErrQueueStopped     = errors.New("message queue stopped")
	ErrUnknownChannel   = errors.New("unknown channel")
	ErrNoHandler        = errors.New("no handler registered")
	ErrUnknownComponent = errors.New("component not registered")
	ErrUnknownService   = errors.New("service not registered")

	// Connection and transport errors
	ErrNoConnection      = errors.New("no connection available")
	ErrConnectionLost    = errors.New("connection lost")
	ErrConnectionTimeout = errors.New("connection timeout")

	// State model errors
	ErrSessionNotFound    = errors.New("session not found")
	ErrPatchNotFound      = errors.New("patch not found")
	ErrObjectNotFound     = errors.New("object not found")
	ErrParameterNotFound  = errors.New("parameter not found")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrSettingNotFound    = errors.New("setting not found")

	// Data processing errors
	ErrInvalidData   = errors.New("invalid data format")
	ErrInvalidValue  = errors.New("invalid value type")
	ErrParsingFailed = errors.New("parsing failed")

	// Persistence errors
	ErrInvalidStateFormat = errors.New("invalid state file format")
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")

	// Permission errors
	ErrReadOnlyParameter = errors.New("parameter is read-only")

	// Security policy errors
	ErrMessageTooLarge   = errors.New("message exceeds size limit")
	ErrRateLimited       = errors.New("rate limited")
	ErrPortOutOfRange    = errors.New("port out of allowed range")
	ErrCommandRestricted = errors.New("command not permitted")

	// Retry errors
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient and should be retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrConnectionTimeout) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	// Check error message for common transient patterns
	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"connection",
		"network",
		"temporary",
		"unavailable",
		"busy",
		"retry",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingConfig)
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrInvalidData) ||
		errors.Is(err, ErrInvalidValue) ||
		errors.Is(err, ErrParsingFailed) ||
		errors.Is(err, ErrInvalidStateFormat)
}

// IsNotFound checks if an error is a missing-entity lookup
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorNotFound
	}

	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrPatchNotFound) ||
		errors.Is(err, ErrObjectNotFound) ||
		errors.Is(err, ErrParameterNotFound) ||
		errors.Is(err, ErrConnectionNotFound) ||
		errors.Is(err, ErrSettingNotFound) ||
		errors.Is(err, ErrUnknownComponent) ||
		errors.Is(err, ErrUnknownService)
}

// IsCapacity checks if an error is bounded-resource exhaustion
func IsCapacity(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorCapacity
	}

	return errors.Is(err, ErrQueueFull) ||
		errors.Is(err, ErrRateLimited)
}

// IsPermission checks if an error is a security policy rejection
func IsPermission(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorPermission
	}

	return errors.Is(err, ErrMessageTooLarge) ||
		errors.Is(err, ErrPortOutOfRange) ||
		errors.Is(err, ErrCommandRestricted) ||
		errors.Is(err, ErrReadOnlyParameter)
}

// IsIO checks if an error is a persistence or transport I/O failure
func IsIO(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorIO
	}

	return errors.Is(err, ErrStorageUnavailable)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient // Default for nil
	}

	if IsInvalid(err) {
		return ErrorInvalid
	}
	if IsNotFound(err) {
		return ErrorNotFound
	}
	if IsCapacity(err) {
		return ErrorCapacity
	}
	if IsPermission(err) {
		return ErrorPermission
	}
	if IsIO(err) {
		return ErrorIO
	}
	if IsFatal(err) {
		return ErrorFatal
	}

	// Default to transient for unknown errors to allow retry
	return ErrorTransient
}

// newClassified creates a new classified error.
// Internal helper - use the Wrap* functions instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

func wrapClass(class ErrorClass, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(class, wrappedErr, component, method, wrappedErr.Error())
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	return wrapClass(ErrorTransient, err, component, method, action)
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	return wrapClass(ErrorInvalid, err, component, method, action)
}

// WrapNotFound wraps an error as a missing-entity lookup with context
func WrapNotFound(err error, component, method, action string) error {
	return wrapClass(ErrorNotFound, err, component, method, action)
}

// WrapCapacity wraps an error as resource exhaustion with context
func WrapCapacity(err error, component, method, action string) error {
	return wrapClass(ErrorCapacity, err, component, method, action)
}

// WrapPermission wraps an error as a policy rejection with context
func WrapPermission(err error, component, method, action string) error {
	return wrapClass(ErrorPermission, err, component, method, action)
}

// WrapIO wraps an error as an I/O failure with context
func WrapIO(err error, component, method, action string) error {
	return wrapClass(ErrorIO, err, component, method, action)
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	return wrapClass(ErrorFatal, err, component, method, action)
}

// RetryConfig defines configuration for retry operations
type RetryConfig struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableErrors []error
}

// DefaultRetryConfig returns a sensible default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffFactor:   2.0,
		RetryableErrors: nil, // Empty list means retry all transient errors
	}
}

// ShouldRetry determines if an error should be retried based on config
func (rc RetryConfig) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= rc.MaxRetries {
		return false
	}

	if !IsTransient(err) {
		return false
	}

	// Check specific retryable errors if configured
	if len(rc.RetryableErrors) > 0 {
		for _, retryableErr := range rc.RetryableErrors {
			if errors.Is(err, retryableErr) {
				return true
			}
		}
		return false
	}

	return true
}

// ToRetryConfig converts the errors package RetryConfig to the retry
// package's Config type. The conversion adds 1 to MaxRetries (converting
// "additional attempts" to "total attempts") and enables jitter.
func (rc RetryConfig) ToRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  rc.MaxRetries + 1,
		InitialDelay: rc.InitialDelay,
		MaxDelay:     rc.MaxDelay,
		Multiplier:   rc.BackoffFactor,
		AddJitter:    true,
	}
}
