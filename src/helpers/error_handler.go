package helpers

import (
	"context"
	"errors"
	"fmt"
	"parking-viewer/src/logger"
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type ParkingViewerError struct {
	Message string
	Cause   error
}

func (e *ParkingViewerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ParkingViewerError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As dispatch
type ConfigurationError struct{ ParkingViewerError }
type ValidationError struct{ ParkingViewerError }
type DatabaseError struct{ ParkingViewerError }

// StaleSessionError means the backend answered well-formed but no longer knows the session.
type StaleSessionError struct{ ParkingViewerError }

// InvariantViolationError describes a frame that breaks a data model rule. It is
// logged and absorbed, never propagated to the user.
type InvariantViolationError struct{ ParkingViewerError }

// TransportError covers connection failures, timeouts, non-2xx answers and
// malformed bodies. StatusCode is 0 when no response was received.
type TransportError struct {
	ParkingViewerError
	StatusCode int
}

// -----------------------------------------------------------------------------

func NewTransportError(message string, status int, cause error) *TransportError {
	return &TransportError{ParkingViewerError{Message: message, Cause: cause}, status}
}

func NewStaleSessionError(message string) *StaleSessionError {
	return &StaleSessionError{ParkingViewerError{Message: message}}
}

func NewInvariantViolation(format string, args ...interface{}) *InvariantViolationError {
	return &InvariantViolationError{ParkingViewerError{Message: fmt.Sprintf(format, args...)}}
}

func NewValidationError(message string, cause error) *ValidationError {
	return &ValidationError{ParkingViewerError{Message: message, Cause: cause}}
}

func NewConfigurationError(message string, cause error) *ConfigurationError {
	return &ConfigurationError{ParkingViewerError{Message: message, Cause: cause}}
}

func NewDatabaseError(message string, cause error) *DatabaseError {
	return &DatabaseError{ParkingViewerError{Message: message, Cause: cause}}
}

// -----------------------------------------------------------------------------

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func IsStaleSession(err error) bool {
	var se *StaleSessionError
	return errors.As(err, &se)
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times with exponential backoff.
// Waiting stops early when ctx is cancelled.
func RetryWithBackoff(ctx context.Context, operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s aborted: %w", operation, ctx.Err())
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, maxRetries, lastErr)
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

// ErrorHandler logs failures of a background component and tracks how many
// happened in a row.
type ErrorHandler struct {
	Logger                *logger.Logger
	ErrorCount            int
	MaxErrorsBeforeSilent int
	mu                    sync.Mutex
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	return &ErrorHandler{
		Logger:                log,
		MaxErrorsBeforeSilent: 10,
	}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ResetErrorCount() {
	e.mu.Lock()
	e.ErrorCount = 0
	e.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Count returns the current consecutive error count
func (e *ErrorHandler) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ErrorCount
}

// -----------------------------------------------------------------------------

// Handle logs err under the given context. After MaxErrorsBeforeSilent
// consecutive errors only every tenth one is logged.
func (e *ErrorHandler) Handle(err error, context string) {
	if err == nil {
		e.ResetErrorCount()
		return
	}

	e.mu.Lock()
	e.ErrorCount++
	count := e.ErrorCount
	e.mu.Unlock()

	if count <= e.MaxErrorsBeforeSilent || count%10 == 0 {
		e.Logger.Error("Error in %s (%d in a row): %v", context, count, err)
	}
}
