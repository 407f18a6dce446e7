// Package errors provides standardized error handling for magicportal.
// It includes error classification, the relay error kinds, and helper functions
// for consistent error wrapping and classification across the bridge.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may clear on their own
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
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
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Lifecycle errors
	ErrAlreadyStarted = errors.New("already started")
	ErrNotStarted     = errors.New("not started")
	ErrShuttingDown   = errors.New("shutting down")

	// Connection and networking errors
	ErrNoConnection       = errors.New("no connection available")
	ErrConnectionLost     = errors.New("connection lost")
	ErrConnectionTimeout  = errors.New("connection timeout")
	ErrSubscriptionFailed = errors.New("subscription failed")

	// Configuration errors
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrMissingConfig  = errors.New("missing required configuration")
	ErrConfigNotFound = errors.New("configuration not found")

	// Circuit breaker errors
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrTaskPanicked marks a relay task that panicked instead of returning.
	ErrTaskPanicked = errors.New("relay task panicked")
)

// Relay error kinds. Every error a relay task or the startup path returns
// matches exactly one of these with errors.Is.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrAddressParse      = errors.New("address parse error")
	ErrInterfaceNotFound = errors.New("interface not found")
	ErrBind              = errors.New("bind error")
	ErrMulticastJoin     = errors.New("multicast join error")
	ErrConnect           = errors.New("connect error")
	ErrSubscribe         = errors.New("subscribe error")
	ErrPublish           = errors.New("publish error")
	ErrSend              = errors.New("send error")
	ErrReceive           = errors.New("receive error")
	ErrConnection        = errors.New("connection error")
)

var relayKinds = []error{
	ErrConfiguration,
	ErrAddressParse,
	ErrInterfaceNotFound,
	ErrBind,
	ErrMulticastJoin,
	ErrConnect,
	ErrSubscribe,
	ErrPublish,
	ErrSend,
	ErrReceive,
	ErrConnection,
}

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

// IsTransient checks if an error is transient
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
		errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"connection",
		"network",
		"temporary",
		"unavailable",
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

	if errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingConfig) ||
		errors.Is(err, ErrTaskPanicked) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"fatal", "panic", "invalid config", "missing config"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
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

	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrAddressParse) ||
		errors.Is(err, ErrInterfaceNotFound)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}

	if IsTransient(err) {
		return ErrorTransient
	}
	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}

	return ErrorTransient
}

// newClassified creates a new classified error.
// Use WrapTransient(), WrapFatal(), WrapInvalid() or WrapKind() instead.
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

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// WrapKind tags err with one of the relay kinds and classifies it.
// The result matches both kind and err with errors.Is. A nil err produces
// a new error carrying only the kind, which is how configuration problems
// without an underlying cause are reported.
func WrapKind(kind, err error, component, method, action string) error {
	var tagged error
	if err == nil {
		tagged = fmt.Errorf("%s.%s: %s: %w", component, method, action, kind)
	} else {
		tagged = fmt.Errorf("%s.%s: %s failed: %w: %w", component, method, action, kind, err)
	}
	return newClassified(classOfKind(kind), tagged, component, method, tagged.Error())
}

// KindOf returns the relay kind err carries, or nil when it carries none.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range relayKinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// KindName returns a short label for the relay kind of err, suitable as a
// metric label. Errors without a kind report "unknown".
func KindName(err error) string {
	switch KindOf(err) {
	case ErrConfiguration:
		return "configuration"
	case ErrAddressParse:
		return "address_parse"
	case ErrInterfaceNotFound:
		return "interface_not_found"
	case ErrBind:
		return "bind"
	case ErrMulticastJoin:
		return "multicast_join"
	case ErrConnect:
		return "connect"
	case ErrSubscribe:
		return "subscribe"
	case ErrPublish:
		return "publish"
	case ErrSend:
		return "send"
	case ErrReceive:
		return "receive"
	case ErrConnection:
		return "connection"
	default:
		return "unknown"
	}
}

func classOfKind(kind error) ErrorClass {
	switch kind {
	case ErrConfiguration, ErrAddressParse, ErrInterfaceNotFound:
		return ErrorInvalid
	default:
		return ErrorFatal
	}
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// New returns an error that formats as the given text.
func New(text string) error { return errors.New(text) }
