package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents navigation/fetch errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeRateLimit represents rate limiting by the source site
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeExtraction represents missing or unexpected markup
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeNormalization represents unparseable price text
	ErrorTypeNormalization ErrorType = "normalization"
	// ErrorTypeReconcileInput represents a malformed fresh record
	ErrorTypeReconcileInput ErrorType = "reconcile_input"
	// ErrorTypeSink represents dataset source/sink failures
	ErrorTypeSink ErrorType = "sink"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// CrawlError carries the error taxonomy for one crawl run. Only sink and
// configuration errors abort a run; everything else is degraded or
// retried at the level where it occurred.
type CrawlError struct {
	Type    ErrorType
	Section string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *CrawlError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Section, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Section, e.Message)
}

// Unwrap returns the underlying error
func (e *CrawlError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the walker should retry the operation.
func (e *CrawlError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork:
		return true
	case ErrorTypeRateLimit:
		return false
	default:
		return false
	}
}

// IsFatal returns true if the error must abort the whole run and surface
// to the outermost retry loop.
func (e *CrawlError) IsFatal() bool {
	return e.Type == ErrorTypeSink || e.Type == ErrorTypeConfiguration
}

// New creates a new CrawlError
func New(errType ErrorType, section, message string, err error) *CrawlError {
	return &CrawlError{
		Type:    errType,
		Section: section,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(section, message string, err error) *CrawlError {
	return New(ErrorTypeNetwork, section, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(section string, duration time.Duration) *CrawlError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, section, message, nil)
}

// NewExtraction creates a new extraction error
func NewExtraction(section, message string, err error) *CrawlError {
	return New(ErrorTypeExtraction, section, message, err)
}

// NewNormalization creates a new normalization error
func NewNormalization(section, message string) *CrawlError {
	return New(ErrorTypeNormalization, section, message, nil)
}

// NewReconcileInput creates an error for a malformed fresh record
func NewReconcileInput(message string) *CrawlError {
	return New(ErrorTypeReconcileInput, "", message, nil)
}

// NewSink creates a new dataset source/sink error
func NewSink(message string, err error) *CrawlError {
	return New(ErrorTypeSink, "", message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *CrawlError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// Retryable reports whether err should be retried by the page walker.
// Errors outside the CrawlError taxonomy are treated as transient.
func Retryable(err error) bool {
	var ce *CrawlError
	if errors.As(err, &ce) {
		return ce.IsRetryable()
	}
	return true
}

// Fatal reports whether err must abort the whole run.
func Fatal(err error) bool {
	var ce *CrawlError
	if errors.As(err, &ce) {
		return ce.IsFatal()
	}
	return false
}
