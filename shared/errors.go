package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// ErrorCategory represents different types of errors that can occur
type ErrorCategory string

const (
	ErrorCategoryConfiguration ErrorCategory = "configuration"
	ErrorCategoryNetwork       ErrorCategory = "network"
	ErrorCategoryDatabase      ErrorCategory = "database"
	ErrorCategoryValidation    ErrorCategory = "validation"
	ErrorCategoryProcessing    ErrorCategory = "processing"
	ErrorCategoryResource      ErrorCategory = "resource"
	ErrorCategoryTimeout       ErrorCategory = "timeout"
)

// Sentinel errors of the aggregation layer. ServiceError values match them
// through errors.Is.
var (
	ErrInvalidIdentifier   = errors.New("invalid identifier")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrAllBackendsFailed   = errors.New("all backends failed")
	ErrValidationDegraded  = errors.New("validation degraded")
	ErrNotFound            = errors.New("not found")
	ErrUnsupported         = errors.New("operation not supported by backend")
)

const (
	CodeInvalidIdentifier   = "INVALID_IDENTIFIER"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeAllBackendsFailed   = "ALL_BACKENDS_FAILED"
	CodeValidationDegraded  = "VALIDATION_DEGRADED"
	CodeNotFound            = "NOT_FOUND"
)

// ServiceError represents a standardized error with additional context
type ServiceError struct {
	Category    ErrorCategory `json:"category"`
	Code        string        `json:"code"`
	Message     string        `json:"message"`
	Details     interface{}   `json:"details,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	ServiceName string        `json:"service_name"`
	Operation   string        `json:"operation"`
	Retryable   bool          `json:"retryable"`
	Cause       error         `json:"-"` // Original error, not serialized

	kind error
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the taxonomy sentinel this error was built for.
func (e *ServiceError) Is(target error) bool {
	return e.kind != nil && e.kind == target
}

// NewServiceError creates a new service error
func NewServiceError(category ErrorCategory, code, message, serviceName, operation string, retryable bool, cause error) *ServiceError {
	return &ServiceError{
		Category:    category,
		Code:        code,
		Message:     message,
		Timestamp:   time.Now(),
		ServiceName: serviceName,
		Operation:   operation,
		Retryable:   retryable,
		Cause:       cause,
		kind:        kindForCode(code),
	}
}

func kindForCode(code string) error {
	switch code {
	case CodeInvalidIdentifier:
		return ErrInvalidIdentifier
	case CodeUpstreamUnavailable:
		return ErrUpstreamUnavailable
	case CodeAllBackendsFailed:
		return ErrAllBackendsFailed
	case CodeValidationDegraded:
		return ErrValidationDegraded
	case CodeNotFound:
		return ErrNotFound
	}
	return nil
}

// WithDetails adds additional details to the error
func (e *ServiceError) WithDetails(details interface{}) *ServiceError {
	e.Details = details
	return e
}

// NewInvalidIdentifierError reports a malformed identifier supplied by a caller.
func NewInvalidIdentifierError(operation, identifier string, cause error) *ServiceError {
	return NewServiceError(
		ErrorCategoryValidation,
		CodeInvalidIdentifier,
		fmt.Sprintf("invalid identifier %q", identifier),
		"codec",
		operation,
		false,
		cause,
	)
}

// NewUpstreamUnavailableError reports a single backend failure. It is
// retryable in the sense that another backend may answer.
func NewUpstreamUnavailableError(backend, operation string, cause error) *ServiceError {
	category := ErrorCategoryNetwork
	if errors.Is(cause, context.DeadlineExceeded) {
		category = ErrorCategoryTimeout
	}
	return NewServiceError(
		category,
		CodeUpstreamUnavailable,
		fmt.Sprintf("%s unavailable for %s", backend, operation),
		backend,
		operation,
		true,
		cause,
	)
}

// NewAllBackendsFailedError aggregates every backend error of one operation.
func NewAllBackendsFailedError(operation string, causes *multierror.Error) *ServiceError {
	var cause error
	if causes != nil {
		cause = causes.ErrorOrNil()
	}
	return NewServiceError(
		ErrorCategoryResource,
		CodeAllBackendsFailed,
		fmt.Sprintf("every backend failed for %s", operation),
		"router",
		operation,
		false,
		cause,
	)
}

// NewValidationDegradedError marks a metadata check that could not complete.
func NewValidationDegradedError(check string, cause error) *ServiceError {
	return NewServiceError(
		ErrorCategoryProcessing,
		CodeValidationDegraded,
		fmt.Sprintf("%s check could not complete", check),
		"metadata-validator",
		check,
		true,
		cause,
	)
}

// NewNotFoundError reports a missing entity at the HTTP boundary.
func NewNotFoundError(entity, identifier string) *ServiceError {
	return NewServiceError(
		ErrorCategoryResource,
		CodeNotFound,
		fmt.Sprintf("%s %s not found", entity, identifier),
		"orchestrator",
		"get_"+entity,
		false,
		nil,
	)
}

// IsRetryableError checks if an error is retryable
func IsRetryableError(err error) bool {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Retryable
	}
	return false
}

// HTTPStatusFor maps an error onto the status code returned by the API.
func HTTPStatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidIdentifier):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAllBackendsFailed):
		return http.StatusBadGateway
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// LogError logs the error with structured fields, merged with the caller's
// request context.
func (e *ServiceError) LogError(fields logrus.Fields) {
	entry := logrus.WithFields(logrus.Fields{
		"error_category":   e.Category,
		"error_code":       e.Code,
		"error_message":    e.Message,
		"service_name":     e.ServiceName,
		"operation":        e.Operation,
		"retryable":        e.Retryable,
		"timestamp":        e.Timestamp,
		"details":          e.Details,
		"underlying_error": e.Cause,
	})
	entry.WithFields(fields).Error("Service error occurred")
}
