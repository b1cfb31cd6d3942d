package serr

import (
	"errors"
	"fmt"
)

// ServiceError is the structured error type used throughout searchemu.
// It carries enough context to render the wire error shape
// and to decide HTTP status and retryability without string sniffing.
type ServiceError struct {
	Code       string            // e.g. ERR_301_INDEX_NOT_FOUND
	Category   Category          // derived from Code unless overridden
	Severity   Severity          // derived from Code unless overridden
	Message    string            // human-readable message
	Target     string            // field/parameter the error relates to, if any
	Details    map[string]string // structured key/value detail
	Cause      error             // wrapped underlying error
	Retryable  bool              // whether retrying the same request might succeed
	Suggestion string            // optional operator-facing hint
}

// New creates a ServiceError with category/severity/retryability derived
// from the code's band.
func New(code, message string) *ServiceError {
	return &ServiceError{
		Code:      code,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Message:   message,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a ServiceError that carries an underlying cause.
func Wrap(code string, cause error, message string) *ServiceError {
	e := New(code, message)
	e.Cause = cause
	return e
}

// WithTarget sets the Target field and returns the receiver for chaining.
func (e *ServiceError) WithTarget(target string) *ServiceError {
	e.Target = target
	return e
}

// WithDetail adds a single detail key/value pair and returns the receiver.
func (e *ServiceError) WithDetail(key, value string) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets the Suggestion field and returns the receiver.
func (e *ServiceError) WithSuggestion(s string) *ServiceError {
	e.Suggestion = s
	return e
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap supports errors.Is / errors.As against the wrapped cause.
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match two ServiceErrors by Code, and lets it match a
// bare target code passed through New(code, "") as a sentinel.
func (e *ServiceError) Is(target error) bool {
	var other *ServiceError
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// WireError is the JSON envelope returned to clients: {"error": {...}}.
type WireError struct {
	Error WireErrorBody `json:"error"`
}

// WireErrorBody is the inner error object.
type WireErrorBody struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Target     string            `json:"target,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	InnerError *InnerError       `json:"innererror,omitempty"`
}

// InnerError carries developer-facing detail, only populated in dev mode.
type InnerError struct {
	Code       string `json:"code"`
	Cause      string `json:"cause,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ToWire renders a ServiceError into the wire envelope. When devMode is
// true, an innererror block with the internal code, cause, and suggestion
// is attached; production responses omit it to avoid leaking internals.
func ToWire(err error, devMode bool) (WireError, int) {
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		svcErr = Wrap(ErrCodeInternal, err, "an internal error occurred")
	}

	body := WireErrorBody{
		Code:    string(wireCodeFromCode(svcErr.Code)),
		Message: svcErr.Message,
		Target:  svcErr.Target,
		Details: svcErr.Details,
	}

	if devMode {
		inner := &InnerError{
			Code:       svcErr.Code,
			Suggestion: svcErr.Suggestion,
		}
		if svcErr.Cause != nil {
			inner.Cause = svcErr.Cause.Error()
		}
		body.InnerError = inner
	}

	return WireError{Error: body}, HTTPStatus(svcErr.Code)
}

// IsRetryable reports whether err (or a wrapped ServiceError within it) is
// marked retryable.
func IsRetryable(err error) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Retryable
	}
	return false
}
