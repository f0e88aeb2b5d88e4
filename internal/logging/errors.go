package logging

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrorKind is the error taxonomy every AutomationError is tagged with,
// replacing a deep exception hierarchy with a flat tag the engine and
// scheduler can switch on.
type ErrorKind string

const (
	ErrElementNotFound   ErrorKind = "ELEMENT_NOT_FOUND"
	ErrTimeout           ErrorKind = "TIMEOUT"
	ErrNavigation        ErrorKind = "NAVIGATION"
	ErrValidation        ErrorKind = "VALIDATION"
	ErrScript            ErrorKind = "SCRIPT_ERROR"
	ErrAutomationStopped ErrorKind = "AUTOMATION_STOPPED"
	ErrDownloadFailed    ErrorKind = "DOWNLOAD_FAILED"
	ErrNetwork           ErrorKind = "NETWORK_ERROR"
)

// AutomationError is the single structured error type that crosses
// component boundaries (driver -> handler -> engine -> scheduler). It
// carries enough context for the scheduler's failure classifier and for
// the on-disk error-detail dump without an ad hoc field per error site.
type AutomationError struct {
	ID          string         `json:"id"`
	Kind        ErrorKind      `json:"kind"`
	Message     string         `json:"message"`
	JobID       string         `json:"jobId,omitempty"`
	ActionIndex int            `json:"actionIndex,omitempty"`
	Selector    string         `json:"selector,omitempty"`
	Cause       error          `json:"-"`
	Retryable   bool           `json:"retryable"`
	RetryCount  int            `json:"retryCount"`
	MaxRetries  int            `json:"maxRetries"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewAutomationError builds an AutomationError of the given kind.
func NewAutomationError(kind ErrorKind, message string) *AutomationError {
	return &AutomationError{
		ID:        uuid.New().String(),
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now(),
		Metadata:  map[string]any{},
	}
}

// WrapAutomationError classifies an arbitrary error into an AutomationError
// of the given kind, preserving it as Cause. If err is already an
// *AutomationError it is returned unchanged.
func WrapAutomationError(kind ErrorKind, err error) *AutomationError {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*AutomationError); ok {
		return ae
	}
	ae := NewAutomationError(kind, err.Error())
	ae.Cause = err
	return ae
}

func (e *AutomationError) Error() string {
	if e.Selector != "" {
		return fmt.Sprintf("[%s] %s (selector: %s)", e.Kind, e.Message, e.Selector)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *AutomationError) Unwrap() error { return e.Cause }

// ShouldRetry reports whether this error is retryable and has budget left.
func (e *AutomationError) ShouldRetry() bool {
	return e.Retryable && e.RetryCount < e.MaxRetries
}

func (e *AutomationError) IncrementRetry() { e.RetryCount++ }

// WithJob sets the originating job/run ID and returns the receiver.
func (e *AutomationError) WithJob(jobID string) *AutomationError {
	e.JobID = jobID
	return e
}

// WithAction sets the index of the action within its automation config.
func (e *AutomationError) WithAction(index int) *AutomationError {
	e.ActionIndex = index
	return e
}

// WithSelector records the selector involved in the failure.
func (e *AutomationError) WithSelector(selector string) *AutomationError {
	e.Selector = selector
	return e
}

// WithRetry marks the error retryable up to maxRetries attempts.
func (e *AutomationError) WithRetry(maxRetries int) *AutomationError {
	e.Retryable = true
	e.MaxRetries = maxRetries
	return e
}

// WithMeta attaches a metadata key/value pair.
func (e *AutomationError) WithMeta(key string, value any) *AutomationError {
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	e.Metadata[key] = value
	return e
}

// defaultRetryableKinds records a default retry posture per kind:
// network/timeout-class issues are retryable, validation/stop-class ones are
// not. The workflow engine does not consult it; its retries follow each
// Handler's RetryPolicy.
var defaultRetryableKinds = map[ErrorKind]bool{
	ErrTimeout:         true,
	ErrNetwork:         true,
	ErrElementNotFound: true,
	ErrNavigation:      true,
	ErrScript:          false,
	ErrValidation:      false,
	ErrDownloadFailed:  true,
	ErrAutomationStopped: false,
}

// IsRetryableKind reports the default retry posture for an error kind.
func IsRetryableKind(kind ErrorKind) bool {
	return defaultRetryableKinds[kind]
}
