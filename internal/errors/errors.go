package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownKind     = errors.New("unknown resource kind")
	ErrNamespaceEmpty  = errors.New("namespace is required")
	ErrMissingIdentity = errors.New("missing provider identifier")
	ErrCycleDetected   = errors.New("dependency cycle detected")
)

// ConfigurationError reports a missing or invalid configuration parameter.
// It is always raised before any provider call is made.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// ConfigurationErrors collects every problem found while validating a configuration.
type ConfigurationErrors []*ConfigurationError

func (e ConfigurationErrors) Error() string {
	var parts []string
	for _, err := range e {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

// As lets errors.As pull the first ConfigurationError out of the collection.
func (e ConfigurationErrors) As(target any) bool {
	if len(e) == 0 {
		return false
	}
	if t, ok := target.(**ConfigurationError); ok {
		*t = e[0]
		return true
	}
	return false
}

// DependencyUnsatisfiedError reports a prerequisite that is neither Active nor
// plannable within the current request.
type DependencyUnsatisfiedError struct {
	Kind         string
	Prerequisite string
	Status       string
}

func (e *DependencyUnsatisfiedError) Error() string {
	return fmt.Sprintf("dependency unsatisfied: %s requires %s, which is %s", e.Kind, e.Prerequisite, e.Status)
}

// ProviderError wraps an error returned by a managed service.
type ProviderError struct {
	Kind      string
	Operation string
	Code      string
	Message   string
	Hint      string
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "provider error: %s %s", e.Operation, e.Kind)
	if e.Code != "" {
		fmt.Fprintf(&b, ": %s", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, " (%s)", e.Hint)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ProviderTimeoutError reports a long-running operation that did not reach a
// terminal state within its polling bound.
type ProviderTimeoutError struct {
	Kind      string
	Operation string
	Waited    string
	LastState string
}

func (e *ProviderTimeoutError) Error() string {
	return fmt.Sprintf("provider timeout: %s %s did not finish after %s (last state %s); re-run to reconcile", e.Operation, e.Kind, e.Waited, e.LastState)
}

// StateCorruptionError reports a persisted state that violates the dependency
// invariant. It is never repaired automatically.
type StateCorruptionError struct {
	Namespace string
	Kind      string
	Reason    string
}

func (e *StateCorruptionError) Error() string {
	return fmt.Sprintf("state corruption in namespace %s: %s: %s", e.Namespace, e.Kind, e.Reason)
}

// CycleDetectedError reports a cycle in a dependency edge table.
type CycleDetectedError struct {
	Path []string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycleDetected, strings.Join(e.Path, " -> "))
}

func (e *CycleDetectedError) Unwrap() error { return ErrCycleDetected }

// New, Is and As forward to the standard library so callers need only one errors import.
func New(text string) error { return errors.New(text) }

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func Join(errs ...error) error { return errors.Join(errs...) }
