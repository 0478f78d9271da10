package errors

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// Hints surfaced to operators alongside a provider error code.
const (
	HintRetryDifferentParameters = "retry with different parameters"
	HintRetryLater               = "request was throttled, retry later"
	HintAlreadyExists            = "a resource with this name already exists"
	HintPermissions              = "check the caller has the required permissions"
)

// IsNotFound reports whether err is a provider "does not exist" error.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFoundException", "ResourceNotFoundException", "NoSuchEntity", "NoSuchKey":
			return true
		}
	}
	return false
}

// IsThrottled reports whether err is a provider throttling error.
func IsThrottled(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "Throttling", "ThrottlingException", "TooManyRequestsException", "RequestLimitExceeded":
			return true
		}
	}
	return false
}

// HasCode reports whether err is a provider error with the given code.
func HasCode(err error, code string) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == code
}

// Classify converts err into a *ProviderError. Errors already carrying a
// classification (provider, timeout, dependency, configuration) pass through.
func Classify(kind, operation string, err error) error {
	if err == nil {
		return nil
	}

	var timeout *ProviderTimeoutError
	if errors.As(err, &timeout) {
		return err
	}
	var existing *ProviderError
	if errors.As(err, &existing) {
		return err
	}
	var dependency *DependencyUnsatisfiedError
	if errors.As(err, &dependency) {
		return err
	}
	var configuration *ConfigurationError
	if errors.As(err, &configuration) {
		return err
	}

	pe := &ProviderError{
		Kind:      kind,
		Operation: operation,
		Message:   err.Error(),
		Err:       err,
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		pe.Code = apiErr.ErrorCode()
		pe.Message = apiErr.ErrorMessage()
		pe.Retryable = apiErr.ErrorFault() == smithy.FaultServer
	}

	switch {
	case strings.Contains(pe.Code, "LimitExceeded"):
		pe.Hint = HintRetryDifferentParameters
	case IsThrottled(err):
		pe.Hint = HintRetryLater
		pe.Retryable = true
	case strings.Contains(pe.Code, "AlreadyExists") || pe.Code == "ConflictException":
		pe.Hint = HintAlreadyExists
	case pe.Code == "AccessDeniedException" || pe.Code == "AccessDenied" || pe.Code == "UnauthorizedOperation":
		pe.Hint = HintPermissions
	}

	return pe
}
