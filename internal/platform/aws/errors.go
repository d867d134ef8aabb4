package aws

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"
)

// ErrNotConfigured is returned when an operation needs a service client
// that was not provided.
var ErrNotConfigured = errors.New("service client not configured")

func isThrottling(code string) bool {
	switch code {
	case "Throttling", "ThrottlingException", "ThrottledException",
		"RequestLimitExceeded", "RequestThrottled", "TooManyRequestsException",
		"SlowDown", "RequestTimeout", "RequestTimeoutException":
		return true
	}
	return false
}

func isNotFoundCode(code string) bool {
	switch code {
	case "NotFound", "404", "NoSuchBucket", "NoSuchBucketPolicy",
		"NoSuchPublicAccessBlockConfiguration",
		"ServerSideEncryptionConfigurationNotFoundError",
		"NoSuchEntity", "NotFoundException", "ParameterNotFound",
		"DeploymentDoesNotExistException":
		return true
	}
	return false
}

// Retryable reports whether an error is worth another attempt: throttling,
// server faults and transport failures are; client faults and cancellation
// are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrNotConfigured) {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if isThrottling(apiErr.ErrorCode()) {
			return true
		}
		return apiErr.ErrorFault() == smithy.FaultServer
	}
	return true
}

// IsNotFound reports whether the error says the resource or the requested
// sub-configuration does not exist.
func IsNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return isNotFoundCode(apiErr.ErrorCode())
	}
	return false
}
