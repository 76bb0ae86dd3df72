package convert

import (
	"context"
	"errors"
	"strings"

	"github.com/tendant/simple-converter/internal/media"
	"github.com/tendant/simple-converter/pkg/schema"
)

// ClassifyError maps a failure onto the failure types reported in events.
func ClassifyError(err error) schema.FailureType {
	if err == nil {
		return ""
	}

	switch media.KindOf(err) {
	case media.KindValidation:
		return schema.FailureTypeValidation
	case media.KindDecode, media.KindUnsupportedFormat, media.KindEncode:
		return schema.FailureTypePermanent
	case media.KindCapabilityUnavailable:
		return schema.FailureTypeRetryable
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return schema.FailureTypeRetryable
	}

	// Check for file system errors
	errStr := err.Error()
	if strings.Contains(errStr, "no such file") ||
		strings.Contains(errStr, "permission denied") {
		return schema.FailureTypePermanent
	}

	// Default to retryable for unknown errors
	return schema.FailureTypeRetryable
}

// Reason is the human-readable failure text for err.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	}
	return err.Error()
}
