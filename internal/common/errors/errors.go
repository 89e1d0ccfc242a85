// Package errors provides standardized error handling for the discovery pipeline.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeProviderTimeout         ErrorCode = "PROVIDER_TIMEOUT"
	ErrCodeProviderAuthFailed      ErrorCode = "PROVIDER_AUTH_FAILED"
	ErrCodeProviderInvalidResponse ErrorCode = "PROVIDER_INVALID_RESPONSE"
	ErrCodeProviderUnavailable     ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrCodeAllProvidersFailed      ErrorCode = "ALL_PROVIDERS_FAILED"

	ErrCodeToolExecutionFailed ErrorCode = "TOOL_EXECUTION_FAILED"
	ErrCodeToolTimeout         ErrorCode = "TOOL_TIMEOUT"
	ErrCodeProductNotFound     ErrorCode = "PRODUCT_NOT_FOUND"

	ErrCodeDatabaseQueryFailed ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeSearchQueryFailed   ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout       ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeIndexNotFound       ErrorCode = "INDEX_NOT_FOUND"

	ErrCodeEmbeddingFailed  ErrorCode = "EMBEDDING_FAILED"
	ErrCodeGenerationFailed ErrorCode = "GENERATION_FAILED"

	ErrCodePipelineTimeout      ErrorCode = "PIPELINE_TIMEOUT"
	ErrCodeConfigurationInvalid ErrorCode = "CONFIGURATION_INVALID"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Provider Error Integration
// ==========================

// ProviderErrorKind discriminates how the orchestrator reacts to a
// failed analyzer call: fall back, retry, or abort.
type ProviderErrorKind string

const (
	ProviderTimeout         ProviderErrorKind = "timeout"
	ProviderAuthError       ProviderErrorKind = "auth"
	ProviderInvalidResponse ProviderErrorKind = "invalid_response"
	ProviderUnavailable     ProviderErrorKind = "unavailable"
)

// ProviderError wraps an upstream analyzer failure with its kind so the
// vision/speech orchestrators can apply the right fallback policy.
type ProviderError struct {
	Provider string            `json:"provider"`
	Kind     ProviderErrorKind `json:"kind"`
	Message  string            `json:"message"`
	Wrapped  error             `json:"-"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("ProviderError[%s/%s]: %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Wrapped
}

// IsFatal reports whether the error must propagate instead of triggering
// fallback to the next provider. Auth failures are never recoverable by
// calling a different provider with the same credentials config.
func (e *ProviderError) IsFatal() bool {
	return e.Kind == ProviderAuthError
}

// RetrySameProvider reports whether the same provider should be retried
// once before falling back.
func (e *ProviderError) RetrySameProvider() bool {
	return e.Kind == ProviderInvalidResponse
}

func NewProviderError(provider string, kind ProviderErrorKind, err error) *ProviderError {
	msg := string(kind)
	if err != nil {
		msg = err.Error()
	}
	return &ProviderError{
		Provider: provider,
		Kind:     kind,
		Message:  msg,
		Wrapped:  err,
	}
}

// AsProviderError unwraps err into a *ProviderError if possible.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	for err != nil {
		if p, ok := err.(*ProviderError); ok {
			pe = p
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return pe, pe != nil
}

// ==========================
// 3. Error Constructors
// ==========================

// NewValidationError creates a non-retryable input validation error.
// It is the only error class surfaced to the caller unchanged.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConfigurationError creates a fatal startup configuration error.
func NewConfigurationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigurationInvalid,
		Message:   "Invalid or missing configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewToolExecutionError creates an isolated tool failure. It is recorded
// on the invocation and excluded from the merge, never fatal.
func NewToolExecutionError(tool string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeToolExecutionFailed,
		Message:   fmt.Sprintf("Tool '%s' execution failed", tool),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewToolTimeoutError creates a per-tool deadline error.
func NewToolTimeoutError(tool string) *StandardError {
	return &StandardError{
		Code:      ErrCodeToolTimeout,
		Message:   fmt.Sprintf("Tool '%s' exceeded its timeout", tool),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPipelineTimeoutError marks the global request deadline as exceeded;
// the response built afterwards must carry degraded=true.
func NewPipelineTimeoutError(queryID string) *StandardError {
	return &StandardError{
		Code:      ErrCodePipelineTimeout,
		Message:   "Request deadline exceeded, returning partial results",
		Details:   fmt.Sprintf("queryId: %s", queryID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseQueryFailedError creates a retryable database error.
func NewDatabaseQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseQueryFailed,
		Message:   "Database query execution error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable search backend error.
func NewSearchQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Search index query error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewProductNotFoundError creates a non-retryable missing product error.
func NewProductNotFoundError(productID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProductNotFound,
		Message:   "Product not found",
		Details:   fmt.Sprintf("productId: %s", productID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmbeddingFailedError creates a retryable embedding generation error.
func NewEmbeddingFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmbeddingFailed,
		Message:   "Embedding generation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationFailedError creates a retryable language generation error.
func NewGenerationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationFailed,
		Message:   "Language generation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Retry Policy
// ==========================

// GetRetryCount returns how many times a call with the given code may be
// retried. Transient provider/backend errors get one retry; validation,
// auth and configuration errors none.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeProviderTimeout,
		ErrCodeProviderInvalidResponse,
		ErrCodeProviderUnavailable,
		ErrCodeDatabaseQueryFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeEmbeddingFailed,
		ErrCodeGenerationFailed,
		ErrCodeToolExecutionFailed:
		return 1

	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "PROVIDER"):
		return "PROVIDER"
	case strings.Contains(codeStr, "TOOL"):
		return "TOOL"
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "EMBEDDING") || strings.Contains(codeStr, "GENERATION"):
		return "AI"
	case strings.Contains(codeStr, "CONFIGURATION"):
		return "CONFIGURATION"
	default:
		return "OTHER"
	}
}
