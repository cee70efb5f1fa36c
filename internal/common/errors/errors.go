package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"cms-query-workers/internal/jcrquery"
	"cms-query-workers/internal/savedsearch"
)

type ErrorCode string

const (
	// Query construction
	ErrCodeInvalidOperator    ErrorCode = "INVALID_OPERATOR"
	ErrCodeInvalidQueryConfig ErrorCode = "INVALID_QUERY_CONFIG"

	// Query execution
	ErrCodeTransportError   ErrorCode = "TRANSPORT_ERROR"
	ErrCodeGraphQLError     ErrorCode = "GRAPHQL_ERROR"
	ErrCodeQueryTimeout     ErrorCode = "QUERY_TIMEOUT"
	ErrCodeQuerySuperseded  ErrorCode = "QUERY_SUPERSEDED"
	ErrCodeResponseDecoding ErrorCode = "RESPONSE_DECODING_FAILED"

	// Storage
	ErrCodeCacheUnavailable    ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeSavedSearchNotFound ErrorCode = "SAVED_SEARCH_NOT_FOUND"
	ErrCodeDatabaseFailed      ErrorCode = "DATABASE_OPERATION_FAILED"

	ErrCodeInputValidationFailed ErrorCode = "INPUT_VALIDATION_FAILED"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
)

// StandardError is the error shape every worker reports back to the engine.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error { return e.cause }

// ToJobVariables renders the error as process variables for a failed job.
func (e *StandardError) ToJobVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    string(e.Code),
		"errorMessage": e.Message,
		"retryable":    e.Retryable,
	}
	if e.Details != "" {
		vars["errorDetails"] = e.Details
	}
	for k, v := range e.Metadata {
		vars[k] = v
	}
	return vars
}

type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func newError(code ErrorCode, message string, retryable bool, cause error) *StandardError {
	e := &StandardError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

func NewInvalidOperatorError(err error) *StandardError {
	return newError(ErrCodeInvalidOperator, "Unsupported constraint operator", false, err)
}

func NewInvalidQueryConfigError(err error) *StandardError {
	return newError(ErrCodeInvalidQueryConfig, "Invalid query configuration", false, err)
}

func NewTransportError(err error) *StandardError {
	return newError(ErrCodeTransportError, "GraphQL endpoint unreachable", true, err)
}

func NewGraphQLError(err error) *StandardError {
	return newError(ErrCodeGraphQLError, "GraphQL query rejected", false, err)
}

func NewQueryTimeoutError(workspace string) *StandardError {
	e := newError(ErrCodeQueryTimeout, "Query exceeded its time budget", true, jcrquery.ErrQueryTimeout)
	e.Details = fmt.Sprintf("workspace: %s", workspace)
	return e
}

func NewQuerySupersededError() *StandardError {
	return newError(ErrCodeQuerySuperseded, "Query was replaced by a newer request", false, jcrquery.ErrSuperseded)
}

func NewResponseDecodingError(err error) *StandardError {
	return newError(ErrCodeResponseDecoding, "Unexpected query response shape", false, err)
}

func NewCacheUnavailableError(err error) *StandardError {
	return newError(ErrCodeCacheUnavailable, "Render cache unavailable", true, err)
}

func NewSavedSearchNotFoundError(id string) *StandardError {
	e := newError(ErrCodeSavedSearchNotFound, "Saved search not found", false, nil)
	e.Details = fmt.Sprintf("id: %s", id)
	return e
}

func NewDatabaseError(err error) *StandardError {
	return newError(ErrCodeDatabaseFailed, "Database operation failed", true, err)
}

func NewInputValidationError(details string) *StandardError {
	e := newError(ErrCodeInputValidationFailed, "Job input failed validation", false, nil)
	e.Details = details
	return e
}

// FromError classifies any error returned by the query pipeline. Errors that
// are already StandardErrors pass through unchanged.
func FromError(err error) *StandardError {
	if err == nil {
		return nil
	}

	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}

	var (
		opErr        *jcrquery.InvalidOperatorError
		propErr      *jcrquery.InvalidPropertyError
		transportErr *jcrquery.TransportError
		gqlErr       *jcrquery.GraphQLError
	)
	switch {
	case stderrors.As(err, &opErr):
		return NewInvalidOperatorError(err)
	case stderrors.As(err, &propErr), stderrors.Is(err, jcrquery.ErrInvalidJoiner), stderrors.Is(err, jcrquery.ErrInvalidConfig):
		return NewInvalidQueryConfigError(err)
	case stderrors.Is(err, jcrquery.ErrQueryTimeout), stderrors.Is(err, context.DeadlineExceeded):
		e := NewQueryTimeoutError("")
		e.Details = err.Error()
		return e
	case stderrors.Is(err, jcrquery.ErrSuperseded):
		return NewQuerySupersededError()
	case stderrors.As(err, &transportErr):
		return NewTransportError(err)
	case stderrors.As(err, &gqlErr):
		return NewGraphQLError(err)
	case stderrors.Is(err, jcrquery.ErrDecode):
		return NewResponseDecodingError(err)
	case stderrors.Is(err, savedsearch.ErrNotFound):
		e := NewSavedSearchNotFoundError("")
		e.Details = err.Error()
		return e
	}
	return newError(ErrCodeInternal, "Unexpected error", false, err)
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidOperator:       "INVALID_OPERATOR",
	ErrCodeInvalidQueryConfig:    "INVALID_QUERY_CONFIG",
	ErrCodeTransportError:        "TRANSPORT_ERROR",
	ErrCodeGraphQLError:          "GRAPHQL_ERROR",
	ErrCodeQueryTimeout:          "QUERY_TIMEOUT",
	ErrCodeQuerySuperseded:       "QUERY_SUPERSEDED",
	ErrCodeResponseDecoding:      "RESPONSE_DECODING_FAILED",
	ErrCodeCacheUnavailable:      "CACHE_UNAVAILABLE",
	ErrCodeSavedSearchNotFound:   "SAVED_SEARCH_NOT_FOUND",
	ErrCodeDatabaseFailed:        "DATABASE_OPERATION_FAILED",
	ErrCodeInputValidationFailed: "INPUT_VALIDATION_FAILED",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeTransportError,
		ErrCodeCacheUnavailable,
		ErrCodeDatabaseFailed:
		return 3 // Retryable technical errors

	case ErrCodeQueryTimeout:
		return 2

	default:
		return 0 // Business errors: no retry
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CACHE"), strings.Contains(codeStr, "DATABASE"), strings.Contains(codeStr, "SAVED_SEARCH"):
		return "STORAGE"
	case strings.Contains(codeStr, "TRANSPORT"), strings.Contains(codeStr, "GRAPHQL"), strings.Contains(codeStr, "RESPONSE"):
		return "GRAPHQL"
	case strings.Contains(codeStr, "QUERY_TIMEOUT"), strings.Contains(codeStr, "SUPERSEDED"):
		return "EXECUTION"
	case strings.Contains(codeStr, "INVALID"), strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
