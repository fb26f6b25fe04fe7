package errors

import (
	stderrors "errors"
	"fmt"
)

// CorpusError is the structured error type for corpusrank.
// It carries enough context for logging, CLI presentation and MCP error mapping.
type CorpusError struct {
	// Code is the unique error code (e.g., "ERR_401_INVALID_ARGUMENT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is derived from the code's hundreds digit.
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Sentinels for errors.Is matching. Comparison is by code only.
var (
	ErrInvalidArgument  = &CorpusError{Code: ErrCodeInvalidArgument}
	ErrStoreUnavailable = &CorpusError{Code: ErrCodeStoreUnavailable}
	ErrEmbeddingFailed  = &CorpusError{Code: ErrCodeEmbeddingFailed}
	ErrIndexFailed      = &CorpusError{Code: ErrCodeIndexFailed}
	ErrConfigInvalid    = &CorpusError{Code: ErrCodeConfigInvalid}
)

// Error implements the error interface.
func (e *CorpusError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *CorpusError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a CorpusError with the same code.
func (e *CorpusError) Is(target error) bool {
	if t, ok := target.(*CorpusError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *CorpusError) WithDetail(key, value string) *CorpusError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *CorpusError) WithSuggestion(suggestion string) *CorpusError {
	e.Suggestion = suggestion
	return e
}

// New creates a new CorpusError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *CorpusError {
	return &CorpusError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a CorpusError from an existing error.
// The error's message becomes the CorpusError message.
func Wrap(code string, err error) *CorpusError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// InvalidArgument creates a fatal argument validation error.
func InvalidArgument(format string, args ...any) *CorpusError {
	return New(ErrCodeInvalidArgument, fmt.Sprintf(format, args...), nil)
}

// StoreUnavailable wraps a vector store or catalog failure.
func StoreUnavailable(message string, cause error) *CorpusError {
	return New(ErrCodeStoreUnavailable, message, cause)
}

// EmbeddingFailed wraps an embedding backend failure.
func EmbeddingFailed(message string, cause error) *CorpusError {
	return New(ErrCodeEmbeddingFailed, message, cause)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *CorpusError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// NetworkError creates a network-related error.
// Network errors are retryable.
func NetworkError(message string, cause error) *CorpusError {
	return New(ErrCodeNetworkUnavailable, message, cause)
}

// As finds the first CorpusError in err's chain.
func As(err error) (*CorpusError, bool) {
	var ce *CorpusError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if ce, ok := As(err); ok {
		return ce.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors abort the current batch operation.
func IsFatal(err error) bool {
	if ce, ok := As(err); ok {
		return ce.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a CorpusError.
// Returns empty string if err carries none.
func GetCode(err error) string {
	if ce, ok := As(err); ok {
		return ce.Code
	}
	return ""
}
