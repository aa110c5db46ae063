package services

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode is the machine-readable identifier surfaced to API clients.
type ErrorCode string

const (
	CodeConfiguration          ErrorCode = "configuration_error"
	CodeInvalidConfiguration   ErrorCode = "invalid_configuration"
	CodeTranslationUnavailable ErrorCode = "translation_unavailable"
	CodeEmbeddingProvider      ErrorCode = "embedding_provider_error"
	CodeGenerationProvider     ErrorCode = "generation_provider_error"
	CodeVectorStore            ErrorCode = "vector_store_error"
	CodeProviderTimeout        ErrorCode = "provider_timeout"
	CodeNoActiveSession        ErrorCode = "no_active_session"
	CodeSessionNotFound        ErrorCode = "session_not_found"
	CodeEmptyDocument          ErrorCode = "empty_document"
	CodeUnsupportedFile        ErrorCode = "unsupported_file"
	CodeUploadTooLarge         ErrorCode = "upload_too_large"
	CodeInvalidRequest         ErrorCode = "invalid_request"
	CodeInternal               ErrorCode = "internal_error"
)

// Error is the typed error returned by the service layer.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Op != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code, so sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Op == "" && t.Err == nil
}

var (
	ErrNoActiveSession = &Error{Code: CodeNoActiveSession, Message: "No document uploaded yet."}
	ErrSessionNotFound = &Error{Code: CodeSessionNotFound, Message: "Session not found."}
	ErrEmptyDocument   = &Error{Code: CodeEmptyDocument, Message: "The uploaded document contains no text."}

	// ErrLanguageDetection is always recovered locally by falling back to the
	// default language; it never reaches a caller of the service.
	ErrLanguageDetection = errors.New("language detection failed")
)

// newError builds a typed error. A deadline that expired inside a provider
// call is reported as CodeProviderTimeout regardless of the provider kind.
func newError(code ErrorCode, op, message string, err error) *Error {
	if err != nil && errors.Is(err, context.DeadlineExceeded) && isProviderCode(code) {
		code = CodeProviderTimeout
		message = message + " (timed out)"
	}
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

func isProviderCode(code ErrorCode) bool {
	switch code {
	case CodeTranslationUnavailable, CodeEmbeddingProvider, CodeGenerationProvider, CodeVectorStore:
		return true
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns a user-facing message for err without leaking provider internals.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error."
}
