// Package domainerrors carries coded errors from services to the transport
// layer. Services create or wrap errors with a Code; handlers translate the
// Code to an HTTP status through httputil.WriteError.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers.
type Code string

const (
	CodeValidation          Code = "validation_error"
	CodeBadRequest          Code = "bad_request"
	CodeNotFound            Code = "not_found"
	CodeIdentityNotFound    Code = "identity_not_found"
	CodeTokenNotFound       Code = "token_not_found"
	CodeBlockValidation     Code = "block_validation_failed"
	CodeConsensusRejected   Code = "consensus_rejected"
	CodeSigning             Code = "signing_failed"
	CodeProviderUnavailable Code = "provider_unavailable"
	CodeCacheUnavailable    Code = "cache_unavailable"
	CodeInternal            Code = "internal_error"
)

// Error is a coded domain error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and context message to err. A nil err yields nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the outermost code in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost coded error in the chain has code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// MessageOf returns the message of the outermost coded error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
