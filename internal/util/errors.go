// Package util provides shared error types and helpers for the local gateway.
//
// # Error Conventions
//
// This project follows a standardized error pattern across all packages:
//
//   - Sentinel errors (errors.New) for well-known, stable conditions
//     that callers check with errors.Is(). Example: ErrFunctionNotFound.
//   - Structured error types for context-rich errors that carry
//     additional fields (e.g., InvalidDocumentError). Each type
//     implements Error(), Unwrap() (if wrapping), and Is().
//   - fmt.Errorf with %w for ad-hoc wrapping that adds context to an
//     existing error without introducing a new type.
//
// Build-time errors are fatal: they bubble to the process entry point and no
// partial route table is ever installed. Request-time errors are caught at
// the request boundary and converted into an HTTP response.
package util

import (
	"errors"
	"fmt"
)

// Common sentinel errors.
var (
	// ErrFunctionNotFound is reported by a function runner when the resolved
	// route's target function does not exist. It usually signals a stale
	// route table racing a template reload.
	ErrFunctionNotFound = errors.New("function not found")

	// ErrBodyDecode indicates the inbound request body could not be decoded
	// as text before event translation. The function is never invoked.
	ErrBodyDecode = errors.New("request body could not be decoded")

	// ErrRouteNotFound indicates no route matched the request path.
	ErrRouteNotFound = errors.New("route not found")

	// ErrMethodNotAllowed indicates the path matched but the method did not.
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// InvalidDocumentError represents a fatal template shape violation, such as
// an ambiguous RestApiId reference or a malformed event definition.
type InvalidDocumentError struct {
	LogicalID string
	Message   string
}

// Error implements the error interface.
func (e *InvalidDocumentError) Error() string {
	if e.LogicalID != "" {
		return fmt.Sprintf("invalid template document at %s: %s", e.LogicalID, e.Message)
	}
	return fmt.Sprintf("invalid template document: %s", e.Message)
}

// Is checks if the error matches the target.
func (e *InvalidDocumentError) Is(target error) bool {
	_, ok := target.(*InvalidDocumentError)
	return ok
}

// NewInvalidDocumentError creates a new InvalidDocumentError.
func NewInvalidDocumentError(logicalID, message string) *InvalidDocumentError {
	return &InvalidDocumentError{LogicalID: logicalID, Message: message}
}

// MultipleAuthorizersError is raised when a route or a document default
// declares more than one authorizer. At most one is allowed.
type MultipleAuthorizersError struct {
	Path   string
	Method string
}

// Error implements the error interface.
func (e *MultipleAuthorizersError) Error() string {
	if e.Path == "" {
		return "document default security declares more than one authorizer"
	}
	return fmt.Sprintf("%s %s declares more than one authorizer", e.Method, e.Path)
}

// Is checks if the error matches the target.
func (e *MultipleAuthorizersError) Is(target error) bool {
	_, ok := target.(*MultipleAuthorizersError)
	return ok
}

// InvalidOasVersionError is raised when an OpenAPI document carries neither a
// recognized swagger 2.x nor openapi 3.x version marker.
type InvalidOasVersionError struct {
	Version string
}

// Error implements the error interface.
func (e *InvalidOasVersionError) Error() string {
	return fmt.Sprintf("unsupported OpenAPI document version: %q", e.Version)
}

// Is checks if the error matches the target.
func (e *InvalidOasVersionError) Is(target error) bool {
	_, ok := target.(*InvalidOasVersionError)
	return ok
}

// DefaultAuthorizerVersionError is raised when a root-level default
// authorizer is declared under an OpenAPI version that does not support it.
// Only OpenAPI 3.x documents backing HTTP APIs may declare one.
type DefaultAuthorizerVersionError struct {
	Version string
}

// Error implements the error interface.
func (e *DefaultAuthorizerVersionError) Error() string {
	return fmt.Sprintf("default authorizer is not supported for OpenAPI version %q", e.Version)
}

// Is checks if the error matches the target.
func (e *DefaultAuthorizerVersionError) Is(target error) bool {
	_, ok := target.(*DefaultAuthorizerVersionError)
	return ok
}

// ResponseParseError represents a function return value that does not conform
// to the expected invocation-response shape.
type ResponseParseError struct {
	FunctionName string
	Message      string
	Cause        error
}

// Error implements the error interface.
func (e *ResponseParseError) Error() string {
	if e.FunctionName != "" {
		return fmt.Sprintf("invalid response from function %s: %s", e.FunctionName, e.Message)
	}
	return fmt.Sprintf("invalid function response: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ResponseParseError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ResponseParseError) Is(target error) bool {
	_, ok := target.(*ResponseParseError)
	return ok || errors.Is(e.Cause, target)
}

// NewResponseParseError creates a new ResponseParseError.
func NewResponseParseError(functionName, message string) *ResponseParseError {
	return &ResponseParseError{FunctionName: functionName, Message: message}
}
