// Package errors defines the closed API error taxonomy for the exporter.
// Every failing code path in a request handler produces exactly one
// APIError; the server's request wrapper converts it into a JSON error
// response with the matching HTTP status code.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an APIError into one of the supported client-visible
// failure categories.
type Kind int

const (
	// KindBadRequest indicates a malformed or invalid request.
	KindBadRequest Kind = iota
	// KindForbidden indicates the caller is not allowed to perform the operation.
	KindForbidden
	// KindUnauthorized indicates missing or invalid credentials.
	KindUnauthorized
	// KindNotFound indicates the requested resource does not exist.
	KindNotFound
	// KindConflict indicates the request conflicts with current state.
	KindConflict
	// KindPreconditionFailed indicates a failed request precondition.
	KindPreconditionFailed
	// KindInternal indicates a server-side failure.
	KindInternal
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPreconditionFailed:
		return "precondition_failed"
	case KindInternal:
		return "internal_server_error"
	default:
		return "unknown"
	}
}

// StatusCode returns the HTTP status code for the kind.
func (k Kind) StatusCode() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// APIError is the single error type crossing the handler boundary.
type APIError struct {
	Kind Kind
	Err  error
}

// Error implements the error interface. InternalServerError is transparent
// and reports only the underlying cause; the other kinds prefix it.
func (e *APIError) Error() string {
	switch e.Kind {
	case KindBadRequest:
		return fmt.Sprintf("Bad request: %v", e.Err)
	case KindForbidden:
		return fmt.Sprintf("Forbidden: %v", e.Err)
	case KindUnauthorized:
		return fmt.Sprintf("Unauthorized: %v", e.Err)
	case KindNotFound:
		return fmt.Sprintf("NotFound: %v", e.Err)
	case KindConflict:
		return fmt.Sprintf("Conflict: %v", e.Err)
	case KindPreconditionFailed:
		return fmt.Sprintf("Precondition failed: %v", e.Err)
	default:
		return e.Err.Error()
	}
}

// Unwrap returns the underlying cause
func (e *APIError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code mapped to the error's kind.
func (e *APIError) StatusCode() int {
	return e.Kind.StatusCode()
}

// BadRequest wraps err as a 400 error. The response body carries the
// verbose cause so the caller can see what was wrong with the request.
func BadRequest(err error) *APIError {
	return &APIError{Kind: KindBadRequest, Err: err}
}

// Forbidden builds a 403 error from a message.
func Forbidden(msg string) *APIError {
	return &APIError{Kind: KindForbidden, Err: stderrors.New(msg)}
}

// Unauthorized builds a 401 error from a message.
func Unauthorized(msg string) *APIError {
	return &APIError{Kind: KindUnauthorized, Err: stderrors.New(msg)}
}

// NotFound wraps err as a 404 error.
func NotFound(err error) *APIError {
	return &APIError{Kind: KindNotFound, Err: err}
}

// Conflict builds a 409 error from a message.
func Conflict(msg string) *APIError {
	return &APIError{Kind: KindConflict, Err: stderrors.New(msg)}
}

// PreconditionFailed builds a 412 error from a message.
func PreconditionFailed(msg string) *APIError {
	return &APIError{Kind: KindPreconditionFailed, Err: stderrors.New(msg)}
}

// Internal wraps err as a 500 error.
func Internal(err error) *APIError {
	return &APIError{Kind: KindInternal, Err: err}
}

// Internalf wraps a formatted cause as a 500 error.
func Internalf(format string, args ...any) *APIError {
	return &APIError{Kind: KindInternal, Err: fmt.Errorf(format, args...)}
}

// From coerces an arbitrary error into an APIError. Errors that already
// carry a kind pass through unchanged; everything else becomes an
// InternalServerError so no failure leaves the handler untyped.
func From(err error) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(err)
}

// HTTPErrorBody is the JSON error response shape shared by all error kinds.
type HTTPErrorBody struct {
	Msg string `json:"msg"`
}

// body returns the client-visible message for the error. BadRequest uses
// the verbose formatting so the cause chain is visible to the caller.
func (e *APIError) body() HTTPErrorBody {
	if e.Kind == KindBadRequest {
		return HTTPErrorBody{Msg: fmt.Sprintf("Bad request: %+v", e.Err)}
	}
	return HTTPErrorBody{Msg: e.Error()}
}

// WriteResponse writes the error as a JSON response with the mapped
// status code. It must only be called before any response bytes have
// been sent.
func (e *APIError) WriteResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode())
	// the body has a single string field so encoding cannot fail
	_ = json.NewEncoder(w).Encode(e.body())
}
