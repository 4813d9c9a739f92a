// Package gatewayerr defines the gateway's error taxonomy: typed errors that
// carry an HTTP status and a details payload, so the HTTP edge can render
// them as {"error":{"code","message","details"}} without re-classifying a
// generic error at the last moment.
package gatewayerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a gateway error category. Stable across releases; used
// both in the wire response and in logs.
type Code string

const (
	CodeModelNotFound             Code = "ModelNotFound"
	CodeNoModelSpecified          Code = "NoModelSpecified"
	CodeConversationStateNotFound Code = "ConversationStateNotFound"
	CodeInvalidRequest            Code = "InvalidRequest"
	CodeInternalServerError       Code = "InternalServerError"
	CodeForwardedError            Code = "ForwardedError"
	CodeStreamError               Code = "StreamError"
	CodeResponseCreationFailed    Code = "ResponseCreationFailed"
	CodeClientError               Code = "ClientError"
	CodeServerError                Code = "ServerError"
)

// Error is the gateway's typed error. It implements error and carries enough
// shape for the HTTP edge to render a response without inspecting the
// message string.
type Error struct {
	Code    Code
	Status  int
	Message string
	Details map[string]any
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Compile-time check that *Error implements error.
var _ error = (*Error)(nil)

func newErr(code Code, status int, msg string, details map[string]any, wrapped error) *Error {
	return &Error{Code: code, Status: status, Message: msg, Details: details, Wrapped: wrapped}
}

// ModelNotFound builds the ModelNotFound gateway error for a model id that
// did not resolve in the provider registry.
func ModelNotFound(modelID string) *Error {
	return newErr(CodeModelNotFound, http.StatusNotFound, "model not found",
		map[string]any{"rejected_model_id": modelID}, nil)
}

// NoModelSpecified builds the NoModelSpecified gateway error.
func NoModelSpecified() *Error {
	return newErr(CodeNoModelSpecified, http.StatusBadRequest, "no model specified", map[string]any{}, nil)
}

// InvalidRequest builds the InvalidRequest gateway error with a human reason.
func InvalidRequest(reason string) *Error {
	return newErr(CodeInvalidRequest, http.StatusBadRequest, "invalid request",
		map[string]any{"reason": reason}, nil)
}

// InvalidRequestf is InvalidRequest with fmt.Sprintf-style formatting.
func InvalidRequestf(format string, args ...any) *Error {
	return InvalidRequest(fmt.Sprintf(format, args...))
}

// ConversationStateNotFound builds the 409 error for an unknown previous_response_id.
func ConversationStateNotFound(previousResponseID string) *Error {
	return newErr(CodeConversationStateNotFound, http.StatusConflict, "conversation state not found",
		map[string]any{"previous_response_id": previousResponseID}, nil)
}

// Forwarded wraps an upstream 4xx/5xx encountered outside of pure passthrough
// (e.g. during routing before the response body can be piped verbatim).
func Forwarded(status int, reason string) *Error {
	return newErr(CodeForwardedError, status, "upstream error",
		map[string]any{"reason": reason}, nil)
}

// StreamErr builds the StreamError gateway error for SSE framing problems.
func StreamErr(reason string) *Error {
	return newErr(CodeStreamError, http.StatusBadRequest, "stream error",
		map[string]any{"reason": reason}, nil)
}

// ResponseCreationFailed builds the error surfaced when the Responses API
// buffer could not materialize a final ResponsesAPIResponse.
func ResponseCreationFailed(reason string) *Error {
	return newErr(CodeResponseCreationFailed, http.StatusInternalServerError, "response creation failed",
		map[string]any{"reason": reason}, nil)
}

// Internal wraps an unclassified error as InternalServerError, preserving
// the chain via Unwrap.
func Internal(err error) *Error {
	return newErr(CodeInternalServerError, http.StatusInternalServerError, "internal server error", nil, err)
}

// ClientErr builds the agent-pipeline ClientError (filter/terminal agent 4xx).
func ClientErr(agent string, status int, body string) *Error {
	return newErr(CodeClientError, status, "agent returned client error",
		map[string]any{"agent": agent, "status": status, "agent_response": body}, nil)
}

// ServerErr builds the agent-pipeline ServerError (filter/terminal agent 5xx).
func ServerErr(agent string, status int, wrapped error) *Error {
	return newErr(CodeServerError, http.StatusInternalServerError, "agent returned server error",
		map[string]any{"agent": agent, "status": status}, wrapped)
}

// As is a convenience wrapper around errors.As for *Error.
func As(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// Unsupported reports a transform that has no representation in the target
// dialect. Callers surface this as HTTP 400 InvalidRequest.
type Unsupported struct {
	From    string
	To      string
	Feature string
}

func (u *Unsupported) Error() string {
	return fmt.Sprintf("unsupported: %s -> %s has no representation for %q", u.From, u.To, u.Feature)
}

// NewUnsupported constructs an Unsupported transform error.
func NewUnsupported(from, to, feature string) error {
	return &Unsupported{From: from, To: to, Feature: feature}
}
