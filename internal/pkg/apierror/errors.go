// Package apierror defines the error taxonomy shared by the REST and
// streaming clients. None of these errors are fatal: the worst case for the
// caller is one visibly broken turn or a reconnect requirement.
package apierror

import "fmt"

// AuthError means the credential was rejected or missing on a call that
// requires one.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return "auth: " + e.Message
}

// RequestError is any other non-success response. Message carries the
// server-supplied error field, or the HTTP status text when the body was
// unparseable.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed (status %d): %s", e.StatusCode, e.Message)
}

// NotConnectedError is returned when a send is attempted on a streaming
// connection that is not open. Sends are never queued.
type NotConnectedError struct {
	State string
}

func (e *NotConnectedError) Error() string {
	return "websocket not connected (state: " + e.State + ")"
}

// ParseError marks a malformed inbound streaming frame. Frames that fail to
// parse are dropped; they never reach the timeline.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "malformed inbound frame: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// TransportError is a connection-level streaming failure. It closes the
// connection and surfaces as a state change, not as an error into caller code.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
