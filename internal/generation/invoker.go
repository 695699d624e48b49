// Package generation sends rendered prompts to a remote language model and returns its
// raw response. It is the only layer of a flow that performs I/O.
package generation

import (
	"context"
	"errors"
	"fmt"

	"edugenius/backend/internal/prompt"
	"edugenius/backend/internal/schema"
)

// Mode says how the backend should shape its answer.
type Mode string

const (
	ModeJSON Mode = "json"
	ModeText Mode = "text"
)

// Request is one generation call.
type Request struct {
	Flow        string
	System      string
	Prompt      string
	Attachments []prompt.Attachment
	Output      *schema.Schema
}

// Mode reports ModeText for text-mode output schemas and ModeJSON otherwise.
func (r *Request) Mode() Mode {
	if r.Output != nil && r.Output.Text {
		return ModeText
	}
	return ModeJSON
}

// Response is the raw, unparsed backend answer.
type Response struct {
	Text  string
	Model string
}

// Invoker is implemented by every generation backend.
type Invoker interface {
	// Invoke performs exactly one remote call. Identical requests may produce different
	// responses.
	Invoke(ctx context.Context, req *Request) (*Response, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, req *Request) (*Response, error)

func (f InvokerFunc) Invoke(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// ErrorKind classifies an invocation failure.
type ErrorKind string

const (
	// ErrorTransport covers network errors, timeouts and cancelled contexts.
	ErrorTransport ErrorKind = "transport"
	// ErrorBackend covers error responses from the model service.
	ErrorBackend ErrorKind = "backend"
	// ErrorEmpty means the backend answered with nothing usable.
	ErrorEmpty ErrorKind = "empty"
)

// Error is returned by every Invoker in this package.
type Error struct {
	Kind       ErrorKind
	Backend    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s error (status %d): %v", e.Backend, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s error: %v", e.Backend, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the ErrorKind of err, or "" if err is not an *Error.
func KindOf(err error) ErrorKind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

func transportErr(backend string, err error) *Error {
	return &Error{Kind: ErrorTransport, Backend: backend, Err: err}
}

func backendErr(backend string, status int, err error) *Error {
	return &Error{Kind: ErrorBackend, Backend: backend, StatusCode: status, Err: err}
}

func emptyErr(backend string) *Error {
	return &Error{Kind: ErrorEmpty, Backend: backend, Err: errors.New("empty response")}
}
