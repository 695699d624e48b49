package flow

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a flow failure.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindRender              Kind = "render"
	KindInvoker             Kind = "invoker"
	KindCoercion            Kind = "coercion"
	KindContentPrecondition Kind = "content_precondition"
)

// Sentinels for errors.Is matching against *Error.
var (
	ErrValidation          = errors.New("input validation failed")
	ErrRender              = errors.New("prompt rendering failed")
	ErrInvoker             = errors.New("generation backend failed")
	ErrCoercion            = errors.New("backend response did not match the output schema")
	ErrContentPrecondition = errors.New("intermediate result had no usable content")
)

var sentinels = map[Kind]error{
	KindValidation:          ErrValidation,
	KindRender:              ErrRender,
	KindInvoker:             ErrInvoker,
	KindCoercion:            ErrCoercion,
	KindContentPrecondition: ErrContentPrecondition,
}

// Error is the single error type returned by flow execution. Step and StepName are set
// when the failure happened inside a composed flow.
type Error struct {
	Flow     string
	Kind     Kind
	Step     int
	StepName string
	// Path is the offending field for validation, coercion and precondition failures.
	Path string
	Err  error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Flow)
	if e.StepName != "" {
		fmt.Fprintf(&sb, " step %d (%s)", e.Step+1, e.StepName)
	}
	fmt.Fprintf(&sb, ": %s", e.Kind)
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e's Kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// KindOf returns the Kind of err, or "" when err did not come from a flow.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func newError(flow string, kind Kind, path string, err error) *Error {
	return &Error{Flow: flow, Kind: kind, Path: path, Err: err}
}
