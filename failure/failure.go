// Package failure provides the tagged error type returned by the guessing engine.
//
// Every error carries a Kind so callers can decide whether a turn can be retried
// (Storage), whether the caller sent bad input (InvalidAnswer) or whether a session
// could not be created at all (Configuration).
package failure

import (
	"errors"
	"fmt"
)

// Kind is the category of a failure.
type Kind string

const (
	// KindStorage is a query or batch-write failure. The turn is aborted and can be retried.
	KindStorage Kind = "storage"
	// KindInvalidAnswer is an answer value outside the accepted encoding.
	KindInvalidAnswer Kind = "invalid_answer"
	// KindConfiguration is a missing theme or version, or an invalid theme definition.
	KindConfiguration Kind = "configuration"
	// KindExhaustion marks "nothing left to ask or guess". The engine never returns it as an
	// error; it exists so outer layers can report it uniformly.
	KindExhaustion Kind = "exhaustion"
)

// Error is a failure with its kind, the operation that failed and structured context
// (failed query, offending values).
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Context map[string]any
	Cause   error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds a context field to the error (chainable).
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Storage wraps a storage failure. The query is kept in the context for diagnostics.
func Storage(op, query string, cause error) *Error {
	e := &Error{Kind: KindStorage, Op: op, Cause: cause}
	if query != "" {
		e.WithContext("query", query)
	}
	return e
}

// InvalidAnswer reports an answer value outside {-1, -0.5, 0, 0.5, 1}.
func InvalidAnswer(value any) *Error {
	return (&Error{
		Kind:    KindInvalidAnswer,
		Message: fmt.Sprintf("unsupported answer %v", value),
	}).WithContext("value", value)
}

// Configuration reports a missing theme/version or an invalid theme definition.
func Configuration(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// Exhaustion reports that nothing is left to ask or guess.
func Exhaustion(op string) *Error {
	return &Error{Kind: KindExhaustion, Op: op}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err's chain contains a failure of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
