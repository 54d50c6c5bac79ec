// Package errors defines the structured error type used across the metrics
// gate. A GateError carries the canonical outcome it must terminate with, so
// every failure path inside the validator and the authorization engine is
// converted into a ready-to-return response and no raw fault escapes the core.
package errors

import (
	"errors"
	"fmt"

	"github.com/benzaiten/metrics-gate/pkg/response"
)

// GateError is an error bound to a canonical outcome. Detail, when set,
// replaces the outcome's canonical body in the rendered response; the status
// code always comes from the outcome table.
type GateError struct {
	Outcome response.Outcome
	Detail  string
	cause   error
}

// New creates a GateError for an outcome with optional detail.
func New(outcome response.Outcome, detail string) *GateError {
	return &GateError{Outcome: outcome, Detail: detail}
}

// Newf creates a GateError with a formatted detail.
func Newf(outcome response.Outcome, format string, args ...interface{}) *GateError {
	return &GateError{Outcome: outcome, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new GateError.
func Wrap(err error, outcome response.Outcome, detail string) *GateError {
	return &GateError{Outcome: outcome, Detail: detail, cause: err}
}

func (e *GateError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Outcome.Body
}

func (e *GateError) Unwrap() error {
	return e.cause
}

// Respond renders the canonical envelope for this error.
func (e *GateError) Respond() response.Response {
	if e.Detail != "" {
		return e.Outcome.RespondWith(e.Detail)
	}
	return e.Outcome.Respond()
}

// AsGateError extracts a GateError from an error chain.
func AsGateError(err error) (*GateError, bool) {
	var ge *GateError
	ok := errors.As(err, &ge)
	return ge, ok
}
