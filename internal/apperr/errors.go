// Package apperr holds the error kinds shared by the chat pipeline. Each kind
// has its own propagation rule: provider and ticket errors are absorbed into
// degraded results, persistence errors are logged and dropped, validation and
// internal errors become the generic ERROR response.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrProvider    = errors.New("provider error")
	ErrTicket      = errors.New("ticket error")
	ErrPersistence = errors.New("persistence error")
	ErrInternal    = errors.New("internal error")
)

type kindError struct {
	kind error
	op   string
	err  error
}

func (e *kindError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %s", e.kind, e.op)
	}
	return fmt.Sprintf("%s: %s: %v", e.kind, e.op, e.err)
}

func (e *kindError) Unwrap() []error {
	if e.err == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.err}
}

func wrap(kind error, op string, err error) error {
	return &kindError{kind: kind, op: op, err: err}
}

func Validation(op string, err error) error  { return wrap(ErrValidation, op, err) }
func Provider(op string, err error) error    { return wrap(ErrProvider, op, err) }
func Ticket(op string, err error) error      { return wrap(ErrTicket, op, err) }
func Persistence(op string, err error) error { return wrap(ErrPersistence, op, err) }
func Internal(op string, err error) error    { return wrap(ErrInternal, op, err) }

// Kind reports the first taxonomy sentinel err matches, or ErrInternal.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrProvider, ErrTicket, ErrPersistence, ErrInternal} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}
