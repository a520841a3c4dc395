package market

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures. Every check runs before any
// mutation, so a returned error always means the call had zero effect.
type ErrorKind int

const (
	KindAuthorization ErrorKind = iota
	KindPayment
	KindValidation
	KindStateConflict
	KindBusinessRule
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindPayment:
		return "payment"
	case KindValidation:
		return "validation"
	case KindStateConflict:
		return "state_conflict"
	case KindBusinessRule:
		return "business_rule"
	default:
		return "unknown"
	}
}

// Error is the engine's error type. Expected/Actual carry the values a
// caller needs to correct and resubmit.
type Error struct {
	Kind     ErrorKind
	Op       string
	Detail   string
	Expected string
	Actual   string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s error: %s", e.Op, e.Kind, e.Detail)
	if e.Expected != "" || e.Actual != "" {
		msg += fmt.Sprintf(" (expected %s, got %s)", e.Expected, e.Actual)
	}
	return msg
}

// KindOf extracts the kind from an engine error; ok is false for foreign
// errors (storage or ledger failures surfacing through a call).
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is an engine error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func errAuthorization(op, detail string) error {
	return &Error{Kind: KindAuthorization, Op: op, Detail: detail}
}

func errPayment(op, detail, expected, actual string) error {
	return &Error{Kind: KindPayment, Op: op, Detail: detail, Expected: expected, Actual: actual}
}

func errValidation(op, detail, expected, actual string) error {
	return &Error{Kind: KindValidation, Op: op, Detail: detail, Expected: expected, Actual: actual}
}

func errStateConflict(op, detail string) error {
	return &Error{Kind: KindStateConflict, Op: op, Detail: detail}
}

func errBusinessRule(op, detail string) error {
	return &Error{Kind: KindBusinessRule, Op: op, Detail: detail}
}
