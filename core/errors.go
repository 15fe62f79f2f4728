package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// DependentItem describes one category of records standing in the way of (or affected by) an operation.
type DependentItem struct {
	Type    string `json:"type"`
	Count   int    `json:"count"`
	Details string `json:"details,omitempty"`
}

// RuleError is a business rule refusing an operation (eg. deleting a plan holding paid installments).
// It is not a storage failure: nothing was mutated.
type RuleError struct {
	Reason         string
	DependentItems []DependentItem
}

func NewRuleError(reason string, items ...DependentItem) error {
	return &RuleError{Reason: reason, DependentItems: items}
}

func (err RuleError) Error() string {
	return err.Reason
}

// IsRuleError reports whether the cause of err is a *RuleError.
func IsRuleError(err error) bool {
	_, ok := errors.Cause(err).(*RuleError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
