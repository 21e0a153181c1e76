package ir

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes forecasting errors.
type ErrorCode string

const (
	// CodeBuildCycle indicates an account-year was revisited while still being built.
	CodeBuildCycle ErrorCode = "BUILD_CYCLE"

	// CodeMissingRule indicates a forecast-year account has no rule and is not cash.
	CodeMissingRule ErrorCode = "MISSING_RULE"

	// CodeUnknownReference indicates a rule names an account nobody knows.
	CodeUnknownReference ErrorCode = "UNKNOWN_REFERENCE"

	// CodeInvalidParameter indicates a non-finite numeric rule parameter.
	CodeInvalidParameter ErrorCode = "INVALID_PARAMETER"

	// CodeRequiredField indicates a rule is missing a field it cannot work without.
	CodeRequiredField ErrorCode = "REQUIRED_FIELD"

	// CodeInsufficientActuals indicates a prior-year value is needed but was never imported.
	CodeInsufficientActuals ErrorCode = "INSUFFICIENT_ACTUALS"

	// CodeCashAccount indicates the cash account option is missing or wrong.
	CodeCashAccount ErrorCode = "CASH_ACCOUNT"

	// CodeBalanceInstruction indicates a malformed balance & change instruction.
	CodeBalanceInstruction ErrorCode = "BALANCE_INSTRUCTION"

	// CodeEvaluationConsistency indicates the built graph broke an arena invariant.
	CodeEvaluationConsistency ErrorCode = "EVALUATION_CONSISTENCY"
)

// Sentinels for errors.Is. An *Error matches the sentinel with the same code.
var (
	ErrBuildCycle            = &Error{Code: CodeBuildCycle}
	ErrMissingRule           = &Error{Code: CodeMissingRule}
	ErrUnknownReference      = &Error{Code: CodeUnknownReference}
	ErrInvalidParameter      = &Error{Code: CodeInvalidParameter}
	ErrRequiredField         = &Error{Code: CodeRequiredField}
	ErrInsufficientActuals   = &Error{Code: CodeInsufficientActuals}
	ErrCashAccount           = &Error{Code: CodeCashAccount}
	ErrBalanceInstruction    = &Error{Code: CodeBalanceInstruction}
	ErrEvaluationConsistency = &Error{Code: CodeEvaluationConsistency}
)

// Error is a forecasting failure. Every kind is fatal to the compute call
// that raised it.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Account names the affected account, if any.
	Account string

	// Year is the affected fiscal year, or 0.
	Year int

	// Details contains additional context.
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Account != "" && e.Year != 0:
		return fmt.Sprintf("%s: %s (account=%s, year=%d)", e.Code, e.Message, e.Account, e.Year)
	case e.Account != "":
		return fmt.Sprintf("%s: %s (account=%s)", e.Code, e.Message, e.Account)
	case e.Year != 0:
		return fmt.Sprintf("%s: %s (year=%d)", e.Code, e.Message, e.Year)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsBuildCycle reports whether err is a build cycle error.
// Handles wrapped and joined errors.
func IsBuildCycle(err error) bool {
	return errors.Is(err, ErrBuildCycle)
}

// IsValidation reports whether err came from the pre-flight validation layer.
func IsValidation(err error) bool {
	switch CodeOf(err) {
	case CodeUnknownReference, CodeInvalidParameter, CodeRequiredField,
		CodeInsufficientActuals, CodeBalanceInstruction:
		return true
	}
	return false
}

// NewBuildCycleError creates an Error for an account-year revisited mid-build.
func NewBuildCycleError(account string, year int) *Error {
	return &Error{
		Code:    CodeBuildCycle,
		Message: "cycle detected while building",
		Account: account,
		Year:    year,
	}
}

// NewMissingRuleError creates an Error for a forecast account without a rule.
func NewMissingRuleError(account string, year int) *Error {
	return &Error{
		Code:    CodeMissingRule,
		Message: "no rule for account",
		Account: account,
		Year:    year,
	}
}

// NewUnknownReferenceError creates an Error for a reference target not found.
func NewUnknownReferenceError(owner, target string) *Error {
	return &Error{
		Code:    CodeUnknownReference,
		Message: fmt.Sprintf("reference target not found: %s", target),
		Account: owner,
		Details: map[string]string{"target": target},
	}
}

// NewInvalidParameterError creates an Error for a non-finite parameter.
func NewInvalidParameterError(owner, field string, value float64) *Error {
	return &Error{
		Code:    CodeInvalidParameter,
		Message: fmt.Sprintf("invalid numeric parameter %s: %v", field, value),
		Account: owner,
		Details: map[string]string{"field": field},
	}
}

// NewRequiredFieldError creates an Error for a rule missing a required field.
func NewRequiredFieldError(owner, field string) *Error {
	return &Error{
		Code:    CodeRequiredField,
		Message: fmt.Sprintf("required field missing: %s", field),
		Account: owner,
		Details: map[string]string{"field": field},
	}
}

// NewInsufficientActualsError creates an Error for a prior-year read that has
// no imported value behind it.
func NewInsufficientActualsError(account string, year int, msg string) *Error {
	return &Error{
		Code:    CodeInsufficientActuals,
		Message: msg,
		Account: account,
		Year:    year,
	}
}

// NewCashAccountError creates an Error for a bad cash account option.
func NewCashAccountError(got string) *Error {
	msg := "cash account is required"
	if got != "" {
		msg = fmt.Sprintf("cash account must be %q, got %q", CashAccount, got)
	}
	return &Error{Code: CodeCashAccount, Message: msg, Account: got}
}

// NewBalanceInstructionError creates an Error for the index-th instruction.
func NewBalanceInstructionError(index int, msg string) *Error {
	return &Error{
		Code:    CodeBalanceInstruction,
		Message: fmt.Sprintf("instruction[%d]: %s", index, msg),
		Details: map[string]string{"index": fmt.Sprintf("%d", index)},
	}
}

// NewEvaluationConsistencyError creates an Error for a broken graph invariant.
func NewEvaluationConsistencyError(msg string) *Error {
	return &Error{Code: CodeEvaluationConsistency, Message: msg}
}
