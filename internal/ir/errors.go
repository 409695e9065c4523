package ir

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while evaluating a typed
// graph against concrete token sequences. It indicates a contract
// violation by the caller supplying events, not a defect in the graph:
// a checked graph fed well-formed inputs never produces one.
//
// Both evaluation backends report the same codes for the same inputs.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Node identifies the graph node that was consuming when the error
	// was detected, when known. NoNode otherwise.
	Node NodeID

	// Input is the index of the declared input whose token sequence was
	// at fault, or -1 when the fault is not tied to one input.
	Input int

	// Want and Got describe expected versus actual shape, when known.
	Want string
	Got  string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeShortInput indicates a token sequence was exhausted before
	// the consuming type's arity was met.
	ErrCodeShortInput RuntimeErrorCode = "SHORT_INPUT"

	// ErrCodeTrailingInput indicates tokens remained after a top-level
	// stream was fully consumed.
	ErrCodeTrailingInput RuntimeErrorCode = "TRAILING_INPUT"

	// ErrCodeBadToken indicates a token that does not continue the
	// declared type of the stream being read.
	ErrCodeBadToken RuntimeErrorCode = "BAD_TOKEN"

	// ErrCodeRaggedZip indicates a zip over two stars of unequal length.
	ErrCodeRaggedZip RuntimeErrorCode = "RAGGED_ZIP"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Want != "" || e.Got != "" {
		msg += fmt.Sprintf(" (want %s, got %s)", e.Want, e.Got)
	}
	if e.Input >= 0 {
		msg += fmt.Sprintf(" (input %d)", e.Input)
	}
	if e.Node != NoNode {
		msg += fmt.Sprintf(" (node %d)", e.Node)
	}
	return msg
}

// NewRuntimeError creates a RuntimeError with no node or input context.
func NewRuntimeError(code RuntimeErrorCode, message string) *RuntimeError {
	return &RuntimeError{Code: code, Message: message, Node: NoNode, Input: -1}
}

// IsShortInput reports whether err is a SHORT_INPUT runtime error.
// Uses errors.As to handle wrapped errors.
func IsShortInput(err error) bool { return hasRuntimeCode(err, ErrCodeShortInput) }

// IsTrailingInput reports whether err is a TRAILING_INPUT runtime error.
func IsTrailingInput(err error) bool { return hasRuntimeCode(err, ErrCodeTrailingInput) }

// IsBadToken reports whether err is a BAD_TOKEN runtime error.
func IsBadToken(err error) bool { return hasRuntimeCode(err, ErrCodeBadToken) }

// IsRaggedZip reports whether err is a RAGGED_ZIP runtime error.
func IsRaggedZip(err error) bool { return hasRuntimeCode(err, ErrCodeRaggedZip) }

func hasRuntimeCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}
