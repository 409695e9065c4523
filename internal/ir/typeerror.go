package ir

import (
	"errors"
	"fmt"
)

// TypeError represents a static rejection of a graph: an elimination
// applied to the wrong type former, mismatched branch arms, an
// unreleased buffer, or a usage-order conflict. The builder reports
// structural cases at construction time; the checker is authoritative
// and reports all of them.
type TypeError struct {
	// Code identifies the rejection category.
	Code TypeErrorCode

	// Message is a human-readable description.
	Message string

	// Node is the offending node. Other names a second involved node
	// when the rejection relates two usages (order violations, the
	// mismatched arm of a branch), NoNode otherwise.
	Node  NodeID
	Other NodeID

	// Want and Got describe expected versus actual type, when known.
	Want string
	Got  string
}

// TypeErrorCode categorizes static rejections.
type TypeErrorCode string

const (
	// ErrNotConcat indicates a Concat split applied to a non-Concat.
	ErrNotConcat TypeErrorCode = "NotConcat"

	// ErrNotSum indicates a case applied to a non-Sum.
	ErrNotSum TypeErrorCode = "NotSum"

	// ErrNotStar indicates a star case or cons applied to a non-Star.
	ErrNotStar TypeErrorCode = "NotStar"

	// ErrBranchMismatch indicates branch arms with unequal exit types.
	ErrBranchMismatch TypeErrorCode = "BranchMismatch"

	// ErrUnmatchedBuffer indicates a buffer never released, released
	// more than once, or a release of a non-buffer.
	ErrUnmatchedBuffer TypeErrorCode = "UnmatchedBuffer"

	// ErrOrderViolation indicates usages whose required order
	// contradicts the declared input order, or a stream consumed more
	// or fewer times than exactly once.
	ErrOrderViolation TypeErrorCode = "OrderViolation"
)

// Error implements the error interface.
func (e *TypeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Want != "" || e.Got != "" {
		msg += fmt.Sprintf(" (want %s, got %s)", e.Want, e.Got)
	}
	if e.Node != NoNode {
		msg += fmt.Sprintf(" (node %d", e.Node)
		if e.Other != NoNode {
			msg += fmt.Sprintf(", node %d", e.Other)
		}
		msg += ")"
	}
	return msg
}

// NewTypeError creates a TypeError with no node context.
func NewTypeError(code TypeErrorCode, message string) *TypeError {
	return &TypeError{Code: code, Message: message, Node: NoNode, Other: NoNode}
}

// IsOrderViolation reports whether err is an OrderViolation type error.
// Uses errors.As to handle wrapped errors.
func IsOrderViolation(err error) bool { return hasTypeCode(err, ErrOrderViolation) }

// IsBranchMismatch reports whether err is a BranchMismatch type error.
func IsBranchMismatch(err error) bool { return hasTypeCode(err, ErrBranchMismatch) }

// IsUnmatchedBuffer reports whether err is an UnmatchedBuffer type error.
func IsUnmatchedBuffer(err error) bool { return hasTypeCode(err, ErrUnmatchedBuffer) }

// TypeCode extracts the code of a TypeError, or "" when err is not one.
func TypeCode(err error) TypeErrorCode {
	var te *TypeError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

func hasTypeCode(err error, code TypeErrorCode) bool {
	return TypeCode(err) == code
}
