package builder

import (
	"errors"
	"fmt"
)

// GraphError represents a malformed construction request: an invalid or
// foreign stream handle, a nil branch builder, a duplicate input name,
// or use of a finished builder. Structural type mistakes (splitting a
// non-Concat and so on) are reported as *ir.TypeError instead.
type GraphError struct {
	// Op is the builder operation that failed.
	Op string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	return fmt.Sprintf("graph %s: %s", e.Op, e.Message)
}

// IsGraphError reports whether err is a GraphError. Uses errors.As to
// handle wrapped errors.
func IsGraphError(err error) bool {
	var ge *GraphError
	return errors.As(err, &ge)
}
