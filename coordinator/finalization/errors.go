package finalization

import (
	"fmt"
)

// PreconditionError represents an error scenario where the ceremony documents
// are not in a state that permits finalization, e.g. the ceremony is not
// closed yet. No store mutation happens when it is returned.
type PreconditionError struct {
	message string
}

// NewPreconditionError creates a new error instance.
func NewPreconditionError(format string, args ...interface{}) *PreconditionError {
	return &PreconditionError{
		message: fmt.Sprintf(format, args...),
	}
}

// Error returns the underlying error message.
func (e *PreconditionError) Error() string {
	return e.message
}
