package verification

import (
	"fmt"
)

// PreconditionError represents an error scenario where ceremony documents are
// not in a state that permits the requested verification, e.g. the caller is
// not contributing or the participant record is inconsistent. No store
// mutation happens when it is returned.
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
