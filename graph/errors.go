package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrTransactionComplete is returned by operations on a transaction
	// that already committed or aborted.
	ErrTransactionComplete = errors.New("graph: transaction already completed")

	// ErrMustAbort is returned by operations after a transaction has
	// failed; Abort is the only valid next call.
	ErrMustAbort = errors.New("graph: transaction failed; abort required")
)

// RollbackError reports a write-write conflict, a write on a read-only
// transaction, or a lock that could not be acquired. The transaction must
// be aborted.
type RollbackError struct {
	Reason string
}

func (err *RollbackError) Error() string {
	return fmt.Sprintf("graph: rollback: %s", err.Reason)
}

func rollbackf(format string, args ...interface{}) error {
	return &RollbackError{Reason: fmt.Sprintf(format, args...)}
}

func IsRollback(err error) bool {
	var re *RollbackError
	return errors.As(err, &re)
}

// InvalidVertexError reports a vertex id beyond the allocated range.
type InvalidVertexError struct {
	Vertex VertexID
}

func (err *InvalidVertexError) Error() string {
	return fmt.Sprintf("graph: invalid vertex: %d", err.Vertex)
}

func IsInvalidVertex(err error) bool {
	var ive *InvalidVertexError
	return errors.As(err, &ive)
}
