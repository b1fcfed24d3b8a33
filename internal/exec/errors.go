package exec

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrWorkerPanicked marks a node task that panicked; the panic value is
// attached to the wrapping error.
var ErrWorkerPanicked = errors.New("worker panicked")

// ExecutionError is the atomic failure of a query: the first error observed
// in the failing stage. Queries never return partial results.
type ExecutionError struct {
	Stage int
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("stage %d: %v", e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
