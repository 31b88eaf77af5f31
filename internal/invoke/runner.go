// Package invoke defines the boundary to the external function runner: the
// collaborator that actually executes function code. The gateway core only
// depends on this contract.
package invoke

import (
	"context"
	"io"
)

// Runner executes one function invocation. The returned JSON payload is
// written to stdout; free-form diagnostic text is written to stderr and
// forwarded unmodified. A runner reports a missing target function with an
// error matching util.ErrFunctionNotFound.
//
// Invoke blocks until the function finishes; any limiting of concurrent
// executions and enforcement of function timeouts happens inside the runner.
type Runner interface {
	Invoke(ctx context.Context, functionName string, event []byte, stdout io.Writer, stderr io.Writer) error
}
