package invoke

import (
	"context"
	"encoding/json"
	"io"
)

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func(ctx context.Context, functionName string, event []byte, stdout io.Writer, stderr io.Writer) error

// Invoke implements Runner.
func (f RunnerFunc) Invoke(ctx context.Context, functionName string, event []byte, stdout io.Writer, stderr io.Writer) error {
	return f(ctx, functionName, event, stdout, stderr)
}

// EchoRunner is a stand-in runner that returns the invocation event as the
// response body. It executes no function code; it exists so the event
// shapes a template produces can be inspected end to end before a real
// runner is attached.
func EchoRunner() Runner {
	return RunnerFunc(func(_ context.Context, functionName string, event []byte, stdout io.Writer, stderr io.Writer) error {
		response := map[string]any{
			"statusCode": 200,
			"headers":    map[string]string{"Content-Type": "application/json"},
			"body":       string(event),
		}
		payload, err := json.Marshal(response)
		if err != nil {
			return err
		}
		_, _ = io.WriteString(stderr, "echo runner invoked: "+functionName+"\n")
		_, err = stdout.Write(payload)
		return err
	})
}
