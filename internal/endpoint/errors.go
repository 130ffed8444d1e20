package endpoint

import "fmt"

// PredictionError reports a model or server inference failure, or a
// structured-response schema-parse failure at the terminal frame.
type PredictionError struct{ Detail string }

func (e *PredictionError) Error() string { return "prediction error: " + e.Detail }

// PredictionCancelled reports that cancel() was called before the
// terminal frame arrived; the caller sees this instead of a result.
type PredictionCancelled struct{}

func (e *PredictionCancelled) Error() string { return "prediction cancelled" }

// InvalidToolRequest reports a tool name unknown to the caller or
// arguments that violate the tool's declared schema.
type InvalidToolRequest struct {
	ToolName string
	Reason   string
}

func (e *InvalidToolRequest) Error() string {
	return fmt.Sprintf("invalid tool request %q: %s", e.ToolName, e.Reason)
}

// ValueError reports a caller-supplied parameter rejected before any
// frame is sent.
type ValueError struct{ Detail string }

func (e *ValueError) Error() string { return "invalid value: " + e.Detail }

// RuntimeError reports caller misuse: starting an endpoint twice,
// waiting on an already-closed client, and similar state violations.
type RuntimeError struct{ Detail string }

func (e *RuntimeError) Error() string { return "runtime error: " + e.Detail }
