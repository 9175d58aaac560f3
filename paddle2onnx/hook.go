package paddle2onnx

import "time"

// Operation names a Converter operation reported to hooks.
type Operation string

// Converter operations.
const (
	OperationCanConvert          Operation = "can_convert"
	OperationConvert             Operation = "convert"
	OperationRemoveNMS           Operation = "remove_detection_post_processing"
	OperationDescribeModel       Operation = "describe_model"
	OperationDescribePaddleModel Operation = "describe_paddle_model"
)

// Hook provides callbacks around every Converter operation for observability.
// Implement this interface to add metrics, logging, or tracing.
//
// Example:
//
//	type metricsHook struct {
//	    histogram prometheus.Histogram
//	}
//
//	func (h *metricsHook) BeforeCall(info *CallInfo) {}
//	func (h *metricsHook) AfterCall(info *CallInfo) {
//	    h.histogram.Observe(info.Duration.Seconds())
//	}
type Hook interface {
	// BeforeCall is called before the operation starts.
	BeforeCall(info *CallInfo)

	// AfterCall is called after the operation completes (or fails).
	// InputBytes, OutputBytes, Duration, and Error are populated.
	AfterCall(info *CallInfo)
}

// CallInfo contains information about one Converter operation.
// Fields are progressively populated: ID, Operation, and Paths are set before
// the call, the remaining fields after it.
type CallInfo struct {
	ID        string
	Operation Operation
	// Paths lists the files read by the path-based operations.
	Paths       []string
	InputBytes  int
	OutputBytes int
	Duration    time.Duration
	Error       error
}

type hookFunc struct {
	fn func(*CallInfo)
}

func (h *hookFunc) BeforeCall(_ *CallInfo)   {}
func (h *hookFunc) AfterCall(info *CallInfo) { h.fn(info) }

// AfterCallHook creates a Hook that calls fn after every operation.
// This is a convenience for the common case where you only need AfterCall.
func AfterCallHook(fn func(*CallInfo)) Hook {
	return &hookFunc{fn: fn}
}
