package paddle2onnx

import "github.com/benedoc-inc/paddle2onnx/internal/onnxproto"

// ONNXHeader summarizes the top-level fields of a serialized ONNX model.
type ONNXHeader = onnxproto.Header

// OpsetImport is one opset imported by an ONNX model.
type OpsetImport = onnxproto.OpsetImport

// ErrNotONNX is returned by InspectONNX when data is not a serialized ONNX model.
var ErrNotONNX = onnxproto.ErrNotONNX

// InspectONNX reads the header of a serialized ONNX model without loading
// the native library.
func InspectONNX(data []byte) (*ONNXHeader, error) {
	return onnxproto.ReadHeader(data)
}
