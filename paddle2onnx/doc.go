// Package paddle2onnx provides Go bindings for the Paddle2ONNX C shim using purego.
//
// The package converts PaddlePaddle inference models to ONNX and reads the
// input and output signatures of Paddle and ONNX models. It does not require
// cgo: the native library is loaded at runtime and every buffer handed to it
// is pinned for the duration of the call. Buffers allocated by the native
// library are copied into Go memory and released through the library's own
// allocator before a call returns.
package paddle2onnx
