package paddle2onnx

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned before any native call when an argument is absent or out of range.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMissingInputFile is returned before any native call when a model path does not name an existing file.
	ErrMissingInputFile = errors.New("input file does not exist")

	// ErrExportFailure is returned when the native library reports failure,
	// or reports success without producing output.
	ErrExportFailure = errors.New("paddle2onnx export failed")

	// ErrNativeAllocator is the cause of the panic raised when the native
	// allocator fails to release a block it allocated.
	ErrNativeAllocator = errors.New("native allocator failure")

	// ErrRuntimeClosed is returned when an operation is attempted on a closed runtime.
	ErrRuntimeClosed = errors.New("runtime is closed")
)

// MissingInputFileError reports a path argument that does not resolve to an
// existing regular file.
type MissingInputFileError struct {
	Path string
	Err  error
}

func (e *MissingInputFileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("input file %q does not exist: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("input file %q does not exist", e.Path)
}

func (e *MissingInputFileError) Is(target error) bool {
	return target == ErrMissingInputFile
}

func (e *MissingInputFileError) Unwrap() error {
	return e.Err
}

// ExportError reports a native operation that failed or produced no output.
type ExportError struct {
	Op string
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("paddle2onnx: %s failed", e.Op)
}

func (e *ExportError) Is(target error) bool {
	return target == ErrExportFailure
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
