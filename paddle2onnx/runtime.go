package paddle2onnx

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/benedoc-inc/paddle2onnx/internal/cstrings"
	"github.com/benedoc-inc/paddle2onnx/paddle2onnx/internal/api"
	v1 "github.com/benedoc-inc/paddle2onnx/paddle2onnx/internal/api/v1"
)

// LibraryPathEnv names the environment variable consulted when NewRuntime is
// called with an empty library path.
const LibraryPathEnv = "PADDLE2ONNX_LIB_PATH"

// Runtime holds the loaded Paddle2ONNX shared library and its entry points.
//
// A Runtime is safe for concurrent use. Calls hold a read lock for their
// whole duration, so Close waits for in-flight calls before unloading the
// library.
type Runtime struct {
	mu            sync.RWMutex
	libraryHandle uintptr
	funcs         api.Funcs
}

// NewRuntime loads the Paddle2ONNX shared library at libraryPath.
// If libraryPath is empty, the PADDLE2ONNX_LIB_PATH environment variable is
// used, and then the platform default library name.
func NewRuntime(libraryPath string) (*Runtime, error) {
	path := resolveLibraryPath(libraryPath)

	handle, err := openLibrary(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load library %s: %w", path, err)
	}

	funcs, err := v1.InitializeFuncs(handle)
	if err != nil {
		_ = closeLibrary(handle)
		return nil, fmt.Errorf("failed to initialize API functions: %w", err)
	}

	return &Runtime{
		libraryHandle: handle,
		funcs:         funcs,
	}, nil
}

func newRuntimeWithFuncs(funcs api.Funcs) *Runtime {
	return &Runtime{funcs: funcs}
}

func resolveLibraryPath(libraryPath string) string {
	if libraryPath != "" {
		return libraryPath
	}
	if env := os.Getenv(LibraryPathEnv); env != "" {
		return env
	}
	return defaultLibraryName()
}

// call runs fn with the library's entry points while holding the read lock.
func (r *Runtime) call(fn func(api.Funcs) error) error {
	if r == nil {
		return ErrRuntimeClosed
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.funcs == nil {
		return ErrRuntimeClosed
	}
	return fn(r.funcs)
}

// Version returns the native library version, or an empty string if the
// library does not report one.
func (r *Runtime) Version() string {
	var version string
	_ = r.call(func(funcs api.Funcs) error {
		version = cstrings.CStringToString(funcs.Version())
		return nil
	})
	return version
}

// ForwardNativeLogs routes log lines emitted by the native library to logger.
// It reports false if the library does not support a log callback.
//
// The callback is process-wide: the most recently installed logger receives
// the lines of every Runtime.
func (r *Runtime) ForwardNativeLogs(logger *slog.Logger) bool {
	if logger == nil {
		logger = slog.Default()
	}
	var ok bool
	_ = r.call(func(funcs api.Funcs) error {
		nativeLogger.Store(logger)
		ok = funcs.SetLogCallback(nativeLogCallback())
		return nil
	})
	return ok
}

// Close unloads the library. It is safe to call Close multiple times.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.funcs = nil
	if r.libraryHandle == 0 {
		return nil
	}
	handle := r.libraryHandle
	r.libraryHandle = 0
	if err := closeLibrary(handle); err != nil {
		return fmt.Errorf("failed to unload library: %w", err)
	}
	return nil
}
