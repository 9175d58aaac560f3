package paddle2onnx

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"
	"unsafe"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/benedoc-inc/paddle2onnx/internal/onnxproto"
	"github.com/benedoc-inc/paddle2onnx/paddle2onnx/internal/api"
)

// Converter exposes conversion and model description on top of a Runtime.
//
// A Converter is safe for concurrent use. Each call pins its own buffers and
// shares no mutable state with other calls; the native library is assumed to
// be reentrant.
//
// Example:
//
//	conv, err := paddle2onnx.LoadConverter(nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conv.Close()
//
//	onnxModel, err := conv.ConvertFiles("inference.pdmodel", "inference.pdiparams", nil)
type Converter struct {
	runtime     *Runtime
	ownsRuntime bool
	fs          afero.Fs
	logger      *slog.Logger
	hooks       []Hook
}

// ConverterConfig configures a Converter.
type ConverterConfig struct {
	// LibraryPath overrides the Paddle2ONNX shared library path used by
	// LoadConverter. If empty, NewRuntime's lookup rules apply.
	LibraryPath string

	// Fs is the filesystem the path-based operations read from.
	// If nil, the OS filesystem is used.
	Fs afero.Fs

	// Logger receives debug logs. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Hooks observe every operation.
	Hooks []Hook

	// ForwardNativeLogs routes native library log lines to Logger.
	ForwardNativeLogs bool
}

func (c *ConverterConfig) libraryPath() string {
	if c != nil {
		return c.LibraryPath
	}
	return ""
}

func (c *ConverterConfig) fs() afero.Fs {
	if c != nil && c.Fs != nil {
		return c.Fs
	}
	return afero.NewOsFs()
}

func (c *ConverterConfig) logger() *slog.Logger {
	if c != nil && c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *ConverterConfig) hooks() []Hook {
	if c != nil {
		return c.Hooks
	}
	return nil
}

func (c *ConverterConfig) forwardNativeLogs() bool {
	return c != nil && c.ForwardNativeLogs
}

// NewConverter creates a Converter using an existing Runtime. Closing the
// Converter does not close the Runtime.
func NewConverter(runtime *Runtime, config *ConverterConfig) *Converter {
	conv := &Converter{
		runtime: runtime,
		fs:      config.fs(),
		logger:  config.logger(),
		hooks:   config.hooks(),
	}
	if config.forwardNativeLogs() && !runtime.ForwardNativeLogs(conv.logger) {
		conv.logger.Warn("native library does not support log forwarding")
	}
	return conv
}

// LoadConverter loads the shared library and returns a Converter that owns it.
func LoadConverter(config *ConverterConfig) (*Converter, error) {
	rt, err := NewRuntime(config.libraryPath())
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}
	conv := NewConverter(rt, config)
	conv.ownsRuntime = true
	return conv, nil
}

// Runtime returns the underlying Runtime.
func (c *Converter) Runtime() *Runtime {
	return c.runtime
}

// Version returns the native library version, or an empty string if it is
// unknown or the runtime is closed.
func (c *Converter) Version() string {
	return c.runtime.Version()
}

// Close releases the runtime if the Converter owns it.
// It is safe to call Close multiple times.
func (c *Converter) Close() error {
	if c.ownsRuntime && c.runtime != nil {
		err := c.runtime.Close()
		c.runtime = nil
		return err
	}
	return nil
}

// CanConvert reports whether the Paddle model and parameters can be exported
// with opts. It never produces output. A native refusal is reported as false
// with a nil error; invalid arguments are reported as errors.
func (c *Converter) CanConvert(model, params []byte, opts *ConversionOptions) (bool, error) {
	var ok bool
	err := c.observe(OperationCanConvert, nil, func(info *CallInfo) error {
		info.InputBytes = len(model) + len(params)
		var err error
		ok, err = c.canConvert(model, params, opts)
		return err
	})
	return ok, err
}

// CanConvertFiles is CanConvert for a model and parameter file.
func (c *Converter) CanConvertFiles(modelPath, paramsPath string, opts *ConversionOptions) (bool, error) {
	var ok bool
	err := c.observe(OperationCanConvert, []string{modelPath, paramsPath}, func(info *CallInfo) error {
		bufs, err := c.readInputFiles(modelPath, paramsPath)
		if err != nil {
			return err
		}
		info.InputBytes = len(bufs[0]) + len(bufs[1])
		ok, err = c.canConvert(bufs[0], bufs[1], opts)
		return err
	})
	return ok, err
}

// Convert exports the Paddle model and parameters to a serialized ONNX model.
// Native failure, and native success without output, return an error
// matching ErrExportFailure.
func (c *Converter) Convert(model, params []byte, opts *ConversionOptions) ([]byte, error) {
	var out []byte
	err := c.observe(OperationConvert, nil, func(info *CallInfo) error {
		info.InputBytes = len(model) + len(params)
		var err error
		out, err = c.convert(model, params, opts)
		info.OutputBytes = len(out)
		return err
	})
	return out, err
}

// ConvertFiles is Convert for a model and parameter file.
func (c *Converter) ConvertFiles(modelPath, paramsPath string, opts *ConversionOptions) ([]byte, error) {
	var out []byte
	err := c.observe(OperationConvert, []string{modelPath, paramsPath}, func(info *CallInfo) error {
		bufs, err := c.readInputFiles(modelPath, paramsPath)
		if err != nil {
			return err
		}
		info.InputBytes = len(bufs[0]) + len(bufs[1])
		out, err = c.convert(bufs[0], bufs[1], opts)
		info.OutputBytes = len(out)
		return err
	})
	return out, err
}

// RemoveDetectionPostProcessing removes the MultiClassNMS post-processing
// subgraph from a serialized ONNX model.
func (c *Converter) RemoveDetectionPostProcessing(onnxModel []byte) ([]byte, error) {
	var out []byte
	err := c.observe(OperationRemoveNMS, nil, func(info *CallInfo) error {
		info.InputBytes = len(onnxModel)
		var err error
		out, err = c.removeNMS(onnxModel)
		info.OutputBytes = len(out)
		return err
	})
	return out, err
}

// RemoveDetectionPostProcessingFile is RemoveDetectionPostProcessing for an ONNX file.
func (c *Converter) RemoveDetectionPostProcessingFile(path string) ([]byte, error) {
	var out []byte
	err := c.observe(OperationRemoveNMS, []string{path}, func(info *CallInfo) error {
		bufs, err := c.readInputFiles(path)
		if err != nil {
			return err
		}
		info.InputBytes = len(bufs[0])
		out, err = c.removeNMS(bufs[0])
		info.OutputBytes = len(out)
		return err
	})
	return out, err
}

func (c *Converter) canConvert(model, params []byte, opts *ConversionOptions) (bool, error) {
	if err := checkConversionInputs(model, params, opts); err != nil {
		return false, err
	}

	var ok bool
	err := c.runtime.call(func(funcs api.Funcs) error {
		return withPinScope(func(s *pinScope) error {
			args, err := s.exportArgs(funcs, model, params, opts)
			if err != nil {
				return err
			}
			ok = funcs.IsExportable(args)
			return nil
		})
	})
	return ok, err
}

func (c *Converter) convert(model, params []byte, opts *ConversionOptions) ([]byte, error) {
	if err := checkConversionInputs(model, params, opts); err != nil {
		return nil, err
	}

	var out []byte
	err := c.runtime.call(func(funcs api.Funcs) error {
		return withPinScope(func(s *pinScope) error {
			args, err := s.exportArgs(funcs, model, params, opts)
			if err != nil {
				return err
			}

			var outPtr unsafe.Pointer
			var outSize int32
			if !funcs.Export(args, &outPtr, &outSize) {
				return &ExportError{Op: "convert"}
			}
			out, err = readOutputBuffer(funcs, "convert", outPtr, outSize)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	if h, err := onnxproto.ReadHeader(out); err == nil {
		c.logger.Debug("converted model",
			slog.Int64("ir_version", h.IRVersion),
			slog.Int64("opset", h.Opset()),
			slog.String("producer", h.ProducerName),
		)
	}
	return out, nil
}

func (c *Converter) removeNMS(onnxModel []byte) ([]byte, error) {
	size, err := bufferSize("onnx model", onnxModel)
	if err != nil {
		return nil, err
	}

	var out []byte
	err = c.runtime.call(func(funcs api.Funcs) error {
		return withPinScope(func(s *pinScope) error {
			var outPtr unsafe.Pointer
			var outSize int32
			if !funcs.RemoveMultiClassNMS(s.bytes(onnxModel), size, &outPtr, &outSize) {
				return &ExportError{Op: "remove detection post-processing"}
			}
			var err error
			out, err = readOutputBuffer(funcs, "remove detection post-processing", outPtr, outSize)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func checkConversionInputs(model, params []byte, opts *ConversionOptions) error {
	if _, err := bufferSize("model", model); err != nil {
		return err
	}
	if _, err := bufferSize("params", params); err != nil {
		return err
	}
	return opts.validate()
}

// readInputFiles checks that every path names an existing regular file
// before reading any of them.
func (c *Converter) readInputFiles(paths ...string) ([][]byte, error) {
	for _, path := range paths {
		info, err := c.fs.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, &MissingInputFileError{Path: path}
			}
			return nil, &MissingInputFileError{Path: path, Err: err}
		}
		if info.IsDir() {
			return nil, &MissingInputFileError{Path: path, Err: errors.New("is a directory")}
		}
	}

	bufs := make([][]byte, len(paths))
	for i, path := range paths {
		data, err := afero.ReadFile(c.fs, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		bufs[i] = data
	}
	return bufs, nil
}

func (c *Converter) observe(op Operation, paths []string, fn func(*CallInfo) error) error {
	info := &CallInfo{
		ID:        uuid.NewString(),
		Operation: op,
		Paths:     paths,
	}
	for _, h := range c.hooks {
		h.BeforeCall(info)
	}

	start := time.Now()
	err := fn(info)
	info.Duration = time.Since(start)
	info.Error = err

	c.logger.Debug("paddle2onnx call",
		slog.String("id", info.ID),
		slog.String("operation", string(op)),
		slog.Duration("duration", info.Duration),
		slog.Bool("ok", err == nil),
	)
	for _, h := range c.hooks {
		h.AfterCall(info)
	}
	return err
}
