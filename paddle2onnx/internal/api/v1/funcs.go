package v1

import (
	"fmt"
	"unsafe"

	"github.com/benedoc-inc/paddle2onnx/paddle2onnx/internal/api"
	"github.com/ebitengine/purego"
)

// Funcs contains cached function pointers to the paddle2onnx C shim.
type Funcs struct {
	// Custom operators
	customOpInit func(*api.CustomOp)

	// Conversion
	isExportableFromBuffer func(unsafe.Pointer, int32, unsafe.Pointer, int32, int32, bool, bool, bool, bool, bool, *api.CustomOp, int32, *byte) bool
	exportFromBuffer       func(unsafe.Pointer, int32, unsafe.Pointer, int32, *unsafe.Pointer, *int32, int32, bool, bool, bool, bool, bool, *api.CustomOp, int32, *byte) bool
	removeMultiClassNMS    func(unsafe.Pointer, int32, *unsafe.Pointer, *int32) bool

	// Model readers
	readPaddleModel     func(unsafe.Pointer, int32, *api.PaddleReader) bool
	releasePaddleReader func(*api.PaddleReader)
	readOnnxModel       func(unsafe.Pointer, int32, *api.OnnxReader) bool
	releaseOnnxReader   func(*api.OnnxReader)

	// Native allocator
	free func(unsafe.Pointer) int32

	// Optional
	version        func() *byte
	setLogCallback func(uintptr)
}

// InitializeFuncs resolves the C shim entry points from the library handle.
// Required symbols that cannot be found are reported as an error instead of
// panicking inside purego.
func InitializeFuncs(libraryHandle uintptr) (*Funcs, error) {
	funcs := &Funcs{}

	required := []struct {
		fptr any
		name string
	}{
		{&funcs.customOpInit, "P2OCustomOpInit"},
		{&funcs.isExportableFromBuffer, "P2OIsExportableFromBuffer"},
		{&funcs.exportFromBuffer, "P2OExportFromBuffer"},
		{&funcs.removeMultiClassNMS, "P2ORemoveMultiClassNMS"},
		{&funcs.readPaddleModel, "P2OReadPaddleModel"},
		{&funcs.releasePaddleReader, "P2OReleasePaddleReader"},
		{&funcs.readOnnxModel, "P2OReadOnnxModel"},
		{&funcs.releaseOnnxReader, "P2OReleaseOnnxReader"},
		{&funcs.free, "P2OFree"},
	}
	for _, fn := range required {
		sym, err := openSymbol(libraryHandle, fn.name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", fn.name, err)
		}
		if sym == 0 {
			return nil, fmt.Errorf("symbol %s not found", fn.name)
		}
		purego.RegisterFunc(fn.fptr, sym)
	}

	if sym, err := openSymbol(libraryHandle, "P2OVersion"); err == nil && sym != 0 {
		purego.RegisterFunc(&funcs.version, sym)
	}
	if sym, err := openSymbol(libraryHandle, "P2OSetLogCallback"); err == nil && sym != 0 {
		purego.RegisterFunc(&funcs.setLogCallback, sym)
	}

	return funcs, nil
}

// Custom operator methods

func (f *Funcs) CustomOpInit(op *api.CustomOp) {
	f.customOpInit(op)
}

// Conversion methods

func (f *Funcs) IsExportable(args *api.ExportArgs) bool {
	return f.isExportableFromBuffer(
		args.Model, args.ModelSize,
		args.Params, args.ParamsSize,
		args.OpsetVersion,
		args.AutoUpgradeOpset,
		args.Verbose,
		args.EnableONNXChecker,
		args.EnableExperimentalOp,
		args.EnableOptimize,
		args.CustomOps, args.CustomOpCount,
		args.DeployBackend,
	)
}

func (f *Funcs) Export(args *api.ExportArgs, out *unsafe.Pointer, outSize *int32) bool {
	return f.exportFromBuffer(
		args.Model, args.ModelSize,
		args.Params, args.ParamsSize,
		out, outSize,
		args.OpsetVersion,
		args.AutoUpgradeOpset,
		args.Verbose,
		args.EnableONNXChecker,
		args.EnableExperimentalOp,
		args.EnableOptimize,
		args.CustomOps, args.CustomOpCount,
		args.DeployBackend,
	)
}

func (f *Funcs) RemoveMultiClassNMS(onnx unsafe.Pointer, size int32, out *unsafe.Pointer, outSize *int32) bool {
	return f.removeMultiClassNMS(onnx, size, out, outSize)
}

// Model reader methods

func (f *Funcs) ReadPaddleModel(model unsafe.Pointer, size int32, reader *api.PaddleReader) bool {
	return f.readPaddleModel(model, size, reader)
}

func (f *Funcs) ReleasePaddleReader(reader *api.PaddleReader) {
	f.releasePaddleReader(reader)
}

func (f *Funcs) ReadOnnxModel(onnx unsafe.Pointer, size int32, reader *api.OnnxReader) bool {
	return f.readOnnxModel(onnx, size, reader)
}

func (f *Funcs) ReleaseOnnxReader(reader *api.OnnxReader) {
	f.releaseOnnxReader(reader)
}

// Native allocator methods

func (f *Funcs) Free(ptr unsafe.Pointer) int32 {
	return f.free(ptr)
}

// Optional methods

func (f *Funcs) Version() *byte {
	if f.version == nil {
		return nil
	}
	return f.version()
}

func (f *Funcs) SetLogCallback(callback uintptr) bool {
	if f.setLogCallback == nil {
		return false
	}
	f.setLogCallback(callback)
	return true
}

var _ api.Funcs = (*Funcs)(nil)
