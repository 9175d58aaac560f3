package api

import "unsafe"

// AttrType is the type tag stored next to every custom operator attribute.
// Values follow Paddle's AttrType enum.
type AttrType int32

const (
	AttrTypeInt     AttrType = 0
	AttrTypeFloat   AttrType = 1
	AttrTypeString  AttrType = 2
	AttrTypeInts    AttrType = 3
	AttrTypeFloats  AttrType = 4
	AttrTypeStrings AttrType = 5
	AttrTypeBool    AttrType = 6
)

// AttrValue mirrors P2OAttrValue.
//
// Scalar holds the int64 bits, the float64 bits or 0/1 for bools. Ptr holds a
// NUL-terminated string for AttrTypeString, or the first element of the list
// for list types. Len is the list length and is 0 for scalars.
type AttrValue struct {
	Scalar uint64
	Ptr    unsafe.Pointer
	Len    int64
}

// CustomOp mirrors P2OCustomOp. The per-attribute arrays are parallel and
// each holds AttrCount elements.
type CustomOp struct {
	OpName              *byte
	ExportOpName        *byte
	AttrCount           int32
	AttrNames           **byte
	AttrTypes           *AttrType
	AttrValues          *AttrValue
	AttrDefaultExported *uint8
}

// PaddleReader mirrors P2OPaddleReader. It is filled in place by
// ReadPaddleModel and its pointers stay valid until ReleasePaddleReader.
type PaddleReader struct {
	InputNames  **byte
	OutputNames **byte
	NumInputs   int32
	NumOutputs  int32
	HasNMS      uint8
	IsQuantized uint8
}

// OnnxReader mirrors P2OOnnxReader. Shapes are stored flat; tensor i owns
// Ranks[i] consecutive entries starting at the sum of the preceding ranks.
type OnnxReader struct {
	InputNames   **byte
	OutputNames  **byte
	InputShapes  *int64
	InputRanks   *int32
	InputDTypes  *int32
	OutputShapes *int64
	OutputRanks  *int32
	OutputDTypes *int32
	NumInputs    int32
	NumOutputs   int32
}

// ExportArgs groups the arguments shared by P2OIsExportableFromBuffer and
// P2OExportFromBuffer. The pointers must stay pinned for the whole call.
type ExportArgs struct {
	Model                unsafe.Pointer
	ModelSize            int32
	Params               unsafe.Pointer
	ParamsSize           int32
	OpsetVersion         int32
	AutoUpgradeOpset     bool
	Verbose              bool
	EnableONNXChecker    bool
	EnableExperimentalOp bool
	EnableOptimize       bool
	CustomOps            *CustomOp
	CustomOpCount        int32
	DeployBackend        *byte
}

// Funcs is the set of native entry points exported by the paddle2onnx C shim.
type Funcs interface {
	// Custom operators
	CustomOpInit(*CustomOp)

	// Conversion
	IsExportable(*ExportArgs) bool
	Export(args *ExportArgs, out *unsafe.Pointer, outSize *int32) bool
	RemoveMultiClassNMS(onnx unsafe.Pointer, size int32, out *unsafe.Pointer, outSize *int32) bool

	// Model readers
	ReadPaddleModel(model unsafe.Pointer, size int32, reader *PaddleReader) bool
	ReleasePaddleReader(*PaddleReader)
	ReadOnnxModel(onnx unsafe.Pointer, size int32, reader *OnnxReader) bool
	ReleaseOnnxReader(*OnnxReader)

	// Native allocator
	Free(unsafe.Pointer) int32

	// Optional entry points. Version returns nil and SetLogCallback returns
	// false when the library does not export them.
	Version() *byte
	SetLogCallback(callback uintptr) bool
}
