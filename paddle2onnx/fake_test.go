package paddle2onnx

import (
	"math"
	"sync"
	"testing"
	"unsafe"

	"github.com/spf13/afero"

	"github.com/benedoc-inc/paddle2onnx/internal/cstrings"
	"github.com/benedoc-inc/paddle2onnx/paddle2onnx/internal/api"
)

// fakeEngine implements api.Funcs in Go. Output blocks are tracked like a
// native allocator so tests can check that each one is released exactly once.
type fakeEngine struct {
	mu sync.Mutex

	calls map[string]int

	exportable    bool
	exportOK      bool
	exportNilOut  bool
	exportOutput  []byte
	exportOutSize *int32
	nmsOK         bool
	nmsTransform  func([]byte) []byte
	freeCode      int32
	readerOK      bool
	onnxTensors   [2][]fakeTensor
	paddleReader  fakePaddleModel
	defaultExport []byte

	lastArgs api.ExportArgs
	lastOps  []CustomOperator
	lastRaw  []api.CustomOp
	backend  string
	model    []byte
	params   []byte

	live           map[unsafe.Pointer][]byte
	freed          int
	readerReleases int
	keep           [][]byte
	keepPtrs       [][]*byte
	keepI64        [][]int64
	keepI32        [][]int32
}

type fakeTensor struct {
	name  string
	shape []int64
	dtype int32
}

type fakePaddleModel struct {
	inputs, outputs []string
	hasNMS          bool
	quantized       bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		calls:         map[string]int{},
		exportable:    true,
		exportOK:      true,
		exportOutput:  []byte{0x08, 0x07, 0x12, 0x0c, 'P', 'a', 'd', 'd', 'l', 'e', 'P', 'a', 'd', 'd', 'l', 'e'},
		nmsOK:         true,
		readerOK:      true,
		live:          map[unsafe.Pointer][]byte{},
		defaultExport: cstrings.StringToBytes("null"),
	}
}

func newFakeConverter(t *testing.T) (*Converter, *fakeEngine, afero.Fs) {
	t.Helper()
	engine := newFakeEngine()
	fs := afero.NewMemMapFs()
	conv := NewConverter(newRuntimeWithFuncs(engine), &ConverterConfig{Fs: fs})
	return conv, engine, fs
}

func (f *fakeEngine) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeEngine) nativeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeEngine) liveBlocks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

func (f *fakeEngine) record(name string) {
	f.calls[name]++
}

func (f *fakeEngine) alloc(data []byte) (unsafe.Pointer, int32) {
	buf := make([]byte, len(data)+1)
	copy(buf, data)
	ptr := unsafe.Pointer(&buf[0])
	f.live[ptr] = buf
	return ptr, int32(len(data))
}

func (f *fakeEngine) CustomOpInit(op *api.CustomOp) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CustomOpInit")
	*op = api.CustomOp{ExportOpName: &f.defaultExport[0]}
}

func (f *fakeEngine) captureArgs(args *api.ExportArgs) {
	f.lastArgs = *args
	f.lastOps = decodeCustomOps(args.CustomOps, args.CustomOpCount)
	if args.CustomOpCount > 0 {
		f.lastRaw = append([]api.CustomOp(nil), unsafe.Slice(args.CustomOps, args.CustomOpCount)...)
	}
	f.backend = cstrings.CStringToString(args.DeployBackend)
	f.model = append([]byte(nil), unsafe.Slice((*byte)(args.Model), args.ModelSize)...)
	f.params = append([]byte(nil), unsafe.Slice((*byte)(args.Params), args.ParamsSize)...)
}

func (f *fakeEngine) IsExportable(args *api.ExportArgs) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("IsExportable")
	f.captureArgs(args)
	return f.exportable
}

func (f *fakeEngine) Export(args *api.ExportArgs, out *unsafe.Pointer, outSize *int32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Export")
	f.captureArgs(args)
	if !f.exportOK {
		return false
	}
	if f.exportNilOut {
		*out = nil
		*outSize = 0
		return true
	}
	*out, *outSize = f.alloc(f.exportOutput)
	if f.exportOutSize != nil {
		*outSize = *f.exportOutSize
	}
	return true
}

func (f *fakeEngine) RemoveMultiClassNMS(onnx unsafe.Pointer, size int32, out *unsafe.Pointer, outSize *int32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RemoveMultiClassNMS")
	if !f.nmsOK {
		return false
	}
	in := append([]byte(nil), unsafe.Slice((*byte)(onnx), size)...)
	if f.nmsTransform != nil {
		in = f.nmsTransform(in)
	}
	*out, *outSize = f.alloc(in)
	return true
}

func (f *fakeEngine) cStrings(names []string) **byte {
	if len(names) == 0 {
		return nil
	}
	ptrs := make([]*byte, len(names))
	for i, name := range names {
		b := cstrings.StringToBytes(name)
		f.keep = append(f.keep, b)
		ptrs[i] = &b[0]
	}
	f.keepPtrs = append(f.keepPtrs, ptrs)
	return &ptrs[0]
}

func (f *fakeEngine) flatten(tensors []fakeTensor) (*int64, *int32, *int32) {
	if len(tensors) == 0 {
		return nil, nil, nil
	}
	var flat []int64
	ranks := make([]int32, len(tensors))
	dtypes := make([]int32, len(tensors))
	for i, t := range tensors {
		flat = append(flat, t.shape...)
		ranks[i] = int32(len(t.shape))
		dtypes[i] = t.dtype
	}
	f.keepI32 = append(f.keepI32, ranks, dtypes)
	var flatPtr *int64
	if len(flat) > 0 {
		f.keepI64 = append(f.keepI64, flat)
		flatPtr = &flat[0]
	}
	return flatPtr, &ranks[0], &dtypes[0]
}

func (f *fakeEngine) ReadOnnxModel(onnx unsafe.Pointer, size int32, reader *api.OnnxReader) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ReadOnnxModel")
	if !f.readerOK {
		return false
	}
	in, out := f.onnxTensors[0], f.onnxTensors[1]
	names := make([]string, len(in))
	for i, t := range in {
		names[i] = t.name
	}
	reader.InputNames = f.cStrings(names)
	reader.InputShapes, reader.InputRanks, reader.InputDTypes = f.flatten(in)
	names = make([]string, len(out))
	for i, t := range out {
		names[i] = t.name
	}
	reader.OutputNames = f.cStrings(names)
	reader.OutputShapes, reader.OutputRanks, reader.OutputDTypes = f.flatten(out)
	reader.NumInputs = int32(len(in))
	reader.NumOutputs = int32(len(out))
	return true
}

func (f *fakeEngine) ReleaseOnnxReader(reader *api.OnnxReader) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ReleaseOnnxReader")
	f.readerReleases++
	*reader = api.OnnxReader{}
}

func (f *fakeEngine) ReadPaddleModel(model unsafe.Pointer, size int32, reader *api.PaddleReader) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ReadPaddleModel")
	if !f.readerOK {
		return false
	}
	reader.InputNames = f.cStrings(f.paddleReader.inputs)
	reader.OutputNames = f.cStrings(f.paddleReader.outputs)
	reader.NumInputs = int32(len(f.paddleReader.inputs))
	reader.NumOutputs = int32(len(f.paddleReader.outputs))
	if f.paddleReader.hasNMS {
		reader.HasNMS = 1
	}
	if f.paddleReader.quantized {
		reader.IsQuantized = 1
	}
	return true
}

func (f *fakeEngine) ReleasePaddleReader(reader *api.PaddleReader) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ReleasePaddleReader")
	f.readerReleases++
	*reader = api.PaddleReader{}
}

func (f *fakeEngine) Free(ptr unsafe.Pointer) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Free")
	if f.freeCode != 0 {
		return f.freeCode
	}
	if _, ok := f.live[ptr]; !ok {
		return -1
	}
	// Poison the block so reads after release are visible in tests.
	buf := f.live[ptr]
	for i := range buf {
		buf[i] = 0xdd
	}
	delete(f.live, ptr)
	f.freed++
	return 0
}

func (f *fakeEngine) Version() *byte {
	b := cstrings.StringToBytes("1.0.9-fake")
	return &b[0]
}

func (f *fakeEngine) SetLogCallback(uintptr) bool {
	return false
}

// decodeCustomOps reads a transfer array back into CustomOperators.
func decodeCustomOps(ptr *api.CustomOp, count int32) []CustomOperator {
	if ptr == nil || count == 0 {
		return nil
	}
	native := unsafe.Slice(ptr, count)
	ops := make([]CustomOperator, count)
	for i, op := range native {
		ops[i] = CustomOperator{
			OpType:       cstrings.CStringToString(op.OpName),
			ExportOpType: cstrings.CStringToString(op.ExportOpName),
		}
		if op.AttrCount == 0 {
			continue
		}
		names := cstrings.CStringArrayToStrings(op.AttrNames, int(op.AttrCount))
		types := unsafe.Slice(op.AttrTypes, op.AttrCount)
		values := unsafe.Slice(op.AttrValues, op.AttrCount)
		defaults := unsafe.Slice(op.AttrDefaultExported, op.AttrCount)
		for j := range names {
			ops[i].Attributes = append(ops[i].Attributes, Attribute{
				Name:            names[j],
				Value:           decodeAttrValue(types[j], values[j]),
				DefaultExported: defaults[j] != 0,
			})
		}
	}
	return ops
}

func decodeAttrValue(typ api.AttrType, v api.AttrValue) AttributeValue {
	switch typ {
	case api.AttrTypeInt:
		return IntAttr(int64(v.Scalar))
	case api.AttrTypeFloat:
		return FloatAttr(math.Float64frombits(v.Scalar))
	case api.AttrTypeBool:
		return BoolAttr(v.Scalar != 0)
	case api.AttrTypeString:
		return StringAttr(cstrings.CStringToString((*byte)(v.Ptr)))
	case api.AttrTypeInts:
		if v.Len == 0 {
			return IntsAttr()
		}
		return IntsAttr(unsafe.Slice((*int64)(v.Ptr), v.Len)...)
	case api.AttrTypeFloats:
		if v.Len == 0 {
			return FloatsAttr()
		}
		return FloatsAttr(unsafe.Slice((*float64)(v.Ptr), v.Len)...)
	case api.AttrTypeStrings:
		if v.Len == 0 {
			return StringsAttr()
		}
		return StringsAttr(cstrings.CStringArrayToStrings((**byte)(v.Ptr), int(v.Len))...)
	}
	return AttributeValue{typ: typ}
}
