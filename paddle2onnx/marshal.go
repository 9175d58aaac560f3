package paddle2onnx

import (
	"fmt"
	"math"
	goruntime "runtime"
	"slices"
	"unsafe"

	"github.com/benedoc-inc/paddle2onnx/internal/cstrings"
	"github.com/benedoc-inc/paddle2onnx/paddle2onnx/internal/api"
)

// pinScope keeps every Go buffer handed to the native library at a fixed
// address until the scope is released. Pointers obtained from a scope must
// not be used after withPinScope returns.
type pinScope struct {
	pinner   goruntime.Pinner
	released bool
}

// withPinScope runs fn with a fresh scope and unpins everything on return,
// including early error returns and panics.
func withPinScope(fn func(*pinScope) error) error {
	s := &pinScope{}
	defer s.release()
	return fn(s)
}

func (s *pinScope) release() {
	if s.released {
		return
	}
	s.pinner.Unpin()
	s.released = true
}

// bytes pins b and returns the address of its first element.
func (s *pinScope) bytes(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	s.pinner.Pin(&b[0])
	return unsafe.Pointer(&b[0])
}

// cString returns a pinned NUL-terminated copy of str.
func (s *pinScope) cString(str string) *byte {
	b := cstrings.StringToBytes(str)
	s.pinner.Pin(&b[0])
	return &b[0]
}

// pinSlice pins v and returns the address of its first element, or nil when v is empty.
func pinSlice[T any](s *pinScope, v []T) *T {
	if len(v) == 0 {
		return nil
	}
	s.pinner.Pin(&v[0])
	return &v[0]
}

// bufferSize validates a caller buffer and returns its length for the native ABI.
func bufferSize(name string, b []byte) (int32, error) {
	if len(b) == 0 {
		return 0, invalidArgument("%s buffer is empty", name)
	}
	if len(b) > math.MaxInt32 {
		return 0, invalidArgument("%s buffer exceeds %d bytes", name, math.MaxInt32)
	}
	return int32(len(b)), nil
}

// exportArgs builds the shared argument block of IsExportable and Export.
// model and params must already have passed bufferSize.
func (s *pinScope) exportArgs(funcs api.Funcs, model, params []byte, opts *ConversionOptions) (*api.ExportArgs, error) {
	ops, opCount, err := s.customOps(funcs, opts.customOps())
	if err != nil {
		return nil, err
	}
	return &api.ExportArgs{
		Model:                s.bytes(model),
		ModelSize:            int32(len(model)),
		Params:               s.bytes(params),
		ParamsSize:           int32(len(params)),
		OpsetVersion:         opts.opsetVersion(),
		AutoUpgradeOpset:     opts.autoUpgradeOpset(),
		Verbose:              opts.verbose(),
		EnableONNXChecker:    opts.enableONNXChecker(),
		EnableExperimentalOp: opts.enableExperimentalOp(),
		EnableOptimize:       opts.enableOptimize(),
		CustomOps:            ops,
		CustomOpCount:        opCount,
		DeployBackend:        s.cString(opts.deployBackend()),
	}, nil
}

// customOps converts ops into a pinned transfer array. Each element is first
// initialized by the native library and then overwritten with the caller's
// values. The returned pointer is nil when ops is empty.
func (s *pinScope) customOps(funcs api.Funcs, ops []CustomOperator) (*api.CustomOp, int32, error) {
	if len(ops) == 0 {
		return nil, 0, nil
	}

	native := make([]api.CustomOp, len(ops))
	first := pinSlice(s, native)
	for i := range ops {
		funcs.CustomOpInit(&native[i])
		if err := s.encodeCustomOp(&native[i], &ops[i]); err != nil {
			return nil, 0, fmt.Errorf("failed to encode custom operator %s: %w", ops[i].OpType, err)
		}
	}
	return first, int32(len(native)), nil
}

func (s *pinScope) encodeCustomOp(dst *api.CustomOp, op *CustomOperator) error {
	if err := op.validate(); err != nil {
		return err
	}

	dst.OpName = s.cString(op.OpType)
	if op.ExportOpType != "" {
		dst.ExportOpName = s.cString(op.ExportOpType)
	}

	n := len(op.Attributes)
	names := make([]*byte, n)
	types := make([]api.AttrType, n)
	values := make([]api.AttrValue, n)
	defaults := make([]uint8, n)
	for i, attr := range op.Attributes {
		names[i] = s.cString(attr.Name)
		types[i] = attr.Value.typ
		values[i] = s.attrValue(attr.Value)
		if attr.DefaultExported {
			defaults[i] = 1
		}
	}

	dst.AttrCount = int32(n)
	dst.AttrNames = pinSlice(s, names)
	dst.AttrTypes = pinSlice(s, types)
	dst.AttrValues = pinSlice(s, values)
	dst.AttrDefaultExported = pinSlice(s, defaults)
	return nil
}

// attrValue lays v out in the tag-plus-storage form of api.AttrValue.
// List storage is copied so the caller's value stays immutable.
func (s *pinScope) attrValue(v AttributeValue) api.AttrValue {
	var out api.AttrValue
	switch v.typ {
	case AttributeInt:
		out.Scalar = uint64(v.i)
	case AttributeFloat:
		out.Scalar = math.Float64bits(v.f)
	case AttributeBool:
		if v.b {
			out.Scalar = 1
		}
	case AttributeString:
		out.Ptr = unsafe.Pointer(s.cString(v.s))
	case AttributeInts:
		out.Ptr = unsafe.Pointer(pinSlice(s, slices.Clone(v.ints)))
		out.Len = int64(len(v.ints))
	case AttributeFloats:
		out.Ptr = unsafe.Pointer(pinSlice(s, slices.Clone(v.floats)))
		out.Len = int64(len(v.floats))
	case AttributeStrings:
		ptrs := make([]*byte, len(v.strs))
		for i, str := range v.strs {
			ptrs[i] = s.cString(str)
		}
		out.Ptr = unsafe.Pointer(pinSlice(s, ptrs))
		out.Len = int64(len(v.strs))
	}
	return out
}

// releaseNative frees a block allocated by the native library. A failing
// release means the native allocator is in an unknown state, which is fatal.
func releaseNative(funcs api.Funcs, ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	if code := funcs.Free(ptr); code != 0 {
		panic(fmt.Errorf("%w: P2OFree returned %d", ErrNativeAllocator, code))
	}
}

// readOutputBuffer copies a native output block into Go memory and then
// releases it. A nil block is an export failure even if the call succeeded.
func readOutputBuffer(funcs api.Funcs, op string, ptr unsafe.Pointer, size int32) ([]byte, error) {
	if ptr == nil {
		return nil, &ExportError{Op: op}
	}
	if size < 0 {
		releaseNative(funcs, ptr)
		return nil, &ExportError{Op: op}
	}

	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(ptr), size))
	releaseNative(funcs, ptr)
	return out, nil
}

// readNameArray copies count NUL-terminated UTF-8 names from a native pointer array.
func readNameArray(names **byte, count int32) ([]string, error) {
	if count < 0 {
		return nil, fmt.Errorf("native reader reported %d names", count)
	}
	if count > 0 && names == nil {
		return nil, fmt.Errorf("native reader reported %d names without a name array", count)
	}
	return cstrings.CStringArrayToStrings(names, int(count)), nil
}

// readJaggedShapes copies count variable-rank shapes out of a flat native
// buffer and its parallel rank array.
func readJaggedShapes(flat *int64, ranks *int32, count int32) ([][]int64, error) {
	if count < 0 {
		return nil, fmt.Errorf("native reader reported %d tensors", count)
	}
	if count == 0 {
		return [][]int64{}, nil
	}
	if ranks == nil {
		return nil, fmt.Errorf("native reader reported %d tensors without ranks", count)
	}

	rankSlice := unsafe.Slice(ranks, count)
	total, err := totalRank(rankSlice)
	if err != nil {
		return nil, err
	}

	var flatSlice []int64
	if total > 0 {
		if flat == nil {
			return nil, fmt.Errorf("native reader reported %d dimensions without a shape buffer", total)
		}
		flatSlice = unsafe.Slice(flat, total)
	}
	return splitShapes(flatSlice, rankSlice)
}

// splitShapes cuts flat into len(ranks) shapes, shape i taking ranks[i]
// entries starting at the sum of the preceding ranks. The ranks must
// partition flat exactly. Every shape is copied.
func splitShapes(flat []int64, ranks []int32) ([][]int64, error) {
	total, err := totalRank(ranks)
	if err != nil {
		return nil, err
	}
	if total != len(flat) {
		return nil, fmt.Errorf("ranks sum to %d but shape buffer holds %d dimensions", total, len(flat))
	}

	shapes := make([][]int64, len(ranks))
	offset := 0
	for i, rank := range ranks {
		end := offset + int(rank)
		shapes[i] = slices.Clone(flat[offset:end:end])
		if shapes[i] == nil {
			shapes[i] = []int64{}
		}
		offset = end
	}
	return shapes, nil
}

func totalRank(ranks []int32) (int, error) {
	total := 0
	for i, rank := range ranks {
		if rank < 0 {
			return 0, fmt.Errorf("tensor %d has negative rank %d", i, rank)
		}
		total += int(rank)
	}
	return total, nil
}
