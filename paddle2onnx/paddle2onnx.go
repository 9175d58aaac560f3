package paddle2onnx

import "github.com/benedoc-inc/paddle2onnx/paddle2onnx/internal/api"

// Deploy backends understood by Paddle2ONNX. Any other name is passed to the
// native library unchanged.
const (
	// BackendONNXRuntime targets ONNX Runtime.
	BackendONNXRuntime = "onnxruntime"
	// BackendTensorRT targets TensorRT.
	BackendTensorRT = "tensorrt"
	// BackendRKNPU2 targets Rockchip RKNPU2.
	BackendRKNPU2 = "rknpu2"
)

// Conversion defaults applied when a ConversionOptions field is unset.
const (
	DefaultOpsetVersion  = 11
	DefaultDeployBackend = BackendONNXRuntime
)

// DynamicDim is the dimension size reported for dynamic or unknown dimensions.
const DynamicDim int64 = -1

// AttributeType identifies the representation of a custom operator attribute.
type AttributeType = api.AttrType

// Custom operator attribute types.
const (
	// AttributeInt is a single int64.
	AttributeInt AttributeType = api.AttrTypeInt
	// AttributeFloat is a single float64.
	AttributeFloat AttributeType = api.AttrTypeFloat
	// AttributeString is a single string.
	AttributeString AttributeType = api.AttrTypeString
	// AttributeInts is a list of int64.
	AttributeInts AttributeType = api.AttrTypeInts
	// AttributeFloats is a list of float64.
	AttributeFloats AttributeType = api.AttrTypeFloats
	// AttributeStrings is a list of strings.
	AttributeStrings AttributeType = api.AttrTypeStrings
	// AttributeBool is a single bool.
	AttributeBool AttributeType = api.AttrTypeBool
)

// DataType represents the element data type of a model tensor, using the
// ONNX TensorProto numbering.
type DataType int32

// Tensor element data types.
const (
	// DataTypeUndefined indicates an undefined data type.
	DataTypeUndefined DataType = 0
	// DataTypeFloat indicates float32 data type.
	DataTypeFloat DataType = 1
	// DataTypeUint8 indicates uint8 data type.
	DataTypeUint8 DataType = 2
	// DataTypeInt8 indicates int8 data type.
	DataTypeInt8 DataType = 3
	// DataTypeUint16 indicates uint16 data type.
	DataTypeUint16 DataType = 4
	// DataTypeInt16 indicates int16 data type.
	DataTypeInt16 DataType = 5
	// DataTypeInt32 indicates int32 data type.
	DataTypeInt32 DataType = 6
	// DataTypeInt64 indicates int64 data type.
	DataTypeInt64 DataType = 7
	// DataTypeString indicates string data type.
	DataTypeString DataType = 8
	// DataTypeBool indicates boolean data type.
	DataTypeBool DataType = 9
	// DataTypeFloat16 indicates float16 data type.
	DataTypeFloat16 DataType = 10
	// DataTypeDouble indicates float64 data type.
	DataTypeDouble DataType = 11
	// DataTypeUint32 indicates uint32 data type.
	DataTypeUint32 DataType = 12
	// DataTypeUint64 indicates uint64 data type.
	DataTypeUint64 DataType = 13
)

func (d DataType) String() string {
	switch d {
	case DataTypeUndefined:
		return "undefined"
	case DataTypeFloat:
		return "float32"
	case DataTypeUint8:
		return "uint8"
	case DataTypeInt8:
		return "int8"
	case DataTypeUint16:
		return "uint16"
	case DataTypeInt16:
		return "int16"
	case DataTypeInt32:
		return "int32"
	case DataTypeInt64:
		return "int64"
	case DataTypeString:
		return "string"
	case DataTypeBool:
		return "bool"
	case DataTypeFloat16:
		return "float16"
	case DataTypeDouble:
		return "float64"
	case DataTypeUint32:
		return "uint32"
	case DataTypeUint64:
		return "uint64"
	default:
		return "unknown"
	}
}

// Bool returns a pointer to v, for the default-true toggles of ConversionOptions.
func Bool(v bool) *bool {
	return &v
}
