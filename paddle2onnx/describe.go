package paddle2onnx

import (
	"fmt"
	"slices"
	"unsafe"

	"github.com/benedoc-inc/paddle2onnx/paddle2onnx/internal/api"
)

// TensorInfo describes one model input or output.
type TensorInfo struct {
	Name string
	// Shape holds Rank dimension sizes; DynamicDim marks unknown dimensions.
	Shape    []int64
	Rank     int
	DataType DataType
}

// IsDynamic reports whether any dimension is unknown.
func (t TensorInfo) IsDynamic() bool {
	return slices.ContainsFunc(t.Shape, func(d int64) bool { return d < 0 })
}

// ModelInfo describes the inputs and outputs of an ONNX model.
// This is an immutable snapshot copied out of the native reader.
type ModelInfo struct {
	Inputs  []TensorInfo
	Outputs []TensorInfo
}

// InputNames returns the input tensor names in model order.
func (m *ModelInfo) InputNames() []string {
	return tensorNames(m.Inputs)
}

// OutputNames returns the output tensor names in model order.
func (m *ModelInfo) OutputNames() []string {
	return tensorNames(m.Outputs)
}

func tensorNames(tensors []TensorInfo) []string {
	names := make([]string, len(tensors))
	for i, t := range tensors {
		names[i] = t.Name
	}
	return names
}

// PaddleModelInfo describes the inputs and outputs of a Paddle model.
type PaddleModelInfo struct {
	InputNames  []string
	OutputNames []string
	// HasNMS reports whether the model ends in a MultiClassNMS operator.
	HasNMS bool
	// IsQuantized reports whether the model carries quantization operators.
	IsQuantized bool
}

// DescribeModel reads the input and output tensors of a serialized ONNX model.
func (c *Converter) DescribeModel(onnxModel []byte) (*ModelInfo, error) {
	var info *ModelInfo
	err := c.observe(OperationDescribeModel, nil, func(ci *CallInfo) error {
		ci.InputBytes = len(onnxModel)
		var err error
		info, err = c.describeModel(onnxModel)
		return err
	})
	return info, err
}

// DescribeModelFile is DescribeModel for an ONNX file.
func (c *Converter) DescribeModelFile(path string) (*ModelInfo, error) {
	var info *ModelInfo
	err := c.observe(OperationDescribeModel, []string{path}, func(ci *CallInfo) error {
		bufs, err := c.readInputFiles(path)
		if err != nil {
			return err
		}
		ci.InputBytes = len(bufs[0])
		info, err = c.describeModel(bufs[0])
		return err
	})
	return info, err
}

// DescribePaddleModel reads the input and output names of a serialized
// Paddle model program.
func (c *Converter) DescribePaddleModel(model []byte) (*PaddleModelInfo, error) {
	var info *PaddleModelInfo
	err := c.observe(OperationDescribePaddleModel, nil, func(ci *CallInfo) error {
		ci.InputBytes = len(model)
		var err error
		info, err = c.describePaddleModel(model)
		return err
	})
	return info, err
}

// DescribePaddleModelFile is DescribePaddleModel for a model file.
func (c *Converter) DescribePaddleModelFile(path string) (*PaddleModelInfo, error) {
	var info *PaddleModelInfo
	err := c.observe(OperationDescribePaddleModel, []string{path}, func(ci *CallInfo) error {
		bufs, err := c.readInputFiles(path)
		if err != nil {
			return err
		}
		ci.InputBytes = len(bufs[0])
		info, err = c.describePaddleModel(bufs[0])
		return err
	})
	return info, err
}

func (c *Converter) describeModel(onnxModel []byte) (*ModelInfo, error) {
	size, err := bufferSize("onnx model", onnxModel)
	if err != nil {
		return nil, err
	}

	var info *ModelInfo
	err = c.runtime.call(func(funcs api.Funcs) error {
		return withPinScope(func(s *pinScope) error {
			reader := &api.OnnxReader{}
			s.pinner.Pin(reader)
			if !funcs.ReadOnnxModel(s.bytes(onnxModel), size, reader) {
				return &ExportError{Op: "describe model"}
			}
			defer funcs.ReleaseOnnxReader(reader)

			var err error
			info, err = projectOnnxReader(reader)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Converter) describePaddleModel(model []byte) (*PaddleModelInfo, error) {
	size, err := bufferSize("model", model)
	if err != nil {
		return nil, err
	}

	var info *PaddleModelInfo
	err = c.runtime.call(func(funcs api.Funcs) error {
		return withPinScope(func(s *pinScope) error {
			reader := &api.PaddleReader{}
			s.pinner.Pin(reader)
			if !funcs.ReadPaddleModel(s.bytes(model), size, reader) {
				return &ExportError{Op: "describe paddle model"}
			}
			defer funcs.ReleasePaddleReader(reader)

			var err error
			info, err = projectPaddleReader(reader)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// projectOnnxReader copies everything out of a filled reader. The reader's
// pointers are only valid until it is released.
func projectOnnxReader(r *api.OnnxReader) (*ModelInfo, error) {
	inputs, err := readTensorInfos(r.InputNames, r.InputShapes, r.InputRanks, r.InputDTypes, r.NumInputs)
	if err != nil {
		return nil, fmt.Errorf("failed to read model inputs: %w", err)
	}
	outputs, err := readTensorInfos(r.OutputNames, r.OutputShapes, r.OutputRanks, r.OutputDTypes, r.NumOutputs)
	if err != nil {
		return nil, fmt.Errorf("failed to read model outputs: %w", err)
	}
	return &ModelInfo{Inputs: inputs, Outputs: outputs}, nil
}

func readTensorInfos(names **byte, flat *int64, ranks *int32, dtypes *int32, count int32) ([]TensorInfo, error) {
	nameList, err := readNameArray(names, count)
	if err != nil {
		return nil, err
	}
	shapes, err := readJaggedShapes(flat, ranks, count)
	if err != nil {
		return nil, err
	}

	var dtypeList []int32
	if dtypes != nil && count > 0 {
		dtypeList = unsafe.Slice(dtypes, count)
	}

	infos := make([]TensorInfo, count)
	for i := range infos {
		infos[i] = TensorInfo{
			Name:  nameList[i],
			Shape: shapes[i],
			Rank:  len(shapes[i]),
		}
		if dtypeList != nil {
			infos[i].DataType = DataType(dtypeList[i])
		}
	}
	return infos, nil
}

func projectPaddleReader(r *api.PaddleReader) (*PaddleModelInfo, error) {
	inputs, err := readNameArray(r.InputNames, r.NumInputs)
	if err != nil {
		return nil, fmt.Errorf("failed to read model inputs: %w", err)
	}
	outputs, err := readNameArray(r.OutputNames, r.NumOutputs)
	if err != nil {
		return nil, fmt.Errorf("failed to read model outputs: %w", err)
	}
	return &PaddleModelInfo{
		InputNames:  inputs,
		OutputNames: outputs,
		HasNMS:      r.HasNMS != 0,
		IsQuantized: r.IsQuantized != 0,
	}, nil
}
