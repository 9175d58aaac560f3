package paddle2onnx

import "math"

// ConversionOptions configures CanConvert and Convert.
// A nil *ConversionOptions uses the defaults for every field.
type ConversionOptions struct {
	// OpsetVersion is the target ONNX opset. Zero uses DefaultOpsetVersion.
	OpsetVersion int

	// AutoUpgradeOpset lets the converter raise the opset when an operator
	// needs a newer one. nil means true.
	AutoUpgradeOpset *bool

	// Verbose enables native conversion logging.
	Verbose bool

	// EnableONNXChecker runs the ONNX checker on the result. nil means true.
	EnableONNXChecker *bool

	// EnableExperimentalOp allows operators still under development.
	EnableExperimentalOp bool

	// EnableOptimize runs the ONNX optimizer on the result. nil means true.
	EnableOptimize *bool

	// CustomOps substitutes operator types during conversion.
	CustomOps []CustomOperator

	// DeployBackend names the inference backend the model is exported for.
	// Empty uses DefaultDeployBackend; other values are passed through.
	DeployBackend string
}

// DefaultConversionOptions returns options with every field set to its default.
func DefaultConversionOptions() *ConversionOptions {
	return &ConversionOptions{
		OpsetVersion:      DefaultOpsetVersion,
		AutoUpgradeOpset:  Bool(true),
		EnableONNXChecker: Bool(true),
		EnableOptimize:    Bool(true),
		DeployBackend:     DefaultDeployBackend,
	}
}

func (o *ConversionOptions) opsetVersion() int32 {
	if o != nil && o.OpsetVersion != 0 {
		return int32(o.OpsetVersion)
	}
	return DefaultOpsetVersion
}

func (o *ConversionOptions) autoUpgradeOpset() bool {
	if o != nil && o.AutoUpgradeOpset != nil {
		return *o.AutoUpgradeOpset
	}
	return true
}

func (o *ConversionOptions) verbose() bool {
	return o != nil && o.Verbose
}

func (o *ConversionOptions) enableONNXChecker() bool {
	if o != nil && o.EnableONNXChecker != nil {
		return *o.EnableONNXChecker
	}
	return true
}

func (o *ConversionOptions) enableExperimentalOp() bool {
	return o != nil && o.EnableExperimentalOp
}

func (o *ConversionOptions) enableOptimize() bool {
	if o != nil && o.EnableOptimize != nil {
		return *o.EnableOptimize
	}
	return true
}

func (o *ConversionOptions) customOps() []CustomOperator {
	if o != nil {
		return o.CustomOps
	}
	return nil
}

func (o *ConversionOptions) deployBackend() string {
	if o != nil && o.DeployBackend != "" {
		return o.DeployBackend
	}
	return DefaultDeployBackend
}

// validate checks what can be checked locally. Whether an opset or backend is
// supported is left to the native library.
func (o *ConversionOptions) validate() error {
	if o == nil {
		return nil
	}
	if o.OpsetVersion < 0 || o.OpsetVersion > math.MaxInt32 {
		return invalidArgument("opset version %d out of range", o.OpsetVersion)
	}
	if len(o.CustomOps) > math.MaxInt32 {
		return invalidArgument("too many custom operators")
	}
	for i := range o.CustomOps {
		if err := o.CustomOps[i].validate(); err != nil {
			return err
		}
	}
	return nil
}
