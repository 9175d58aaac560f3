package cli

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/benedoc-inc/paddle2onnx/internal/config"
	"github.com/benedoc-inc/paddle2onnx/paddle2onnx"
)

type stubConverter struct {
	exportable bool
	output     []byte
	err        error

	opts     *paddle2onnx.ConversionOptions
	paths    []string
	stripped int
	closed   bool
}

func (s *stubConverter) CanConvertFiles(modelPath, paramsPath string, opts *paddle2onnx.ConversionOptions) (bool, error) {
	s.paths, s.opts = []string{modelPath, paramsPath}, opts
	return s.exportable, s.err
}

func (s *stubConverter) ConvertFiles(modelPath, paramsPath string, opts *paddle2onnx.ConversionOptions) ([]byte, error) {
	s.paths, s.opts = []string{modelPath, paramsPath}, opts
	return s.output, s.err
}

func (s *stubConverter) RemoveDetectionPostProcessing(onnxModel []byte) ([]byte, error) {
	s.stripped++
	return onnxModel[:len(onnxModel)-1], s.err
}

func (s *stubConverter) RemoveDetectionPostProcessingFile(path string) ([]byte, error) {
	s.paths = []string{path}
	s.stripped++
	return s.output, s.err
}

func (s *stubConverter) DescribeModelFile(path string) (*paddle2onnx.ModelInfo, error) {
	s.paths = []string{path}
	return &paddle2onnx.ModelInfo{
		Inputs: []paddle2onnx.TensorInfo{
			{Name: "image", Shape: []int64{-1, 3, 224, 224}, Rank: 4, DataType: paddle2onnx.DataTypeFloat},
		},
		Outputs: []paddle2onnx.TensorInfo{
			{Name: "logits", Shape: []int64{-1, 1000}, Rank: 2, DataType: paddle2onnx.DataTypeFloat},
		},
	}, s.err
}

func (s *stubConverter) DescribePaddleModelFile(path string) (*paddle2onnx.PaddleModelInfo, error) {
	s.paths = []string{path}
	return &paddle2onnx.PaddleModelInfo{
		InputNames:  []string{"image", "scale_factor"},
		OutputNames: []string{"boxes"},
		HasNMS:      true,
	}, s.err
}

func (s *stubConverter) Version() string { return "1.0.9" }

func (s *stubConverter) Close() error {
	s.closed = true
	return nil
}

// onnxModel returns a minimal serialized ModelProto.
func onnxModel() []byte {
	var opset []byte
	opset = protowire.AppendTag(opset, 2, protowire.VarintType)
	opset = protowire.AppendVarint(opset, 13)

	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 8)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, "PaddlePaddle")
	b = protowire.AppendTag(b, 8, protowire.BytesType)
	b = protowire.AppendBytes(b, opset)
	return b
}

func run(t *testing.T, fs afero.Fs, stub *stubConverter, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := NewApp(fs, &out, &errOut)
	app.Open = func(*config.Config, afero.Fs, *slog.Logger) (Converter, error) {
		if stub == nil {
			return nil, errors.New("library not found")
		}
		return stub, nil
	}
	root := NewRootCmd(app)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConvertCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	stub := &stubConverter{output: onnxModel()}

	out, err := run(t, fs, stub, "convert", "m.pdmodel", "m.pdiparams",
		"-o", "/out/model.onnx", "--opset", "13", "--deploy-backend", "tensorrt", "--enable-optimize=false")
	require.NoError(t, err)

	assert.Contains(t, out, "wrote /out/model.onnx")
	assert.Contains(t, out, "opset 13")
	assert.Equal(t, []string{"m.pdmodel", "m.pdiparams"}, stub.paths)
	assert.True(t, stub.closed)

	require.NotNil(t, stub.opts)
	assert.Equal(t, 13, stub.opts.OpsetVersion)
	assert.Equal(t, paddle2onnx.BackendTensorRT, stub.opts.DeployBackend)
	assert.False(t, *stub.opts.EnableOptimize)
	assert.True(t, *stub.opts.EnableONNXChecker)

	written, err := afero.ReadFile(fs, "/out/model.onnx")
	require.NoError(t, err)
	assert.Equal(t, stub.output, written)
}

func TestConvertCommandStripNMS(t *testing.T) {
	fs := afero.NewMemMapFs()
	stub := &stubConverter{output: append(onnxModel(), 0xff)}

	_, err := run(t, fs, stub, "convert", "m.pdmodel", "m.pdiparams", "-o", "/m.onnx", "--strip-nms")
	require.NoError(t, err)
	assert.Equal(t, 1, stub.stripped)

	written, err := afero.ReadFile(fs, "/m.onnx")
	require.NoError(t, err)
	assert.Equal(t, onnxModel(), written)
}

func TestConvertCommandCustomOps(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ops.yaml", []byte(`
custom_ops:
  - op_type: multiclass_nms3
    export_op_type: MultiClassNMS
    attributes:
      - name: keep_top_k
        value: 100
`), 0o644))
	stub := &stubConverter{output: onnxModel()}

	_, err := run(t, fs, stub, "convert", "m.pdmodel", "m.pdiparams", "--custom-ops", "/ops.yaml")
	require.NoError(t, err)
	require.Len(t, stub.opts.CustomOps, 1)
	assert.Equal(t, "MultiClassNMS", stub.opts.CustomOps[0].ExportOpType)
}

func TestConvertCommandFailure(t *testing.T) {
	stub := &stubConverter{err: &paddle2onnx.ExportError{Op: "convert"}}

	_, err := run(t, afero.NewMemMapFs(), stub, "convert", "m.pdmodel", "m.pdiparams")
	assert.ErrorIs(t, err, paddle2onnx.ErrExportFailure)
	assert.True(t, stub.closed)

	_, err = run(t, afero.NewMemMapFs(), nil, "convert", "m.pdmodel", "m.pdiparams")
	assert.ErrorContains(t, err, "library not found")
}

func TestCheckCommand(t *testing.T) {
	out, err := run(t, afero.NewMemMapFs(), &stubConverter{exportable: true}, "check", "m.pdmodel", "m.pdiparams")
	require.NoError(t, err)
	assert.Equal(t, "m.pdmodel: exportable\n", out)

	out, err = run(t, afero.NewMemMapFs(), &stubConverter{}, "check", "m.pdmodel", "m.pdiparams")
	assert.ErrorIs(t, err, errNotExportable)
	assert.Equal(t, "m.pdmodel: not exportable\n", out)
}

func TestStripNMSCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	stub := &stubConverter{output: onnxModel()}

	_, err := run(t, fs, stub, "strip-nms", "/det.onnx")
	require.NoError(t, err)
	assert.Equal(t, []string{"/det.onnx"}, stub.paths)

	written, err := afero.ReadFile(fs, "/det.onnx")
	require.NoError(t, err)
	assert.Equal(t, stub.output, written)
}

func TestDescribeCommand(t *testing.T) {
	out, err := run(t, afero.NewMemMapFs(), &stubConverter{}, "describe", "m.onnx")
	require.NoError(t, err)
	assert.Contains(t, out, "image float32 [?, 3, 224, 224]")
	assert.Contains(t, out, "logits float32 [?, 1000]")

	out, err = run(t, afero.NewMemMapFs(), &stubConverter{}, "describe", "m.onnx", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "name: image")
	assert.Contains(t, out, "shape: [-1, 3, 224, 224]")

	out, err = run(t, afero.NewMemMapFs(), &stubConverter{}, "describe", "--paddle", "m.pdmodel")
	require.NoError(t, err)
	assert.Contains(t, out, "Inputs: image, scale_factor")
	assert.Contains(t, out, "MultiClassNMS: true")

	_, err = run(t, afero.NewMemMapFs(), &stubConverter{}, "describe", "m.onnx", "--format", "xml")
	assert.Error(t, err)
}

func TestInspectCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/m.onnx", onnxModel(), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/bad.onnx", []byte("not a model"), 0o644))

	out, err := run(t, fs, nil, "inspect", "/m.onnx")
	require.NoError(t, err)
	assert.Contains(t, out, "IR version: 8")
	assert.Contains(t, out, "Producer: PaddlePaddle")
	assert.Contains(t, out, "Opset ai.onnx: 13")

	_, err = run(t, fs, nil, "inspect", "/bad.onnx")
	assert.ErrorIs(t, err, paddle2onnx.ErrNotONNX)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, afero.NewMemMapFs(), &stubConverter{}, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "paddle2onnx dev")
	assert.Contains(t, out, "native library: 1.0.9")

	out, err = run(t, afero.NewMemMapFs(), nil, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "native library: unavailable")
}

func TestConfigShowCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/p2o.yaml", []byte("convert:\n  opset_version: 12\n"), 0o644))

	out, err := run(t, fs, nil, "config", "show", "--config", "/p2o.yaml", "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, out, "opset_version: 12")
	assert.Contains(t, out, "log_level: debug")
	assert.Contains(t, out, "deploy_backend: onnxruntime")
}

func TestRootRejectsBadLogLevel(t *testing.T) {
	_, err := run(t, afero.NewMemMapFs(), nil, "config", "show", "--log-level", "loud")
	assert.Error(t, err)
}
