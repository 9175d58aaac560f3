package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/benedoc-inc/paddle2onnx/paddle2onnx"
)

// tensorView is the printed form of a TensorInfo.
type tensorView struct {
	Name     string  `yaml:"name"`
	DataType string  `yaml:"data_type"`
	Shape    []int64 `yaml:"shape,flow"`
}

type modelView struct {
	Inputs  []tensorView `yaml:"inputs"`
	Outputs []tensorView `yaml:"outputs"`
}

type paddleModelView struct {
	Inputs      []string `yaml:"inputs"`
	Outputs     []string `yaml:"outputs"`
	HasNMS      bool     `yaml:"has_nms"`
	IsQuantized bool     `yaml:"is_quantized"`
}

func newModelView(info *paddle2onnx.ModelInfo) modelView {
	views := func(tensors []paddle2onnx.TensorInfo) []tensorView {
		out := make([]tensorView, len(tensors))
		for i, t := range tensors {
			out[i] = tensorView{Name: t.Name, DataType: t.DataType.String(), Shape: t.Shape}
		}
		return out
	}
	return modelView{Inputs: views(info.Inputs), Outputs: views(info.Outputs)}
}

func formatShape(shape []int64) string {
	dims := make([]string, len(shape))
	for i, d := range shape {
		if d < 0 {
			dims[i] = "?"
		} else {
			dims[i] = fmt.Sprint(d)
		}
	}
	return "[" + strings.Join(dims, ", ") + "]"
}

func newDescribeCmd(app *App) *cobra.Command {
	var (
		paddle bool
		format string
	)

	cmd := &cobra.Command{
		Use:     "describe MODEL",
		Short:   "List the inputs and outputs of an ONNX or Paddle model",
		GroupID: groupModel,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if format != "text" && format != "yaml" {
				return fmt.Errorf("invalid format %q", format)
			}
			return app.withConverter(func(conv Converter) error {
				if paddle {
					info, err := conv.DescribePaddleModelFile(args[0])
					if err != nil {
						return err
					}
					return app.printPaddleModel(info, format)
				}
				info, err := conv.DescribeModelFile(args[0])
				if err != nil {
					return err
				}
				return app.printModel(info, format)
			})
		},
	}
	cmd.Flags().BoolVar(&paddle, "paddle", false, "MODEL is a Paddle model program")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or yaml")
	return cmd
}

func (a *App) printModel(info *paddle2onnx.ModelInfo, format string) error {
	if format == "yaml" {
		return a.printYAML(newModelView(info))
	}
	a.printf("Inputs:\n")
	for _, t := range info.Inputs {
		a.printf("  %s %s %s\n", t.Name, t.DataType, formatShape(t.Shape))
	}
	a.printf("Outputs:\n")
	for _, t := range info.Outputs {
		a.printf("  %s %s %s\n", t.Name, t.DataType, formatShape(t.Shape))
	}
	return nil
}

func (a *App) printPaddleModel(info *paddle2onnx.PaddleModelInfo, format string) error {
	if format == "yaml" {
		return a.printYAML(paddleModelView{
			Inputs:      info.InputNames,
			Outputs:     info.OutputNames,
			HasNMS:      info.HasNMS,
			IsQuantized: info.IsQuantized,
		})
	}
	a.printf("Inputs: %s\n", strings.Join(info.InputNames, ", "))
	a.printf("Outputs: %s\n", strings.Join(info.OutputNames, ", "))
	a.printf("MultiClassNMS: %t\n", info.HasNMS)
	a.printf("Quantized: %t\n", info.IsQuantized)
	return nil
}

func (a *App) printYAML(v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = a.Out.Write(out)
	return err
}

func newInspectCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "inspect MODEL",
		Short:   "Print the header of an ONNX model",
		Long:    `Print the IR version, producer, graph inputs and outputs, and opset imports of an ONNX model. Does not load the native library.`,
		GroupID: groupModel,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := afero.ReadFile(app.Fs, args[0])
			if err != nil {
				return err
			}
			h, err := paddle2onnx.InspectONNX(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			app.printf("IR version: %d\n", h.IRVersion)
			app.printf("Producer: %s %s\n", h.ProducerName, h.ProducerVersion)
			if h.GraphName != "" {
				app.printf("Graph: %s\n", h.GraphName)
			}
			app.printf("Inputs: %s\n", strings.Join(h.GraphInputs, ", "))
			app.printf("Outputs: %s\n", strings.Join(h.GraphOutputs, ", "))
			for _, o := range h.OpsetImports {
				domain := o.Domain
				if domain == "" {
					domain = "ai.onnx"
				}
				app.printf("Opset %s: %d\n", domain, o.Version)
			}
			return nil
		},
	}
}
