package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/benedoc-inc/paddle2onnx/paddle2onnx"
)

// errNotExportable is returned by check when the model cannot be exported.
var errNotExportable = errors.New("model is not exportable")

func addConversionFlags(flags *pflag.FlagSet) {
	flags.Int("opset", paddle2onnx.DefaultOpsetVersion, "target ONNX opset version")
	flags.Bool("auto-upgrade-opset", true, "raise the opset when an operator requires it")
	flags.Bool("verbose", false, "enable native conversion logging")
	flags.Bool("enable-onnx-checker", true, "run the ONNX checker on the result")
	flags.Bool("enable-experimental-op", false, "allow experimental operators")
	flags.Bool("enable-optimize", true, "run the ONNX optimizer on the result")
	flags.String("deploy-backend", paddle2onnx.DefaultDeployBackend, "deploy backend: onnxruntime, tensorrt, rknpu2, ...")
	flags.String("custom-ops", "", "YAML file declaring custom operator substitutions")
}

func newConvertCmd(app *App) *cobra.Command {
	var (
		output   string
		stripNMS bool
	)

	cmd := &cobra.Command{
		Use:     "convert MODEL PARAMS",
		Short:   "Convert a Paddle model to ONNX",
		Long:    `Convert a Paddle inference model (.pdmodel) and its parameters (.pdiparams) to an ONNX model.`,
		GroupID: groupConvert,
		Args:    cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			opts, err := app.Config.ConversionOptions(app.Fs)
			if err != nil {
				return err
			}

			return app.withConverter(func(conv Converter) error {
				out, err := conv.ConvertFiles(args[0], args[1], opts)
				if err != nil {
					return err
				}
				if stripNMS {
					if out, err = conv.RemoveDetectionPostProcessing(out); err != nil {
						return err
					}
				}
				if err := app.writeOutput(output, out); err != nil {
					return err
				}

				summary := fmt.Sprintf("wrote %s (%d bytes)", output, len(out))
				if h, err := paddle2onnx.InspectONNX(out); err == nil {
					summary += fmt.Sprintf(", opset %d", h.Opset())
				}
				app.printf("%s\n", summary)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "model.onnx", "output ONNX file")
	cmd.Flags().BoolVar(&stripNMS, "strip-nms", false, "remove the MultiClassNMS post-processing from the result")
	addConversionFlags(cmd.Flags())
	return cmd
}

func newCheckCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "check MODEL PARAMS",
		Short:   "Check whether a Paddle model can be converted",
		GroupID: groupConvert,
		Args:    cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			opts, err := app.Config.ConversionOptions(app.Fs)
			if err != nil {
				return err
			}

			return app.withConverter(func(conv Converter) error {
				ok, err := conv.CanConvertFiles(args[0], args[1], opts)
				if err != nil {
					return err
				}
				if !ok {
					app.printf("%s: not exportable\n", args[0])
					return errNotExportable
				}
				app.printf("%s: exportable\n", args[0])
				return nil
			})
		},
	}
	addConversionFlags(cmd.Flags())
	return cmd
}

func newStripNMSCmd(app *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "strip-nms MODEL",
		Short:   "Remove MultiClassNMS post-processing from an ONNX model",
		GroupID: groupConvert,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return app.withConverter(func(conv Converter) error {
				out, err := conv.RemoveDetectionPostProcessingFile(args[0])
				if err != nil {
					return err
				}
				if output == "" {
					output = args[0]
				}
				if err := app.writeOutput(output, out); err != nil {
					return err
				}
				app.printf("wrote %s (%d bytes)\n", output, len(out))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output ONNX file (default: overwrite MODEL)")
	return cmd
}
