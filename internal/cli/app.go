// Package cli implements the paddle2onnx command tree.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/benedoc-inc/paddle2onnx/internal/config"
	"github.com/benedoc-inc/paddle2onnx/paddle2onnx"
)

// Version is the command version, set at build time with
// -ldflags "-X github.com/benedoc-inc/paddle2onnx/internal/cli.Version=...".
var Version = "dev"

// Converter is the subset of *paddle2onnx.Converter used by the commands.
type Converter interface {
	CanConvertFiles(modelPath, paramsPath string, opts *paddle2onnx.ConversionOptions) (bool, error)
	ConvertFiles(modelPath, paramsPath string, opts *paddle2onnx.ConversionOptions) ([]byte, error)
	RemoveDetectionPostProcessing(onnxModel []byte) ([]byte, error)
	RemoveDetectionPostProcessingFile(path string) ([]byte, error)
	DescribeModelFile(path string) (*paddle2onnx.ModelInfo, error)
	DescribePaddleModelFile(path string) (*paddle2onnx.PaddleModelInfo, error)
	Version() string
	Close() error
}

// OpenFunc opens a Converter for a resolved configuration.
type OpenFunc func(conf *config.Config, fs afero.Fs, logger *slog.Logger) (Converter, error)

// App carries the state shared by all commands.
type App struct {
	Fs     afero.Fs
	Out    io.Writer
	Err    io.Writer
	Open   OpenFunc
	Config *config.Config
	Logger *slog.Logger
}

// NewApp returns an App using fs and writers, opening converters with
// OpenConverter.
func NewApp(fs afero.Fs, out, errOut io.Writer) *App {
	return &App{
		Fs:   fs,
		Out:  out,
		Err:  errOut,
		Open: OpenConverter,
	}
}

// OpenConverter loads the native library named by the configuration.
func OpenConverter(conf *config.Config, fs afero.Fs, logger *slog.Logger) (Converter, error) {
	return paddle2onnx.LoadConverter(&paddle2onnx.ConverterConfig{
		LibraryPath:       conf.LibraryPath,
		Fs:                fs,
		Logger:            logger,
		Hooks:             []paddle2onnx.Hook{paddle2onnx.NewSlogHook(logger)},
		ForwardNativeLogs: conf.ForwardNativeLogs,
	})
}

// withConverter opens a converter for the duration of fn.
func (a *App) withConverter(fn func(Converter) error) error {
	conv, err := a.Open(a.Config, a.Fs, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to load paddle2onnx: %w", err)
	}
	defer conv.Close()
	return fn(conv)
}

// writeOutput writes data to path, creating parent directories.
func (a *App) writeOutput(path string, data []byte) error {
	if err := a.Fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := afero.WriteFile(a.Fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.Out, format, args...)
}

// NewRootCmd builds the command tree.
func NewRootCmd(app *App) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "paddle2onnx",
		Short:         "Convert PaddlePaddle models to ONNX",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.Load(app.Fs, configFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := conf.Logger(app.Err)
			if err != nil {
				return err
			}
			app.Config = conf
			app.Logger = logger
			return nil
		},
	}
	rootCmd.SetOut(app.Out)
	rootCmd.SetErr(app.Err)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "config file (default ~/.config/paddle2onnx/config.yaml or ./paddle2onnx.yaml)")
	flags.String("library-path", "", "path to the Paddle2ONNX shared library (env "+paddle2onnx.LibraryPathEnv+")")
	flags.String("log-level", "warn", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")
	flags.Bool("forward-native-logs", false, "forward native library logs")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupConvert, Title: "Conversion commands"},
		&cobra.Group{ID: groupModel, Title: "Model inspection commands"},
	)

	rootCmd.AddCommand(
		newConvertCmd(app),
		newCheckCmd(app),
		newStripNMSCmd(app),
		newDescribeCmd(app),
		newInspectCmd(app),
		newVersionCmd(app),
		newConfigCmd(app),
	)
	return rootCmd
}

// Command group IDs.
const (
	groupConvert = "convert"
	groupModel   = "model"
)
