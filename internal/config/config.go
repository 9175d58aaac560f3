// Package config loads the paddle2onnx command configuration from defaults,
// a YAML file, P2O_ environment variables and command-line flags, in that
// order of precedence.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/benedoc-inc/paddle2onnx/paddle2onnx"
)

// EnvPrefix prefixes the environment variables read by Load. Nested keys are
// separated by a double underscore, e.g. P2O_CONVERT__OPSET_VERSION.
const EnvPrefix = "P2O_"

// Config is the resolved command configuration.
type Config struct {
	LibraryPath       string  `koanf:"library_path" yaml:"library_path"`
	LogLevel          string  `koanf:"log_level" yaml:"log_level"`
	LogFormat         string  `koanf:"log_format" yaml:"log_format"`
	ForwardNativeLogs bool    `koanf:"forward_native_logs" yaml:"forward_native_logs"`
	Convert           Convert `koanf:"convert" yaml:"convert"`
}

// Convert holds the conversion settings.
type Convert struct {
	OpsetVersion         int    `koanf:"opset_version" yaml:"opset_version"`
	AutoUpgradeOpset     bool   `koanf:"auto_upgrade_opset" yaml:"auto_upgrade_opset"`
	Verbose              bool   `koanf:"verbose" yaml:"verbose"`
	EnableONNXChecker    bool   `koanf:"enable_onnx_checker" yaml:"enable_onnx_checker"`
	EnableExperimentalOp bool   `koanf:"enable_experimental_op" yaml:"enable_experimental_op"`
	EnableOptimize       bool   `koanf:"enable_optimize" yaml:"enable_optimize"`
	DeployBackend        string `koanf:"deploy_backend" yaml:"deploy_backend"`
	CustomOpsFile        string `koanf:"custom_ops_file" yaml:"custom_ops_file,omitempty"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"library_path":                   "",
		"log_level":                      "warn",
		"log_format":                     "text",
		"forward_native_logs":            false,
		"convert.opset_version":          paddle2onnx.DefaultOpsetVersion,
		"convert.auto_upgrade_opset":     true,
		"convert.verbose":                false,
		"convert.enable_onnx_checker":    true,
		"convert.enable_experimental_op": false,
		"convert.enable_optimize":        true,
		"convert.deploy_backend":         paddle2onnx.DefaultDeployBackend,
		"convert.custom_ops_file":        "",
	}
}

// SearchPaths returns the config files tried, in order, when no explicit
// file is given.
func SearchPaths() []string {
	paths := []string{}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "paddle2onnx", "config.yaml"))
	}
	return append(paths, "paddle2onnx.yaml")
}

// Load resolves the configuration. configFile, when set, must exist;
// otherwise the first existing file of SearchPaths is used, if any.
// flags may be nil.
func Load(fs afero.Fs, configFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	path, err := findConfigFile(fs, configFile)
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("error reading config %s: %w", path, err)
		}
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error parsing config %s: %w", path, err)
		}
	}

	envOpts := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, EnvPrefix)),
			"__",
			".",
		)
	})
	if err := k.Load(envOpts, nil); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithValue(flags, ".", k, mapFlagToConfig), nil); err != nil {
			return nil, fmt.Errorf("error loading flags: %w", err)
		}
	}

	var conf Config
	if err := k.Unmarshal("", &conf); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	return &conf, nil
}

func findConfigFile(fs afero.Fs, configFile string) (string, error) {
	if configFile != "" {
		if exists, _ := afero.Exists(fs, configFile); !exists {
			return "", fmt.Errorf("config file %s does not exist", configFile)
		}
		return configFile, nil
	}
	for _, p := range SearchPaths() {
		if exists, _ := afero.Exists(fs, p); exists {
			return p, nil
		}
	}
	return "", nil
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"library-path":           "library_path",
	"log-level":              "log_level",
	"log-format":             "log_format",
	"forward-native-logs":    "forward_native_logs",
	"opset":                  "convert.opset_version",
	"auto-upgrade-opset":     "convert.auto_upgrade_opset",
	"verbose":                "convert.verbose",
	"enable-onnx-checker":    "convert.enable_onnx_checker",
	"enable-experimental-op": "convert.enable_experimental_op",
	"enable-optimize":        "convert.enable_optimize",
	"deploy-backend":         "convert.deploy_backend",
	"custom-ops":             "convert.custom_ops_file",
}

func mapFlagToConfig(key string, value string) (string, interface{}) {
	if mapped, ok := flagKeys[key]; ok {
		return mapped, value
	}
	// Flags without a config key are left out of the configuration.
	return "", nil
}

// ConversionOptions builds the library options, reading the custom
// operator file from fs when one is configured.
func (c *Config) ConversionOptions(fs afero.Fs) (*paddle2onnx.ConversionOptions, error) {
	opts := &paddle2onnx.ConversionOptions{
		OpsetVersion:         c.Convert.OpsetVersion,
		AutoUpgradeOpset:     paddle2onnx.Bool(c.Convert.AutoUpgradeOpset),
		Verbose:              c.Convert.Verbose,
		EnableONNXChecker:    paddle2onnx.Bool(c.Convert.EnableONNXChecker),
		EnableExperimentalOp: c.Convert.EnableExperimentalOp,
		EnableOptimize:       paddle2onnx.Bool(c.Convert.EnableOptimize),
		DeployBackend:        c.Convert.DeployBackend,
	}
	if c.Convert.CustomOpsFile != "" {
		ops, err := LoadCustomOps(fs, c.Convert.CustomOpsFile)
		if err != nil {
			return nil, err
		}
		opts.CustomOps = ops
	}
	return opts, nil
}

// Logger returns a slog.Logger writing to w at the configured level and format.
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(c.LogFormat) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", c.LogFormat)
	}
}
