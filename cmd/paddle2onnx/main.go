package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/benedoc-inc/paddle2onnx/internal/cli"
)

func main() {
	app := cli.NewApp(afero.NewOsFs(), os.Stdout, os.Stderr)
	if err := cli.NewRootCmd(app).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "paddle2onnx: %v\n", err)
		os.Exit(1)
	}
}
