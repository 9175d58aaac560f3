//go:build !windows

package paddle2onnx

import (
	goruntime "runtime"

	"github.com/ebitengine/purego"
)

func defaultLibraryName() string {
	if goruntime.GOOS == "darwin" {
		return "libpaddle2onnx_c.dylib"
	}
	return "libpaddle2onnx_c.so"
}

func openLibrary(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

func closeLibrary(handle uintptr) error {
	return purego.Dlclose(handle)
}
