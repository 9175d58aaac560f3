//go:build windows

package paddle2onnx

import "syscall"

func defaultLibraryName() string {
	return "paddle2onnx_c.dll"
}

func openLibrary(path string) (uintptr, error) {
	handle, err := syscall.LoadLibrary(path)
	return uintptr(handle), err
}

func closeLibrary(handle uintptr) error {
	return syscall.FreeLibrary(syscall.Handle(handle))
}
