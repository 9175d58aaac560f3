//go:build windows

package v1

import "syscall"

func openSymbol(libraryHandle uintptr, name string) (uintptr, error) {
	return syscall.GetProcAddress(syscall.Handle(libraryHandle), name)
}
