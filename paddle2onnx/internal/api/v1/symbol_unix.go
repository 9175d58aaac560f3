//go:build !windows

package v1

import "github.com/ebitengine/purego"

func openSymbol(libraryHandle uintptr, name string) (uintptr, error) {
	return purego.Dlsym(libraryHandle, name)
}
