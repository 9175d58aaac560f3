// Package cstrings converts between Go strings and NUL-terminated C strings
// owned by either side of the native boundary.
package cstrings

import "unsafe"

// CStringToString converts a C-style null-terminated string to a Go string.
// The bytes are copied, so the result stays valid after the native buffer is
// released.
func CStringToString(ptr *byte) string {
	if ptr == nil {
		return ""
	}
	var length int
	for {
		if *(*byte)(unsafe.Add(unsafe.Pointer(ptr), length)) == 0 {
			break
		}
		length++
	}
	return string(unsafe.Slice(ptr, length))
}

// CStringArrayToStrings converts count pointers starting at ptrs into Go
// strings. Elements are read as pointers, so the element width follows the
// platform pointer size.
func CStringArrayToStrings(ptrs **byte, count int) []string {
	if ptrs == nil || count <= 0 {
		return []string{}
	}
	elems := unsafe.Slice(ptrs, count)
	out := make([]string, count)
	for i, p := range elems {
		out[i] = CStringToString(p)
	}
	return out
}

// StringToBytes returns s as a NUL-terminated byte slice suitable for passing
// to C after pinning.
func StringToBytes(s string) []byte {
	return append([]byte(s), 0)
}
