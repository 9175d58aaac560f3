package paddle2onnx

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// CustomOperator remaps a Paddle operator type to another ONNX operator type
// during conversion, with attribute overrides.
type CustomOperator struct {
	// OpType is the Paddle operator type to substitute.
	OpType string

	// ExportOpType is the operator type written to the ONNX graph.
	// If empty, the native default is kept.
	ExportOpType string

	// Attributes are written on the exported node. Names must be unique.
	Attributes []Attribute
}

// Attribute is one attribute entry of a CustomOperator.
type Attribute struct {
	Name  string
	Value AttributeValue

	// DefaultExported marks attributes the native library exports even when
	// the source operator does not carry them.
	DefaultExported bool
}

func (op *CustomOperator) validate() error {
	if op.OpType == "" {
		return invalidArgument("custom operator type is empty")
	}
	seen := make(map[string]struct{}, len(op.Attributes))
	for i, attr := range op.Attributes {
		if attr.Name == "" {
			return invalidArgument("custom operator %s: attribute %d has no name", op.OpType, i)
		}
		if _, ok := seen[attr.Name]; ok {
			return invalidArgument("custom operator %s: duplicate attribute %q", op.OpType, attr.Name)
		}
		seen[attr.Name] = struct{}{}
		if attr.Value.typ < AttributeInt || attr.Value.typ > AttributeBool {
			return invalidArgument("custom operator %s: attribute %q has unknown type %d", op.OpType, attr.Name, attr.Value.typ)
		}
	}
	return nil
}

// AttributeValue is an immutable tagged value of one of the AttributeType kinds.
// The zero value is the int 0.
type AttributeValue struct {
	typ    AttributeType
	i      int64
	f      float64
	b      bool
	s      string
	ints   []int64
	floats []float64
	strs   []string
}

// IntAttr returns an AttributeInt value.
func IntAttr(v int64) AttributeValue {
	return AttributeValue{typ: AttributeInt, i: v}
}

// FloatAttr returns an AttributeFloat value.
func FloatAttr(v float64) AttributeValue {
	return AttributeValue{typ: AttributeFloat, f: v}
}

// StringAttr returns an AttributeString value.
func StringAttr(v string) AttributeValue {
	return AttributeValue{typ: AttributeString, s: v}
}

// BoolAttr returns an AttributeBool value.
func BoolAttr(v bool) AttributeValue {
	return AttributeValue{typ: AttributeBool, b: v}
}

// IntsAttr returns an AttributeInts value holding a copy of v.
func IntsAttr(v ...int64) AttributeValue {
	return AttributeValue{typ: AttributeInts, ints: slices.Clone(v)}
}

// FloatsAttr returns an AttributeFloats value holding a copy of v.
func FloatsAttr(v ...float64) AttributeValue {
	return AttributeValue{typ: AttributeFloats, floats: slices.Clone(v)}
}

// StringsAttr returns an AttributeStrings value holding a copy of v.
func StringsAttr(v ...string) AttributeValue {
	return AttributeValue{typ: AttributeStrings, strs: slices.Clone(v)}
}

// Type returns the kind of value held.
func (v AttributeValue) Type() AttributeType {
	return v.typ
}

// Int returns the value and whether it is an AttributeInt.
func (v AttributeValue) Int() (int64, bool) {
	return v.i, v.typ == AttributeInt
}

// Float returns the value and whether it is an AttributeFloat.
func (v AttributeValue) Float() (float64, bool) {
	return v.f, v.typ == AttributeFloat
}

// Bool returns the value and whether it is an AttributeBool.
func (v AttributeValue) Bool() (bool, bool) {
	return v.b, v.typ == AttributeBool
}

// Str returns the value and whether it is an AttributeString.
func (v AttributeValue) Str() (string, bool) {
	return v.s, v.typ == AttributeString
}

// Ints returns a copy of the value and whether it is an AttributeInts.
func (v AttributeValue) Ints() ([]int64, bool) {
	return slices.Clone(v.ints), v.typ == AttributeInts
}

// Floats returns a copy of the value and whether it is an AttributeFloats.
func (v AttributeValue) Floats() ([]float64, bool) {
	return slices.Clone(v.floats), v.typ == AttributeFloats
}

// Strings returns a copy of the value and whether it is an AttributeStrings.
func (v AttributeValue) Strings() ([]string, bool) {
	return slices.Clone(v.strs), v.typ == AttributeStrings
}

// Len returns the list length for list kinds and 0 for scalars.
func (v AttributeValue) Len() int {
	switch v.typ {
	case AttributeInts:
		return len(v.ints)
	case AttributeFloats:
		return len(v.floats)
	case AttributeStrings:
		return len(v.strs)
	default:
		return 0
	}
}

// Equal reports whether v and o hold the same kind and value.
func (v AttributeValue) Equal(o AttributeValue) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case AttributeInt:
		return v.i == o.i
	case AttributeFloat:
		return v.f == o.f
	case AttributeBool:
		return v.b == o.b
	case AttributeString:
		return v.s == o.s
	case AttributeInts:
		return slices.Equal(v.ints, o.ints)
	case AttributeFloats:
		return slices.Equal(v.floats, o.floats)
	case AttributeStrings:
		return slices.Equal(v.strs, o.strs)
	}
	return false
}

func (v AttributeValue) String() string {
	switch v.typ {
	case AttributeInt:
		return strconv.FormatInt(v.i, 10)
	case AttributeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case AttributeBool:
		return strconv.FormatBool(v.b)
	case AttributeString:
		return strconv.Quote(v.s)
	case AttributeInts:
		return fmt.Sprint(v.ints)
	case AttributeFloats:
		return fmt.Sprint(v.floats)
	case AttributeStrings:
		quoted := make([]string, len(v.strs))
		for i, s := range v.strs {
			quoted[i] = strconv.Quote(s)
		}
		return "[" + strings.Join(quoted, " ") + "]"
	}
	return fmt.Sprintf("AttributeValue(%d)", v.typ)
}

// ParseAttributeType parses the names used in configuration files:
// int, float, string, bool, ints, floats, strings.
func ParseAttributeType(name string) (AttributeType, error) {
	switch strings.ToLower(name) {
	case "int":
		return AttributeInt, nil
	case "float":
		return AttributeFloat, nil
	case "string":
		return AttributeString, nil
	case "bool":
		return AttributeBool, nil
	case "ints":
		return AttributeInts, nil
	case "floats":
		return AttributeFloats, nil
	case "strings":
		return AttributeStrings, nil
	}
	return 0, invalidArgument("unknown attribute type %q", name)
}
