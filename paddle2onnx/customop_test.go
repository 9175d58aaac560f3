package paddle2onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributeValueAccessors(t *testing.T) {
	v := IntAttr(7)
	n, ok := v.Int()
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)
	_, ok = v.Float()
	assert.False(t, ok)
	assert.Equal(t, AttributeInt, v.Type())
	assert.Zero(t, v.Len())

	s, ok := StringAttr("det").Str()
	assert.True(t, ok)
	assert.Equal(t, "det", s)

	b, ok := BoolAttr(true).Bool()
	assert.True(t, ok)
	assert.True(t, b)

	f, ok := FloatAttr(0.5).Float()
	assert.True(t, ok)
	assert.Equal(t, 0.5, f)

	var zero AttributeValue
	n, ok = zero.Int()
	assert.True(t, ok)
	assert.Zero(t, n)
}

func TestAttributeValueIsImmutable(t *testing.T) {
	src := []int64{1, 2, 3}
	v := IntsAttr(src...)
	src[0] = 100

	got, ok := v.Ints()
	require.True(t, ok)
	assert.Equal(t, []int64{1, 2, 3}, got)

	got[1] = 200
	again, _ := v.Ints()
	assert.Equal(t, []int64{1, 2, 3}, again)

	names := StringsAttr("a", "b")
	list, _ := names.Strings()
	list[0] = "z"
	list, _ = names.Strings()
	assert.Equal(t, []string{"a", "b"}, list)
	assert.Equal(t, 2, names.Len())
}

func TestAttributeValueEqual(t *testing.T) {
	assert.True(t, IntsAttr().Equal(IntsAttr()))
	assert.True(t, FloatsAttr(1, 2).Equal(FloatsAttr(1, 2)))
	assert.False(t, IntsAttr().Equal(FloatsAttr()))
	assert.False(t, IntAttr(1).Equal(IntAttr(2)))
	assert.False(t, IntAttr(1).Equal(BoolAttr(true)))
	assert.False(t, StringsAttr("a").Equal(StringsAttr("a", "b")))
}

func TestAttributeValueString(t *testing.T) {
	assert.Equal(t, "-3", IntAttr(-3).String())
	assert.Equal(t, "0.25", FloatAttr(0.25).String())
	assert.Equal(t, "true", BoolAttr(true).String())
	assert.Equal(t, `"x"`, StringAttr("x").String())
	assert.Equal(t, "[1 2]", IntsAttr(1, 2).String())
	assert.Equal(t, `["a" "b"]`, StringsAttr("a", "b").String())
}

func TestParseAttributeType(t *testing.T) {
	for name, want := range map[string]AttributeType{
		"int":     AttributeInt,
		"FLOAT":   AttributeFloat,
		"string":  AttributeString,
		"bool":    AttributeBool,
		"ints":    AttributeInts,
		"floats":  AttributeFloats,
		"Strings": AttributeStrings,
	} {
		got, err := ParseAttributeType(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseAttributeType("tensor")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCustomOperatorValidate(t *testing.T) {
	valid := CustomOperator{
		OpType: "relu6",
		Attributes: []Attribute{
			{Name: "min", Value: FloatAttr(0)},
			{Name: "max", Value: FloatAttr(6)},
		},
	}
	assert.NoError(t, valid.validate())

	tests := []struct {
		name string
		op   CustomOperator
	}{
		{"empty type", CustomOperator{}},
		{"unnamed attribute", CustomOperator{OpType: "op", Attributes: []Attribute{{Value: IntAttr(1)}}}},
		{"duplicate attribute", CustomOperator{OpType: "op", Attributes: []Attribute{
			{Name: "a", Value: IntAttr(1)},
			{Name: "a", Value: StringAttr("x")},
		}}},
		{"unknown type", CustomOperator{OpType: "op", Attributes: []Attribute{
			{Name: "a", Value: AttributeValue{typ: 42}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.op.validate(), ErrInvalidArgument)
		})
	}
}

func TestConversionOptionsValidate(t *testing.T) {
	var nilOpts *ConversionOptions
	assert.NoError(t, nilOpts.validate())
	assert.NoError(t, DefaultConversionOptions().validate())
	assert.NoError(t, (&ConversionOptions{OpsetVersion: 0}).validate())

	assert.ErrorIs(t, (&ConversionOptions{OpsetVersion: -7}).validate(), ErrInvalidArgument)
	assert.ErrorIs(t, (&ConversionOptions{OpsetVersion: 1 << 40}).validate(), ErrInvalidArgument)
}

func TestConversionOptionsAccessors(t *testing.T) {
	opts := &ConversionOptions{OpsetVersion: 16, EnableOptimize: Bool(false)}
	assert.Equal(t, int32(16), opts.opsetVersion())
	assert.False(t, opts.enableOptimize())
	assert.True(t, opts.enableONNXChecker())
	assert.True(t, opts.autoUpgradeOpset())
	assert.Equal(t, DefaultDeployBackend, opts.deployBackend())

	var nilOpts *ConversionOptions
	assert.Equal(t, int32(DefaultOpsetVersion), nilOpts.opsetVersion())
	assert.Nil(t, nilOpts.customOps())
	assert.False(t, nilOpts.verbose())
	assert.False(t, nilOpts.enableExperimentalOp())
}
