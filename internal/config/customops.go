package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/benedoc-inc/paddle2onnx/paddle2onnx"
)

// customOpsFile is the YAML layout of a custom operator file:
//
//	custom_ops:
//	  - op_type: multiclass_nms3
//	    export_op_type: MultiClassNMS
//	    attributes:
//	      - name: keep_top_k
//	        value: 100
//	      - name: score_threshold
//	        type: float
//	        value: 0
//	        default_exported: true
type customOpsFile struct {
	CustomOps []customOpEntry `yaml:"custom_ops"`
}

type customOpEntry struct {
	OpType       string           `yaml:"op_type"`
	ExportOpType string           `yaml:"export_op_type"`
	Attributes   []attributeEntry `yaml:"attributes"`
}

type attributeEntry struct {
	Name string `yaml:"name"`
	// Type is optional for non-empty values; it is inferred from the YAML tag.
	Type            string    `yaml:"type"`
	Value           yaml.Node `yaml:"value"`
	DefaultExported bool      `yaml:"default_exported"`
}

// LoadCustomOps reads a custom operator file.
func LoadCustomOps(fs afero.Fs, path string) ([]paddle2onnx.CustomOperator, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read custom operators %s: %w", path, err)
	}
	ops, err := ParseCustomOps(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse custom operators %s: %w", path, err)
	}
	return ops, nil
}

// ParseCustomOps decodes the YAML custom operator layout.
func ParseCustomOps(data []byte) ([]paddle2onnx.CustomOperator, error) {
	var file customOpsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	ops := make([]paddle2onnx.CustomOperator, len(file.CustomOps))
	for i, entry := range file.CustomOps {
		if entry.OpType == "" {
			return nil, fmt.Errorf("custom operator %d: op_type is required", i)
		}
		op := paddle2onnx.CustomOperator{
			OpType:       entry.OpType,
			ExportOpType: entry.ExportOpType,
		}
		for _, attr := range entry.Attributes {
			value, err := decodeAttribute(attr)
			if err != nil {
				return nil, fmt.Errorf("custom operator %s: attribute %q: %w", entry.OpType, attr.Name, err)
			}
			op.Attributes = append(op.Attributes, paddle2onnx.Attribute{
				Name:            attr.Name,
				Value:           value,
				DefaultExported: attr.DefaultExported,
			})
		}
		ops[i] = op
	}
	return ops, nil
}

func decodeAttribute(attr attributeEntry) (paddle2onnx.AttributeValue, error) {
	typ, err := attributeType(attr)
	if err != nil {
		return paddle2onnx.AttributeValue{}, err
	}

	node := &attr.Value
	switch typ {
	case paddle2onnx.AttributeInt:
		var v int64
		err = node.Decode(&v)
		return paddle2onnx.IntAttr(v), err
	case paddle2onnx.AttributeFloat:
		var v float64
		err = node.Decode(&v)
		return paddle2onnx.FloatAttr(v), err
	case paddle2onnx.AttributeBool:
		var v bool
		err = node.Decode(&v)
		return paddle2onnx.BoolAttr(v), err
	case paddle2onnx.AttributeString:
		var v string
		err = node.Decode(&v)
		return paddle2onnx.StringAttr(v), err
	case paddle2onnx.AttributeInts:
		var v []int64
		err = decodeList(node, &v)
		return paddle2onnx.IntsAttr(v...), err
	case paddle2onnx.AttributeFloats:
		var v []float64
		err = decodeList(node, &v)
		return paddle2onnx.FloatsAttr(v...), err
	case paddle2onnx.AttributeStrings:
		var v []string
		err = decodeList(node, &v)
		return paddle2onnx.StringsAttr(v...), err
	}
	return paddle2onnx.AttributeValue{}, fmt.Errorf("unsupported type %d", typ)
}

func decodeList(node *yaml.Node, v any) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: expected a list", node.Line)
	}
	return node.Decode(v)
}

// attributeType returns the declared type, or infers it from the node tag.
func attributeType(attr attributeEntry) (paddle2onnx.AttributeType, error) {
	if attr.Type != "" {
		return paddle2onnx.ParseAttributeType(attr.Type)
	}

	node := &attr.Value
	switch node.Kind {
	case 0:
		return 0, errors.New("value is required")
	case yaml.ScalarNode:
		return scalarType(node)
	case yaml.SequenceNode:
		if len(node.Content) == 0 {
			return 0, errors.New("type is required for an empty list")
		}
		elem, err := scalarType(node.Content[0])
		if err != nil {
			return 0, err
		}
		switch elem {
		case paddle2onnx.AttributeInt:
			// A list mixing ints and floats is a float list.
			for _, n := range node.Content[1:] {
				if n.ShortTag() == "!!float" {
					return paddle2onnx.AttributeFloats, nil
				}
			}
			return paddle2onnx.AttributeInts, nil
		case paddle2onnx.AttributeFloat:
			return paddle2onnx.AttributeFloats, nil
		case paddle2onnx.AttributeString:
			return paddle2onnx.AttributeStrings, nil
		}
		return 0, fmt.Errorf("line %d: lists of %s are not supported", node.Line, node.Content[0].ShortTag())
	}
	return 0, fmt.Errorf("line %d: unsupported value", node.Line)
}

func scalarType(node *yaml.Node) (paddle2onnx.AttributeType, error) {
	if node.Kind != yaml.ScalarNode {
		return 0, fmt.Errorf("line %d: nested values are not supported", node.Line)
	}
	switch node.ShortTag() {
	case "!!int":
		return paddle2onnx.AttributeInt, nil
	case "!!float":
		return paddle2onnx.AttributeFloat, nil
	case "!!bool":
		return paddle2onnx.AttributeBool, nil
	case "!!str":
		return paddle2onnx.AttributeString, nil
	}
	return 0, fmt.Errorf("line %d: unsupported value %s", node.Line, node.ShortTag())
}
