// Package onnxproto reads the top-level fields of a serialized ONNX
// ModelProto without decoding the tensors it carries.
package onnxproto

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrNotONNX is returned when data does not start like a serialized ModelProto.
var ErrNotONNX = errors.New("data is not a serialized ONNX model")

// ModelProto field numbers.
const (
	fieldIRVersion       protowire.Number = 1
	fieldProducerName    protowire.Number = 2
	fieldProducerVersion protowire.Number = 3
	fieldDomain          protowire.Number = 4
	fieldModelVersion    protowire.Number = 5
	fieldDocString       protowire.Number = 6
	fieldGraph           protowire.Number = 7
	fieldOpsetImport     protowire.Number = 8
)

// LeadingMarker is the first byte of a ModelProto produced by the ONNX
// serializer: field 1 (ir_version) with varint wire type.
const LeadingMarker byte = 0x08

// OpsetImport is one entry of ModelProto.opset_import.
type OpsetImport struct {
	Domain  string
	Version int64
}

// Header summarizes a ModelProto.
type Header struct {
	IRVersion       int64
	ProducerName    string
	ProducerVersion string
	Domain          string
	ModelVersion    int64
	DocString       string
	GraphName       string
	GraphInputs     []string
	GraphOutputs    []string
	OpsetImports    []OpsetImport
}

// Opset returns the version imported for the default ONNX domain, or 0.
func (h *Header) Opset() int64 {
	for _, imp := range h.OpsetImports {
		if imp.Domain == "" || imp.Domain == "ai.onnx" {
			return imp.Version
		}
	}
	return 0
}

// HasLeadingMarker reports whether data starts with the ir_version tag.
func HasLeadingMarker(data []byte) bool {
	return len(data) > 0 && data[0] == LeadingMarker
}

// ReadHeader parses the top-level ModelProto fields of data.
func ReadHeader(data []byte) (*Header, error) {
	if !HasLeadingMarker(data) {
		return nil, ErrNotONNX
	}

	h := &Header{}
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldIRVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			h.IRVersion = int64(v)
			return n, nil
		case num == fieldModelVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			h.ModelVersion = int64(v)
			return n, nil
		case typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			switch num {
			case fieldProducerName:
				h.ProducerName = string(v)
			case fieldProducerVersion:
				h.ProducerVersion = string(v)
			case fieldDomain:
				h.Domain = string(v)
			case fieldDocString:
				h.DocString = string(v)
			case fieldGraph:
				if err := readGraph(v, h); err != nil {
					return 0, err
				}
			case fieldOpsetImport:
				imp, err := readOpsetImport(v)
				if err != nil {
					return 0, err
				}
				h.OpsetImports = append(h.OpsetImports, imp)
			}
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotONNX, err)
	}
	return h, nil
}

// GraphProto field numbers used by readGraph.
const (
	graphFieldName   protowire.Number = 2
	graphFieldInput  protowire.Number = 11
	graphFieldOutput protowire.Number = 12
)

func readGraph(data []byte, h *Header) error {
	return walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		switch num {
		case graphFieldName:
			h.GraphName = string(v)
		case graphFieldInput, graphFieldOutput:
			name, err := readValueInfoName(v)
			if err != nil {
				return 0, err
			}
			if num == graphFieldInput {
				h.GraphInputs = append(h.GraphInputs, name)
			} else {
				h.GraphOutputs = append(h.GraphOutputs, name)
			}
		}
		return n, nil
	})
}

func readValueInfoName(data []byte) (string, error) {
	var name string
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			name = string(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return name, err
}

func readOpsetImport(data []byte) (OpsetImport, error) {
	var imp OpsetImport
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			imp.Domain = string(v)
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			imp.Version = int64(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return imp, err
}

// walk iterates the fields of one message. fn consumes the field value and
// returns the number of bytes used, or a negative protowire error code.
func walk(data []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		m, err := fn(num, typ, data)
		if err != nil {
			return err
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		data = data[m:]
	}
	return nil
}
