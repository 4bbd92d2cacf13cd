package onnx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// Protobuf wire types.
const (
	wireVarint = 0 // int32, int64, uint32, uint64, bool, enum
	wire64Bit  = 1 // fixed64, double
	wireBytes  = 2 // string, bytes, embedded messages, packed repeated fields
	wire32Bit  = 5 // fixed32, float
)

var errVarintOverflow = errors.New("varint overflow")

// ParseFile parses an ONNX model from file.
func ParseFile(path string) (*ModelProto, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}

// Parse parses an ONNX model from bytes.
func Parse(data []byte) (*ModelProto, error) {
	m := &ModelProto{}
	if err := decodeModel(&wire{data: data}, m); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return m, nil
}

// wire is a cursor over one protobuf message.
type wire struct {
	data []byte
	pos  int
}

// fields calls fn for every field in the message. fn must consume the
// field value, usually through one of the read helpers or skip.
func (w *wire) fields(fn func(field, wt int) error) error {
	for w.pos < len(w.data) {
		tag, err := w.varint()
		if err != nil {
			return err
		}
		if tag>>3 == 0 {
			return errors.New("invalid field number 0")
		}
		if err := fn(int(tag>>3), int(tag&0x7)); err != nil { //nolint:gosec // G115: field numbers fit in int
			return err
		}
	}
	return nil
}

func (w *wire) varint() (uint64, error) {
	var result uint64
	for shift := uint(0); ; shift += 7 {
		if shift >= 64 {
			return 0, errVarintOverflow
		}
		if w.pos >= len(w.data) {
			return 0, io.ErrUnexpectedEOF
		}
		b := w.data[w.pos]
		w.pos++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
	}
}

func (w *wire) int64() (int64, error) {
	v, err := w.varint()
	return int64(v), err //nolint:gosec // G115: protobuf int64 is two's complement in a varint
}

func (w *wire) int32() (int32, error) {
	v, err := w.varint()
	return int32(v), err //nolint:gosec // G115: protobuf int32 is two's complement in a varint
}

func (w *wire) bytes() ([]byte, error) {
	n, err := w.varint()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(w.data)-w.pos) {
		return nil, io.ErrUnexpectedEOF
	}
	end := w.pos + int(n) //nolint:gosec // G115: bounded by len(w.data) above
	b := w.data[w.pos:end]
	w.pos = end
	return b, nil
}

func (w *wire) string() (string, error) {
	b, err := w.bytes()
	return string(b), err
}

// message returns a cursor over an embedded message.
func (w *wire) message() (*wire, error) {
	b, err := w.bytes()
	if err != nil {
		return nil, err
	}
	return &wire{data: b}, nil
}

func (w *wire) fixed32() (uint32, error) {
	if len(w.data)-w.pos < 4 {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint32(w.data[w.pos:])
	w.pos += 4
	return v, nil
}

func (w *wire) fixed64() (uint64, error) {
	if len(w.data)-w.pos < 8 {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint64(w.data[w.pos:])
	w.pos += 8
	return v, nil
}

func (w *wire) skip(wt int) error {
	var err error
	switch wt {
	case wireVarint:
		_, err = w.varint()
	case wire64Bit:
		_, err = w.fixed64()
	case wireBytes:
		_, err = w.bytes()
	case wire32Bit:
		_, err = w.fixed32()
	default:
		err = fmt.Errorf("unknown wire type: %d", wt)
	}
	return err
}

// repeated decodes a repeated scalar field in either packed or unpacked
// encoding. scalarWire is the wire type of a single element.
func (w *wire) repeated(wt, scalarWire int, each func(*wire) error) error {
	if wt != wireBytes || scalarWire == wireBytes {
		return each(w)
	}
	packed, err := w.message()
	if err != nil {
		return err
	}
	for packed.pos < len(packed.data) {
		if err := each(packed); err != nil {
			return err
		}
	}
	return nil
}

func (w *wire) int64s(wt int, dst *[]int64) error {
	return w.repeated(wt, wireVarint, func(r *wire) error {
		v, err := r.int64()
		*dst = append(*dst, v)
		return err
	})
}

func (w *wire) int32s(wt int, dst *[]int32) error {
	return w.repeated(wt, wireVarint, func(r *wire) error {
		v, err := r.int32()
		*dst = append(*dst, v)
		return err
	})
}

func (w *wire) float32s(wt int, dst *[]float32) error {
	return w.repeated(wt, wire32Bit, func(r *wire) error {
		v, err := r.fixed32()
		*dst = append(*dst, math.Float32frombits(v))
		return err
	})
}

func (w *wire) float64s(wt int, dst *[]float64) error {
	return w.repeated(wt, wire64Bit, func(r *wire) error {
		v, err := r.fixed64()
		*dst = append(*dst, math.Float64frombits(v))
		return err
	})
}

// embedded decodes an embedded message with dec and appends it to dst.
func embedded[T any](w *wire, dst *[]T, dec func(*wire, *T) error) error {
	sub, err := w.message()
	if err != nil {
		return err
	}
	var v T
	if err := dec(sub, &v); err != nil {
		return err
	}
	*dst = append(*dst, v)
	return nil
}

func decodeModel(w *wire, m *ModelProto) error {
	return w.fields(func(field, wt int) error {
		var err error
		switch field {
		case 1:
			m.IRVersion, err = w.int64()
		case 2:
			m.ProducerName, err = w.string()
		case 3:
			m.ProducerVersion, err = w.string()
		case 4:
			m.Domain, err = w.string()
		case 5:
			m.ModelVersion, err = w.int64()
		case 6:
			m.DocString, err = w.string()
		case 7:
			var sub *wire
			if sub, err = w.message(); err == nil {
				m.Graph = &GraphProto{}
				err = decodeGraph(sub, m.Graph)
			}
		case 8:
			err = embedded(w, &m.OpsetImport, decodeOpset)
		case 14:
			err = embedded(w, &m.MetadataProps, decodeEntry)
		default:
			err = w.skip(wt)
		}
		return err
	})
}

func decodeGraph(w *wire, g *GraphProto) error {
	return w.fields(func(field, wt int) error {
		var err error
		switch field {
		case 1:
			err = embedded(w, &g.Nodes, decodeNode)
		case 2:
			g.Name, err = w.string()
		case 5:
			err = embedded(w, &g.Initializers, decodeTensor)
		case 10:
			g.DocString, err = w.string()
		case 11:
			err = embedded(w, &g.Inputs, decodeValueInfo)
		case 12:
			err = embedded(w, &g.Outputs, decodeValueInfo)
		default:
			err = w.skip(wt)
		}
		if err != nil {
			return fmt.Errorf("graph field %d: %w", field, err)
		}
		return nil
	})
}

func decodeNode(w *wire, n *NodeProto) error {
	return w.fields(func(field, wt int) error {
		var (
			s   string
			err error
		)
		switch field {
		case 1:
			s, err = w.string()
			n.Inputs = append(n.Inputs, s)
		case 2:
			s, err = w.string()
			n.Outputs = append(n.Outputs, s)
		case 3:
			n.Name, err = w.string()
		case 4:
			n.OpType, err = w.string()
		case 5:
			err = embedded(w, &n.Attributes, decodeAttribute)
		case 7:
			n.Domain, err = w.string()
		default:
			err = w.skip(wt)
		}
		return err
	})
}

func decodeTensor(w *wire, t *TensorProto) error {
	return w.fields(func(field, wt int) error {
		var err error
		switch field {
		case 1:
			err = w.int64s(wt, &t.Dims)
		case 2:
			t.DataType, err = w.int32()
		case 4:
			err = w.float32s(wt, &t.FloatData)
		case 5:
			err = w.int32s(wt, &t.Int32Data)
		case 7:
			err = w.int64s(wt, &t.Int64Data)
		case 8:
			t.Name, err = w.string()
		case 9:
			t.RawData, err = w.bytes()
		case 10:
			err = w.float64s(wt, &t.DoubleData)
		case 13:
			err = embedded(w, &t.ExternalData, decodeEntry)
		case 14:
			t.DataLocation, err = w.int32()
		default:
			err = w.skip(wt)
		}
		return err
	})
}

func decodeValueInfo(w *wire, v *ValueInfoProto) error {
	return w.fields(func(field, wt int) error {
		switch field {
		case 1:
			var err error
			v.Name, err = w.string()
			return err
		case 2:
			sub, err := w.message()
			if err != nil {
				return err
			}
			v.Type = &TypeProto{}
			return decodeType(sub, v.Type)
		default:
			return w.skip(wt)
		}
	})
}

func decodeType(w *wire, t *TypeProto) error {
	return w.fields(func(field, wt int) error {
		if field != 1 {
			return w.skip(wt)
		}
		sub, err := w.message()
		if err != nil {
			return err
		}
		t.TensorType = &TensorTypeProto{}
		return sub.fields(func(field, wt int) error {
			switch field {
			case 1:
				var err error
				t.TensorType.ElemType, err = sub.int32()
				return err
			case 2:
				shape, err := sub.message()
				if err != nil {
					return err
				}
				t.TensorType.Shape = &TensorShapeProto{}
				return shape.fields(func(field, wt int) error {
					if field != 1 {
						return shape.skip(wt)
					}
					return embedded(shape, &t.TensorType.Shape.Dims, decodeDim)
				})
			default:
				return sub.skip(wt)
			}
		})
	})
}

func decodeDim(w *wire, d *DimensionProto) error {
	return w.fields(func(field, wt int) error {
		var err error
		switch field {
		case 1:
			d.DimValue, err = w.int64()
		case 2:
			d.DimParam, err = w.string()
		default:
			err = w.skip(wt)
		}
		return err
	})
}

func decodeAttribute(w *wire, a *AttributeProto) error {
	return w.fields(func(field, wt int) error {
		var err error
		switch field {
		case 1:
			a.Name, err = w.string()
		case 2:
			var bits uint32
			bits, err = w.fixed32()
			a.F = math.Float32frombits(bits)
		case 3:
			a.I, err = w.int64()
		case 4:
			a.S, err = w.bytes()
		case 7:
			err = w.float32s(wt, &a.Floats)
		case 8:
			err = w.int64s(wt, &a.Ints)
		case 9:
			var s []byte
			s, err = w.bytes()
			a.Strings = append(a.Strings, s)
		case 20:
			a.Type, err = w.int32()
		default:
			err = w.skip(wt)
		}
		return err
	})
}

func decodeOpset(w *wire, o *OperatorSetID) error {
	return w.fields(func(field, wt int) error {
		var err error
		switch field {
		case 1:
			o.Domain, err = w.string()
		case 2:
			o.Version, err = w.int64()
		default:
			err = w.skip(wt)
		}
		return err
	})
}

func decodeEntry(w *wire, e *StringStringEntry) error {
	return w.fields(func(field, wt int) error {
		var err error
		switch field {
		case 1:
			e.Key, err = w.string()
		case 2:
			e.Value, err = w.string()
		default:
			err = w.skip(wt)
		}
		return err
	})
}
