package onnx

// ONNX protobuf messages, limited to the fields the converter reads.

// ModelProto represents an ONNX model.
type ModelProto struct {
	IRVersion       int64               // IR version (e.g., 7, 8, 9)
	OpsetImport     []OperatorSetID     // Opset version(s)
	ProducerName    string              // Framework name (e.g., "pytorch", "tf2onnx")
	ProducerVersion string              // Framework version
	Domain          string              // Model domain
	ModelVersion    int64               // Model version number
	DocString       string              // Model description
	Graph           *GraphProto         // Computation graph
	MetadataProps   []StringStringEntry // Key-value metadata
}

// GraphProto represents the computation graph.
type GraphProto struct {
	Name         string
	Nodes        []NodeProto
	Inputs       []ValueInfoProto
	Outputs      []ValueInfoProto
	Initializers []TensorProto // Weight tensors
	DocString    string
}

// NodeProto represents a single operation.
type NodeProto struct {
	Name       string
	OpType     string // e.g. "Conv", "MatMul", "Relu"
	Inputs     []string
	Outputs    []string
	Attributes []AttributeProto
	Domain     string // empty for the default domain
}

// TensorProto represents an initializer.
//
// Exactly one of the payload fields is normally populated. RawData is what
// current exporters emit; the typed fields are the legacy encoding.
type TensorProto struct {
	Name         string
	DataType     int32
	Dims         []int64
	RawData      []byte
	FloatData    []float32
	Int32Data    []int32 // also carries int8/uint8/bool/float16 values
	Int64Data    []int64
	DoubleData   []float64
	DataLocation int32               // DataLocationDefault or DataLocationExternal
	ExternalData []StringStringEntry // location/offset/length when external
}

// ValueInfoProto describes a graph input or output.
type ValueInfoProto struct {
	Name string
	Type *TypeProto
}

// TypeProto describes a value type. Only tensor types are decoded.
type TypeProto struct {
	TensorType *TensorTypeProto
}

// TensorTypeProto describes tensor shape and element type.
type TensorTypeProto struct {
	ElemType int32
	Shape    *TensorShapeProto
}

// TensorShapeProto describes tensor dimensions.
type TensorShapeProto struct {
	Dims []DimensionProto
}

// DimensionProto describes a single dimension.
type DimensionProto struct {
	DimValue int64  // Static dimension value (e.g., 224 for image size)
	DimParam string // Symbolic dimension name (e.g., "batch_size")
}

// AttributeProto represents a node attribute.
type AttributeProto struct {
	Name    string
	Type    int32
	F       float32
	I       int64
	S       []byte
	Floats  []float32
	Ints    []int64
	Strings [][]byte
}

// OperatorSetID identifies an opset version.
type OperatorSetID struct {
	Domain  string
	Version int64
}

// StringStringEntry represents key-value metadata.
type StringStringEntry struct {
	Key   string
	Value string
}

// ONNX data types (TensorProto.DataType).
const (
	TensorProtoUndefined  = 0
	TensorProtoFloat      = 1  // float32
	TensorProtoUint8      = 2  // uint8
	TensorProtoInt8       = 3  // int8
	TensorProtoUint16     = 4  // uint16
	TensorProtoInt16      = 5  // int16
	TensorProtoInt32      = 6  // int32
	TensorProtoInt64      = 7  // int64
	TensorProtoString     = 8  // string
	TensorProtoBool       = 9  // bool
	TensorProtoFloat16    = 10 // float16
	TensorProtoDouble     = 11 // float64
	TensorProtoUint32     = 12 // uint32
	TensorProtoUint64     = 13 // uint64
	TensorProtoComplex64  = 14 // complex64
	TensorProtoComplex128 = 15 // complex128
	TensorProtoBfloat16   = 16 // bfloat16
)

// TensorProto.DataLocation values.
const (
	DataLocationDefault  = 0
	DataLocationExternal = 1
)

// ONNX attribute types (AttributeProto.Type).
const (
	AttributeProtoUndefined = 0
	AttributeProtoFloat     = 1
	AttributeProtoInt       = 2
	AttributeProtoString    = 3
	AttributeProtoTensor    = 4
	AttributeProtoGraph     = 5
	AttributeProtoFloats    = 6
	AttributeProtoInts      = 7
	AttributeProtoStrings   = 8
)

// DataTypeName returns the ONNX name of a TensorProto data type.
func DataTypeName(dt int32) string {
	switch dt {
	case TensorProtoFloat:
		return "FLOAT"
	case TensorProtoUint8:
		return "UINT8"
	case TensorProtoInt8:
		return "INT8"
	case TensorProtoUint16:
		return "UINT16"
	case TensorProtoInt16:
		return "INT16"
	case TensorProtoInt32:
		return "INT32"
	case TensorProtoInt64:
		return "INT64"
	case TensorProtoString:
		return "STRING"
	case TensorProtoBool:
		return "BOOL"
	case TensorProtoFloat16:
		return "FLOAT16"
	case TensorProtoDouble:
		return "DOUBLE"
	case TensorProtoUint32:
		return "UINT32"
	case TensorProtoUint64:
		return "UINT64"
	case TensorProtoComplex64:
		return "COMPLEX64"
	case TensorProtoComplex128:
		return "COMPLEX128"
	case TensorProtoBfloat16:
		return "BFLOAT16"
	default:
		return "UNDEFINED"
	}
}
