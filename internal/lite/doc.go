// Package lite encodes and decodes .blite artifacts, the compact model
// format loaded by the mobile runtime.
//
// An artifact is a FlatBuffer (schema/blite.fbs) with file identifier
// "BLIT". It stores every tensor in its own 16-byte aligned buffer, the
// graph operators of the source model and a string metadata table. Buffer
// 0 is always empty so that a zero buffer index means "no data".
//
// Example:
//
//	buf, err := lite.Encode(&lite.Artifact{
//	    SourceFormat: "ONNX",
//	    Optimization: "default",
//	    Tensors:      tensors,
//	})
//	if err != nil {
//	    return err
//	}
//
//	a, err := lite.Decode(buf)
package lite
