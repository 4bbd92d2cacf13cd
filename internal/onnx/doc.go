// Package onnx decodes ONNX model files.
//
// ONNX (Open Neural Network Exchange) models are protobuf messages. This
// package carries a small wire-format decoder for the parts of the schema
// the converter needs: the graph, its nodes and attributes, value infos and
// initializers.
//
// Initializer payloads may come from raw_data or from the typed fields
// (float_data, int32_data, int64_data, double_data). Models that keep their
// weights in side files (external data) are rejected with ErrExternalData.
//
// Example usage:
//
//	model, err := onnx.ParseFile("classifier.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for i := range model.Graph.Initializers {
//	    w, err := onnx.ToRawTensor(&model.Graph.Initializers[i])
//	    ...
//	}
package onnx
