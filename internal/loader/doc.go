// Package loader opens trained models for conversion.
//
// Supported inputs:
//   - ONNX (.onnx): graph and initializers
//   - SafeTensors (.safetensors): weights and string metadata
//   - Born (.born): native checkpoint format, v1 and v2
//   - GGUF (.gguf): F32, F16 and Q8_0 tensors
//
// Keras files (.keras, .h5) are recognized and rejected with a hint to
// export the model to ONNX first.
//
// Every reader widens float16 and bfloat16 tensors to float32 and reports
// tensor names in a stable order.
//
// Example:
//
//	model, err := loader.Open("model/classifier.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer model.Close()
//
//	if err := loader.Describe(os.Stdout, model); err != nil {
//	    log.Fatal(err)
//	}
package loader
