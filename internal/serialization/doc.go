// Package serialization reads and writes the native .born tensor format,
// one of the model inputs the converter accepts.
//
//	Format Structure (v1):
//	  [4 bytes: Magic "BORN"]
//	  [4 bytes: Version (uint32 LE)]
//	  [4 bytes: Flags (uint32 LE)]
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON metadata]
//	  [Tensor data: raw bytes, 64-byte aligned]
//
//	Format Structure (v2):
//	  [64 bytes: fixed header with header size, data size and SHA-256 of the data]
//	  [Header: JSON metadata]
//	  [Tensor data: raw bytes, 64-byte aligned]
//
// Example usage:
//
//	r, err := serialization.Open("model.born")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	weight, err := r.LoadTensor("fc.weight")
package serialization
