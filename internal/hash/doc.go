// Package hash provides CRC32-Castagnoli checksums for output integrity.
//
// Every array file listed in a run manifest carries its CRC32C so a consumer
// can detect truncated or corrupted uploads before slicing documents out of
// the flat token arrays.
//
// For one-shot checksums:
//
//	checksum := hash.CRC32C(data)
//
// For streaming a file:
//
//	sum, size, err := hash.ReaderCRC32C(f)
package hash
