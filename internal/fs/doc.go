// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: an open file with read/write/seek/sync capabilities
//   - [FileSystem]: filesystem operations (open, remove, rename, stat, mkdir)
//
// # Implementations
//
//   - [LocalFS]: production implementation using the standard os package
//   - [FaultyFS]: test utility that injects I/O errors (disk full, failing
//     sync, failing close, failing rename)
//
// # Usage
//
// Production code should use fs.Default (which is [LocalFS]):
//
//	file, err := fs.Default.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
//
// Tests can inject [FaultyFS] to simulate a full disk on one array file:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("token_embeddings", fs.Fault{FailAfterBytes: 4096})
//
// Filesystem operations intentionally take no context.Context. Local writes
// are not interruptible at the syscall level; remote stores live in the
// blobstore package, which is context-aware.
package fs
