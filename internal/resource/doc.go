// Package resource implements the Controller for run-wide resource limits.
//
// The Controller governs three resource types:
//
//   - Memory: per-batch accounting with a hard, fail-fast limit
//   - Concurrency: slots for background uploads when publishing to a remote store
//   - IO: token-bucket throttling of array appends and uploads
//
// # Memory Management
//
// AcquireMemory is non-blocking and returns ErrMemoryLimitExceeded if the
// limit would be exceeded. The pipeline reserves the estimated size of one
// encoded batch before appending it and releases it afterwards:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30,
//	})
//
//	if err := rc.AcquireMemory(batchBytes); err != nil {
//	    return err // batch too large for the configured limit
//	}
//	defer rc.ReleaseMemory(batchBytes)
//
// # IO Rate Limiting
//
//	rc := resource.NewController(resource.Config{
//	    IOLimitBytesPerSec: 100 << 20, // 100MB/s
//	})
//
//	w := resource.NewRateLimitedWriter(ctx, file, rc)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully; they become no-ops.
package resource
