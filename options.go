package embedpack

import (
	"log/slog"

	"github.com/hupe1980/embedpack/internal/fs"
	"github.com/hupe1980/embedpack/internal/npy"
	"github.com/hupe1980/embedpack/internal/resource"
)

// DefaultBatchSize is the number of lines encoded per batch.
const DefaultBatchSize = 32

// DType selects how embedding arrays are stored.
type DType = npy.DType

const (
	// DTypeFloat32 stores embeddings as little-endian float32 ("<f4").
	DTypeFloat32 DType = npy.Float32
	// DTypeFloat16 stores embeddings as little-endian IEEE-754 binary16 ("<f2").
	DTypeFloat16 DType = npy.Float16
)

type options struct {
	batchSize        int
	dtype            DType
	fsys             fs.FileSystem
	resource         *resource.Controller
	metricsCollector MetricsCollector
	logger           *Logger
	writeManifest    bool
	bufferSize       int
}

func defaultOptions() options {
	return options{
		batchSize:        DefaultBatchSize,
		dtype:            DTypeFloat32,
		fsys:             fs.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		writeManifest:    true,
	}
}

// Option configures a Pipeline.
type Option func(*options)

// WithBatchSize sets the number of lines handed to the encoder at once.
// The last batch of a run may be smaller.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// WithDType selects the storage dtype of both embedding arrays.
// Token ids and offsets are always int64.
func WithDType(d DType) Option {
	return func(o *options) {
		o.dtype = d
	}
}

// WithFileSystem replaces the filesystem the arrays are written to.
// Tests use it to inject faults with fs.FaultyFS.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys == nil {
			fsys = fs.Default
		}
		o.fsys = fsys
	}
}

// WithResourceController bounds per-batch memory and throttles array writes.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resource = rc
	}
}

// WithWriteBufferSize sets the per-array write buffer in bytes.
func WithWriteBufferSize(n int) Option {
	return func(o *options) {
		o.bufferSize = n
	}
}

// WithoutManifest skips writing manifest.json after the run.
func WithoutManifest() Option {
	return func(o *options) {
		o.writeManifest = false
	}
}

// WithMetricsCollector configures a metrics collector for monitoring runs.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &embedpack.BasicMetricsCollector{}
//	p, _ := embedpack.New(out, enc, filter, embedpack.WithMetricsCollector(metrics))
//	// ... run ...
//	stats := metrics.GetStats()
//	fmt.Printf("Batches: %d, Avg latency: %dns\n", stats.BatchCount, stats.BatchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for runs.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := embedpack.NewJSONLogger(slog.LevelInfo)
//	p, _ := embedpack.New(out, enc, filter, embedpack.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}
