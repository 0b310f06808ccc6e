package appendarray

import (
	"context"

	"github.com/hupe1980/embedpack/internal/npy"
	"github.com/hupe1980/embedpack/internal/resource"
)

const defaultBufferSize = 1 << 20

type options struct {
	width      int
	dtype      npy.DType
	bufferSize int
	rc         *resource.Controller
	ctx        context.Context
}

// Option configures an Array.
type Option func(*options)

// WithWidth fixes the row width up front. Without it the width is taken from
// the first non-empty append.
func WithWidth(d int) Option {
	return func(o *options) {
		o.width = d
	}
}

// WithDType sets the on-disk element type. Defaults to npy.Float32.
func WithDType(d npy.DType) Option {
	return func(o *options) {
		o.dtype = d
	}
}

// WithBufferSize sets the size of the write buffer in front of the file.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// WithResourceController throttles appends through rc's IO limiter. ctx bounds
// the waits.
func WithResourceController(ctx context.Context, rc *resource.Controller) Option {
	return func(o *options) {
		o.ctx = ctx
		o.rc = rc
	}
}
