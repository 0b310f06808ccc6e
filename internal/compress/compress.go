// Package compress wraps published array streams in zstd or LZ4 frames.
package compress

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type names a stream compression algorithm.
type Type string

const (
	// None stores streams as is.
	None Type = "none"
	// Zstd uses zstd frames (better ratio).
	Zstd Type = "zstd"
	// LZ4 uses LZ4 frames (faster).
	LZ4 Type = "lz4"
)

// Parse returns the Type named s. The empty string means None.
func Parse(s string) (Type, error) {
	switch Type(s) {
	case "", None:
		return None, nil
	case Zstd, LZ4:
		return Type(s), nil
	default:
		return "", fmt.Errorf("compress: unknown compression %q", s)
	}
}

// Suffix returns the object name suffix for t.
func (t Type) Suffix() string {
	switch t {
	case Zstd:
		return ".zst"
	case LZ4:
		return ".lz4"
	default:
		return ""
	}
}

var zstdDecoderPool sync.Pool

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter returns a writer that compresses into w. Closing it flushes the
// final frame but does not close w.
func NewWriter(t Type, w io.Writer) (io.WriteCloser, error) {
	switch t {
	case "", None:
		return nopWriteCloser{w}, nil
	case Zstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case LZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("compress: unknown compression %q", t)
	}
}

type zstdReader struct {
	dec *zstd.Decoder
}

func (z *zstdReader) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdReader) Close() error {
	if z.dec == nil {
		return nil
	}
	_ = z.dec.Reset(nil)
	zstdDecoderPool.Put(z.dec)
	z.dec = nil
	return nil
}

// NewReader returns a reader that decompresses r.
func NewReader(t Type, r io.Reader) (io.ReadCloser, error) {
	switch t {
	case "", None:
		return io.NopCloser(r), nil
	case Zstd:
		if v := zstdDecoderPool.Get(); v != nil {
			dec := v.(*zstd.Decoder)
			if err := dec.Reset(r); err != nil {
				return nil, err
			}
			return &zstdReader{dec: dec}, nil
		}
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return &zstdReader{dec: dec}, nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("compress: unknown compression %q", t)
	}
}
