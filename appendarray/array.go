package appendarray

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/embedpack/internal/f16"
	"github.com/hupe1980/embedpack/internal/fs"
	"github.com/hupe1980/embedpack/internal/npy"
	"github.com/hupe1980/embedpack/internal/resource"
)

type state int

const (
	stateOpen state = iota
	stateClosed
	stateAborted
)

// Array is an append-only .npy file. It is not safe for concurrent use.
type Array struct {
	path   string
	f      fs.File
	w      *bufio.Writer
	dtype  npy.DType
	ndim   int
	width  int
	rows   int64
	hdrLen int

	ctx context.Context
	rc  *resource.Controller

	scratch []byte
	err     error // sticky write error
	state   state
}

// Create opens path for appending, removing any existing file first.
func Create(fsys fs.FileSystem, path string, opts ...Option) (*Array, error) {
	o := options{
		dtype:      npy.Float32,
		bufferSize: defaultBufferSize,
		ctx:        context.Background(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.dtype.Valid() {
		return nil, fmt.Errorf("appendarray: %s: %w: dtype %q", path, npy.ErrUnsupported, o.dtype)
	}
	if o.width < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWidth, o.width)
	}
	if fsys == nil {
		fsys = fs.Default
	}

	ndim := 2
	if o.dtype == npy.Int64 {
		ndim = 1
		o.width = 0
	}

	if err := fs.RemoveIfExists(fsys, path); err != nil {
		return nil, fmt.Errorf("appendarray: remove %s: %w", path, err)
	}
	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("appendarray: create %s: %w", path, err)
	}

	a := &Array{
		path:   path,
		f:      f,
		w:      bufio.NewWriterSize(f, o.bufferSize),
		dtype:  o.dtype,
		ndim:   ndim,
		width:  o.width,
		hdrLen: npy.ReservedLen(o.dtype, ndim),
		ctx:    o.ctx,
		rc:     o.rc,
	}

	hdr, err := a.header()
	if err == nil {
		_, err = a.w.Write(hdr)
	}
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("appendarray: write header %s: %w", path, err)
	}
	return a, nil
}

// Path returns the file path of the array.
func (a *Array) Path() string { return a.path }

// DType returns the on-disk element type.
func (a *Array) DType() npy.DType { return a.dtype }

// Rows returns the number of rows appended so far.
func (a *Array) Rows() int64 { return a.rows }

// Width returns the row width, or 0 while it is still unknown. Int64 arrays
// always report 0.
func (a *Array) Width() int { return a.width }

// Shape returns the current logical shape.
func (a *Array) Shape() []int64 {
	if a.ndim == 1 {
		return []int64{a.rows}
	}
	return []int64{a.rows, int64(a.width)}
}

func (a *Array) header() ([]byte, error) {
	return npy.Header{DType: a.dtype, Shape: a.Shape()}.Encode(a.hdrLen)
}

func (a *Array) usable() error {
	if a.state != stateOpen {
		return ErrClosed
	}
	return a.err
}

// AppendFloat32 appends rows to a float array. All rows must share the array
// width.
func (a *Array) AppendFloat32(rows [][]float32) error {
	if err := a.usable(); err != nil {
		return err
	}
	if a.ndim != 2 {
		return fmt.Errorf("%w: float rows into %s array", ErrWrongDType, a.dtype)
	}
	if len(rows) == 0 {
		return nil
	}

	width := a.width
	if width == 0 {
		width = len(rows[0])
		if width == 0 {
			return fmt.Errorf("%w: %s: empty first row", ErrInvalidWidth, a.path)
		}
	}
	for _, r := range rows {
		if len(r) != width {
			return &ErrDimensionMismatch{Target: a.path, Expected: width, Actual: len(r)}
		}
	}

	buf := a.scratch[:0]
	for _, r := range rows {
		if a.dtype == npy.Float16 {
			buf = f16.AppendLE(buf, r)
		} else {
			buf = npy.AppendFloat32(buf, r)
		}
	}
	a.scratch = buf

	if err := a.write(buf); err != nil {
		return err
	}
	a.width = width
	a.rows += int64(len(rows))
	return nil
}

// AppendInt64 appends values to an int64 array.
func (a *Array) AppendInt64(vals []int64) error {
	if err := a.usable(); err != nil {
		return err
	}
	if a.dtype != npy.Int64 {
		return fmt.Errorf("%w: int64 values into %s array", ErrWrongDType, a.dtype)
	}
	if len(vals) == 0 {
		return nil
	}

	a.scratch = npy.AppendInt64(a.scratch[:0], vals)
	if err := a.write(a.scratch); err != nil {
		return err
	}
	a.rows += int64(len(vals))
	return nil
}

func (a *Array) write(p []byte) error {
	if err := a.rc.AcquireIO(a.ctx, len(p)); err != nil {
		return fmt.Errorf("appendarray: %s: %w", a.path, err)
	}
	if _, err := a.w.Write(p); err != nil {
		a.err = fmt.Errorf("appendarray: write %s: %w", a.path, err)
		return a.err
	}
	return nil
}

// Close flushes buffered rows, rewrites the header with the final shape,
// syncs and closes the file. It is idempotent and a no-op after Abort.
func (a *Array) Close() error {
	if a.state != stateOpen {
		return nil
	}
	a.state = stateClosed

	if a.err != nil {
		_ = a.f.Close()
		return a.err
	}

	err := a.finish()
	if cerr := a.f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("appendarray: close %s: %w", a.path, cerr)
	}
	return err
}

func (a *Array) finish() error {
	if err := a.w.Flush(); err != nil {
		return fmt.Errorf("appendarray: flush %s: %w", a.path, err)
	}
	hdr, err := a.header()
	if err != nil {
		return fmt.Errorf("appendarray: %s: %w", a.path, err)
	}
	if len(hdr) != a.hdrLen {
		return fmt.Errorf("appendarray: %s: header grew to %d bytes, reserved %d", a.path, len(hdr), a.hdrLen)
	}
	if _, err := a.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("appendarray: seek %s: %w", a.path, err)
	}
	if _, err := a.f.Write(hdr); err != nil {
		return fmt.Errorf("appendarray: rewrite header %s: %w", a.path, err)
	}
	if err := a.f.Sync(); err != nil {
		return fmt.Errorf("appendarray: sync %s: %w", a.path, err)
	}
	return nil
}

// Abort releases the file handle without finalizing the header. Buffered
// rows are discarded. It is idempotent and a no-op after Close.
func (a *Array) Abort() error {
	if a.state != stateOpen {
		return nil
	}
	a.state = stateAborted
	return a.f.Close()
}

// WriteInt64 writes vals as a complete one-dimensional <i8 array. The data
// goes to a temporary sibling first and is renamed over path, so path never
// holds a partial array.
func WriteInt64(fsys fs.FileSystem, path string, vals []int64) (err error) {
	if fsys == nil {
		fsys = fs.Default
	}
	hdr, err := npy.Header{DType: npy.Int64, Shape: []int64{int64(len(vals))}}.Encode(0)
	if err != nil {
		return fmt.Errorf("appendarray: %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := fs.RemoveIfExists(fsys, tmp); err != nil {
		return fmt.Errorf("appendarray: remove %s: %w", tmp, err)
	}
	f, err := fsys.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("appendarray: create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			_ = fsys.Remove(tmp)
		}
	}()

	data := npy.AppendInt64(hdr, vals)
	if _, werr := f.Write(data); werr != nil {
		_ = f.Close()
		return fmt.Errorf("appendarray: write %s: %w", tmp, werr)
	}
	if serr := f.Sync(); serr != nil {
		_ = f.Close()
		return fmt.Errorf("appendarray: sync %s: %w", tmp, serr)
	}
	if cerr := f.Close(); cerr != nil {
		return fmt.Errorf("appendarray: close %s: %w", tmp, cerr)
	}
	if rerr := fsys.Rename(tmp, path); rerr != nil {
		return fmt.Errorf("appendarray: rename %s: %w", path, rerr)
	}
	return nil
}

// IsDimensionMismatch reports whether err carries an *ErrDimensionMismatch.
func IsDimensionMismatch(err error) bool {
	var dm *ErrDimensionMismatch
	return errors.As(err, &dm)
}
