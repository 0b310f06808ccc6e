// Package npy reads and writes the header of NumPy .npy (format 1.0) files.
//
// Only little-endian, C-ordered arrays of the dtypes the encoder emits are
// supported. Headers can be reserved at a fixed size so an append-only writer
// can rewrite the final shape in place once the row count is known.
package npy

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/hupe1980/embedpack/internal/conv"
)

// DType is a NumPy array-protocol type string.
type DType string

const (
	Float32 DType = "<f4"
	Float16 DType = "<f2"
	Int64   DType = "<i8"
)

// Size returns the width of one element in bytes, or 0 for unknown dtypes.
func (d DType) Size() int {
	switch d {
	case Float32:
		return 4
	case Float16:
		return 2
	case Int64:
		return 8
	default:
		return 0
	}
}

// Valid reports whether d is supported.
func (d DType) Valid() bool { return d.Size() > 0 }

var magic = []byte("\x93NUMPY")

const (
	prefixLen = len("\x93NUMPY") + 2 + 2 // magic, version, uint16 header length
	alignment = 64
)

var (
	// ErrInvalidHeader is returned when a file does not start with a valid .npy header.
	ErrInvalidHeader = errors.New("npy: invalid header")

	// ErrUnsupported is returned for dtypes, versions or layouts this package does not handle.
	ErrUnsupported = errors.New("npy: unsupported array")
)

// Header describes the array stored after the header bytes.
type Header struct {
	DType DType
	Shape []int64
}

// Len returns the number of elements described by the shape.
func (h Header) Len() int64 {
	n := int64(1)
	for _, d := range h.Shape {
		n *= d
	}
	return n
}

// DataLen returns the number of payload bytes described by the header.
func (h Header) DataLen() int64 {
	return h.Len() * int64(h.DType.Size())
}

func (h Header) dict() string {
	var sb strings.Builder
	sb.WriteString("{'descr': '")
	sb.WriteString(string(h.DType))
	sb.WriteString("', 'fortran_order': False, 'shape': (")
	for i, d := range h.Shape {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.FormatInt(d, 10))
	}
	if len(h.Shape) == 1 {
		sb.WriteByte(',')
	}
	sb.WriteString("), }")
	return sb.String()
}

// Encode renders the header. The result is padded with spaces to a multiple
// of 64 bytes and to at least minLen bytes.
func (h Header) Encode(minLen int) ([]byte, error) {
	if !h.DType.Valid() {
		return nil, fmt.Errorf("%w: dtype %q", ErrUnsupported, h.DType)
	}
	dict := h.dict()
	total := prefixLen + len(dict) + 1
	if total < minLen {
		total = minLen
	}
	if rem := total % alignment; rem != 0 {
		total += alignment - rem
	}
	hdrLen := total - prefixLen
	if hdrLen > math.MaxUint16 {
		return nil, fmt.Errorf("%w: header too large", ErrUnsupported)
	}

	buf := make([]byte, 0, total)
	buf = append(buf, magic...)
	buf = append(buf, 1, 0)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(hdrLen))
	buf = append(buf, dict...)
	for len(buf) < total-1 {
		buf = append(buf, ' ')
	}
	buf = append(buf, '\n')
	return buf, nil
}

// ReservedLen returns a header length large enough for any shape with ndim
// dimensions of dtype d.
func ReservedLen(d DType, ndim int) int {
	shape := make([]int64, ndim)
	for i := range shape {
		shape[i] = math.MaxInt64
	}
	b, err := Header{DType: d, Shape: shape}.Encode(0)
	if err != nil {
		return 0
	}
	return len(b)
}

// ReadHeader parses a header from r and returns it together with its total
// length in bytes. The reader is left positioned at the first payload byte.
func ReadHeader(r io.Reader) (Header, int, error) {
	prefix := make([]byte, prefixLen)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return Header{}, 0, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if !bytes.Equal(prefix[:len(magic)], magic) {
		return Header{}, 0, fmt.Errorf("%w: bad magic", ErrInvalidHeader)
	}
	if prefix[6] != 1 {
		return Header{}, 0, fmt.Errorf("%w: format version %d.%d", ErrUnsupported, prefix[6], prefix[7])
	}
	hdrLen := int(binary.LittleEndian.Uint16(prefix[8:]))
	raw := make([]byte, hdrLen)
	if _, err := io.ReadFull(r, raw); err != nil {
		return Header{}, 0, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	h, err := parseDict(string(raw))
	if err != nil {
		return Header{}, 0, err
	}
	return h, prefixLen + hdrLen, nil
}

// DecodeHeader parses a header from the beginning of data.
func DecodeHeader(data []byte) (Header, int, error) {
	return ReadHeader(bytes.NewReader(data))
}

func parseDict(s string) (Header, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return Header{}, fmt.Errorf("%w: malformed dict", ErrInvalidHeader)
	}

	descr, err := field(s, "descr")
	if err != nil {
		return Header{}, err
	}
	d := DType(strings.Trim(descr, "'\""))
	if !d.Valid() {
		return Header{}, fmt.Errorf("%w: dtype %q", ErrUnsupported, d)
	}

	order, err := field(s, "fortran_order")
	if err != nil {
		return Header{}, err
	}
	if order != "False" {
		return Header{}, fmt.Errorf("%w: fortran order", ErrUnsupported)
	}

	rawShape, err := field(s, "shape")
	if err != nil {
		return Header{}, err
	}
	rawShape = strings.TrimSuffix(strings.TrimPrefix(rawShape, "("), ")")
	var shape []int64
	for _, part := range strings.Split(rawShape, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSuffix(part, "L"), 10, 64)
		if err != nil || v < 0 {
			return Header{}, fmt.Errorf("%w: shape %q", ErrInvalidHeader, rawShape)
		}
		shape = append(shape, v)
	}
	if _, err := conv.ShapeBytes(shape, d.Size()); err != nil {
		return Header{}, fmt.Errorf("%w: shape %q: %w", ErrInvalidHeader, rawShape, err)
	}
	return Header{DType: d, Shape: shape}, nil
}

// field extracts the raw value of key from a Python dict literal.
func field(s, key string) (string, error) {
	i := strings.Index(s, "'"+key+"'")
	if i < 0 {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidHeader, key)
	}
	rest := strings.TrimSpace(s[i+len(key)+2:])
	if !strings.HasPrefix(rest, ":") {
		return "", fmt.Errorf("%w: malformed %s", ErrInvalidHeader, key)
	}
	rest = strings.TrimSpace(rest[1:])
	if strings.HasPrefix(rest, "(") {
		end := strings.IndexByte(rest, ')')
		if end < 0 {
			return "", fmt.Errorf("%w: unterminated %s", ErrInvalidHeader, key)
		}
		return rest[:end+1], nil
	}
	end := strings.IndexAny(rest, ",}")
	if end < 0 {
		return "", fmt.Errorf("%w: malformed %s", ErrInvalidHeader, key)
	}
	return strings.TrimSpace(rest[:end]), nil
}
