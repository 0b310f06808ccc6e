// Package dataset reads an embedding dataset back and verifies it.
//
// A dataset is four .npy arrays plus an optional manifest.json in a blob
// store. Local stores are memory-mapped; remote or compressed arrays are
// read fully into memory.
package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/hupe1980/embedpack/blobstore"
	"github.com/hupe1980/embedpack/internal/compress"
	"github.com/hupe1980/embedpack/internal/conv"
	"github.com/hupe1980/embedpack/internal/f16"
	"github.com/hupe1980/embedpack/internal/hash"
	"github.com/hupe1980/embedpack/internal/npy"
	"github.com/hupe1980/embedpack/manifest"
)

// Array file names.
const (
	TokenEmbeddingsFile = "token_embeddings.npy"
	TextEmbeddingsFile  = "text_embeddings.npy"
	TokensFile          = "tokens.npy"
	OffsetsFile         = "offsets.npy"
)

// Files lists the array files in the order they are opened.
var Files = []string{TokenEmbeddingsFile, TextEmbeddingsFile, TokensFile, OffsetsFile}

var (
	// ErrCorrupt is returned when a dataset violates its structural invariants.
	ErrCorrupt = errors.New("dataset: corrupt")

	// ErrOutOfRange is returned for a document index outside the dataset.
	ErrOutOfRange = errors.New("dataset: document index out of range")
)

type array struct {
	name   string
	header npy.Header
	raw    []byte // whole file, header included
	data   []byte // payload
}

func (a *array) rows() int64 {
	if len(a.header.Shape) == 0 {
		return 0
	}
	return a.header.Shape[0]
}

func (a *array) width() int {
	if len(a.header.Shape) < 2 {
		return 0
	}
	w, err := conv.Int64ToInt(a.header.Shape[1])
	if err != nil {
		return 0
	}
	return w
}

func (a *array) row(i int64) []float32 {
	w := a.width()
	size := a.header.DType.Size()
	off := i * int64(w*size)
	src := a.data[off : off+int64(w*size)]
	out := make([]float32, w)
	if a.header.DType == npy.Float16 {
		f16.DecodeLE(out, src)
	} else {
		npy.DecodeFloat32(out, src)
	}
	return out
}

// Dataset is a read-only view of a finished run.
type Dataset struct {
	manifest        *manifest.Manifest
	tokenEmbeddings *array
	textEmbeddings  *array
	tokens          []int64
	offsets         []int64
	tokensArr       *array
	offsetsArr      *array
	blobs           []blobstore.Blob
}

// OpenDir opens the dataset stored in a local directory.
func OpenDir(ctx context.Context, dir string) (*Dataset, error) {
	return Open(ctx, blobstore.NewLocalStore(dir))
}

// Open reads the dataset in store. The manifest is used when present to
// locate compressed objects.
func Open(ctx context.Context, store blobstore.BlobStore) (*Dataset, error) {
	m, err := manifest.LoadStore(ctx, store)
	if err != nil && !errors.Is(err, manifest.ErrNotFound) {
		return nil, err
	}

	d := &Dataset{manifest: m}
	arrays := make([]*array, len(Files))
	for i, name := range Files {
		fi := manifest.FileInfo{Name: name}
		if m != nil {
			if entry, ok := m.File(name); ok {
				fi = entry
			}
		}
		a, err := d.load(ctx, store, fi)
		if err != nil {
			_ = d.Close()
			return nil, err
		}
		arrays[i] = a
	}
	d.tokenEmbeddings, d.textEmbeddings, d.tokensArr, d.offsetsArr = arrays[0], arrays[1], arrays[2], arrays[3]

	if err := d.checkShapes(); err != nil {
		_ = d.Close()
		return nil, err
	}
	d.tokens = make([]int64, d.tokensArr.rows())
	npy.DecodeInt64(d.tokens, d.tokensArr.data)
	d.offsets = make([]int64, d.offsetsArr.rows())
	npy.DecodeInt64(d.offsets, d.offsetsArr.data)
	return d, nil
}

func (d *Dataset) load(ctx context.Context, store blobstore.BlobStore, fi manifest.FileInfo) (*array, error) {
	blob, err := store.Open(ctx, fi.Object())
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", fi.Object(), err)
	}

	var raw []byte
	if fi.Compression == "" {
		raw, err = blobstore.ReadAll(ctx, blob)
		if _, mapped := blob.(blobstore.Mappable); mapped && err == nil {
			d.blobs = append(d.blobs, blob)
		} else {
			_ = blob.Close()
		}
	} else {
		raw, err = decompress(ctx, blob, compress.Type(fi.Compression))
		_ = blob.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", fi.Object(), err)
	}

	hdr, n, err := npy.DecodeHeader(raw)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", fi.Name, err)
	}
	if int64(len(raw)-n) != hdr.DataLen() {
		return nil, fmt.Errorf("%w: %s: payload is %d bytes, shape %v needs %d",
			ErrCorrupt, fi.Name, len(raw)-n, hdr.Shape, hdr.DataLen())
	}
	return &array{name: fi.Name, header: hdr, raw: raw, data: raw[n:]}, nil
}

func decompress(ctx context.Context, blob blobstore.Blob, t compress.Type) ([]byte, error) {
	packed, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		return nil, err
	}
	r, err := compress.NewReader(t, bytes.NewReader(packed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (d *Dataset) checkShapes() error {
	for _, a := range []*array{d.tokenEmbeddings, d.textEmbeddings} {
		if len(a.header.Shape) != 2 || a.header.DType == npy.Int64 {
			return fmt.Errorf("%w: %s: want 2-D float array, got %s %v", ErrCorrupt, a.name, a.header.DType, a.header.Shape)
		}
	}
	for _, a := range []*array{d.tokensArr, d.offsetsArr} {
		if len(a.header.Shape) != 1 || a.header.DType != npy.Int64 {
			return fmt.Errorf("%w: %s: want 1-D <i8 array, got %s %v", ErrCorrupt, a.name, a.header.DType, a.header.Shape)
		}
	}
	if d.offsetsArr.rows() < 1 {
		return fmt.Errorf("%w: %s is empty", ErrCorrupt, OffsetsFile)
	}
	return nil
}

// Close releases memory-mapped arrays. The dataset must not be used afterwards.
func (d *Dataset) Close() error {
	var errs []error
	for _, b := range d.blobs {
		errs = append(errs, b.Close())
	}
	d.blobs = nil
	return errors.Join(errs...)
}

// Manifest returns the run manifest, or nil when the dataset has none.
func (d *Dataset) Manifest() *manifest.Manifest { return d.manifest }

// Documents returns the number of documents.
func (d *Dataset) Documents() int { return len(d.offsets) - 1 }

// NumTokens returns the number of surviving tokens.
func (d *Dataset) NumTokens() int64 { return int64(len(d.tokens)) }

// Dimension returns the embedding width.
func (d *Dataset) Dimension() int { return d.tokenEmbeddings.width() }

// DType returns the storage type of the embeddings.
func (d *Dataset) DType() npy.DType { return d.tokenEmbeddings.header.DType }

// Offsets returns the document boundaries.
func (d *Dataset) Offsets() []int64 { return d.offsets }

// Span returns the token row range [start, end) of document i.
func (d *Dataset) Span(i int) (start, end int64, err error) {
	if i < 0 || i >= d.Documents() {
		return 0, 0, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, d.Documents())
	}
	start, end = d.offsets[i], d.offsets[i+1]
	if start < 0 || end < start || end > int64(len(d.tokens)) {
		return 0, 0, fmt.Errorf("%w: document %d spans [%d, %d) of %d tokens", ErrCorrupt, i, start, end, len(d.tokens))
	}
	return start, end, nil
}

// Tokens returns the vocabulary ids of document i.
func (d *Dataset) Tokens(i int) ([]int64, error) {
	start, end, err := d.Span(i)
	if err != nil {
		return nil, err
	}
	return d.tokens[start:end], nil
}

// TokenEmbeddings returns the token vectors of document i.
func (d *Dataset) TokenEmbeddings(i int) ([][]float32, error) {
	start, end, err := d.Span(i)
	if err != nil {
		return nil, err
	}
	if end > d.tokenEmbeddings.rows() {
		return nil, fmt.Errorf("%w: %s has %d rows, document %d ends at %d",
			ErrCorrupt, TokenEmbeddingsFile, d.tokenEmbeddings.rows(), i, end)
	}
	out := make([][]float32, 0, end-start)
	for r := start; r < end; r++ {
		out = append(out, d.tokenEmbeddings.row(r))
	}
	return out, nil
}

// TextEmbedding returns the aggregate vector of document i.
func (d *Dataset) TextEmbedding(i int) ([]float32, error) {
	if i < 0 || i >= d.Documents() {
		return nil, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, d.Documents())
	}
	if int64(i) >= d.textEmbeddings.rows() {
		return nil, fmt.Errorf("%w: %s has %d rows", ErrCorrupt, TextEmbeddingsFile, d.textEmbeddings.rows())
	}
	return d.textEmbeddings.row(int64(i)), nil
}

// Verify checks the structural invariants of the dataset and, when a
// manifest is present, the recorded sizes, shapes and checksums.
func (d *Dataset) Verify() error {
	off := d.offsets
	if off[0] != 0 {
		return fmt.Errorf("%w: offsets[0] = %d", ErrCorrupt, off[0])
	}
	for i := 1; i < len(off); i++ {
		if off[i] < off[i-1] {
			return fmt.Errorf("%w: offsets decrease at %d (%d < %d)", ErrCorrupt, i, off[i], off[i-1])
		}
	}
	last := off[len(off)-1]
	if last != d.tokensArr.rows() || last != d.tokenEmbeddings.rows() {
		return fmt.Errorf("%w: offsets end at %d, tokens has %d rows, token embeddings %d",
			ErrCorrupt, last, d.tokensArr.rows(), d.tokenEmbeddings.rows())
	}
	if docs := int64(d.Documents()); d.textEmbeddings.rows() != docs {
		return fmt.Errorf("%w: %d documents but %d text embeddings", ErrCorrupt, docs, d.textEmbeddings.rows())
	}
	if tw, xw := d.tokenEmbeddings.width(), d.textEmbeddings.width(); tw != xw {
		return fmt.Errorf("%w: token embedding width %d, text embedding width %d", ErrCorrupt, tw, xw)
	}
	for i, id := range d.tokens {
		if id < 1 {
			return fmt.Errorf("%w: token %d has vocabulary id %d", ErrCorrupt, i, id)
		}
	}
	if d.manifest != nil {
		return d.verifyManifest()
	}
	return nil
}

func (d *Dataset) verifyManifest() error {
	m := d.manifest
	if m.Documents != int64(d.Documents()) || m.Tokens != d.NumTokens() {
		return fmt.Errorf("%w: manifest records %d documents and %d tokens, found %d and %d",
			ErrCorrupt, m.Documents, m.Tokens, d.Documents(), d.NumTokens())
	}
	if m.Dimension != d.Dimension() {
		return fmt.Errorf("%w: manifest dimension %d, arrays have %d", ErrCorrupt, m.Dimension, d.Dimension())
	}
	for _, a := range []*array{d.tokenEmbeddings, d.textEmbeddings, d.tokensArr, d.offsetsArr} {
		fi, ok := m.File(a.name)
		if !ok {
			return fmt.Errorf("%w: manifest has no entry for %s", ErrCorrupt, a.name)
		}
		if fi.Size != int64(len(a.raw)) {
			return fmt.Errorf("%w: %s is %d bytes, manifest records %d", ErrCorrupt, a.name, len(a.raw), fi.Size)
		}
		if fi.DType != a.header.DType || !slices.Equal(fi.Shape, a.header.Shape) {
			return fmt.Errorf("%w: %s is %s %v, manifest records %s %v",
				ErrCorrupt, a.name, a.header.DType, a.header.Shape, fi.DType, fi.Shape)
		}
		if sum := hash.CRC32C(a.raw); sum != fi.CRC32C {
			return fmt.Errorf("%w: %s checksum %08x, manifest records %08x", ErrCorrupt, a.name, sum, fi.CRC32C)
		}
	}
	return nil
}

