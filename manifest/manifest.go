// Package manifest describes a finished dataset: its run parameters and the
// shape, size and CRC32-C checksum of every array file.
//
// The manifest is written last, so its presence marks a complete dataset.
// Its content depends only on the data, which keeps re-runs over the same
// input byte-identical.
package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/embedpack/blobstore"
	"github.com/hupe1980/embedpack/codec"
	"github.com/hupe1980/embedpack/internal/fs"
	"github.com/hupe1980/embedpack/internal/hash"
	"github.com/hupe1980/embedpack/internal/npy"
)

const (
	FileName = "manifest.json"
	// CurrentVersion is the version of the manifest format.
	CurrentVersion = 1
)

var (
	// ErrIncompatibleVersion is returned when the manifest version is not supported.
	ErrIncompatibleVersion = errors.New("incompatible manifest version")

	// ErrNotFound is returned when the manifest file does not exist.
	ErrNotFound = errors.New("manifest not found")
)

// Manifest summarizes one pipeline run.
type Manifest struct {
	Version   int        `json:"version"`
	Codec     string     `json:"codec"`
	DType     npy.DType  `json:"dtype"`
	Dimension int        `json:"dimension"`
	BatchSize int        `json:"batch_size"`
	Documents int64      `json:"documents"`
	Tokens    int64      `json:"tokens"`
	Files     []FileInfo `json:"files"`
}

// FileInfo describes one array file.
type FileInfo struct {
	Name   string    `json:"name"`
	DType  npy.DType `json:"dtype"`
	Shape  []int64   `json:"shape"`
	Size   int64     `json:"size"`
	CRC32C uint32    `json:"crc32c"`
	// Compression names the codec the stored object is compressed with.
	// Empty means the object is stored as is under Name.
	Compression string `json:"compression,omitempty"`
	// Stored is the object name when it differs from Name.
	Stored string `json:"stored,omitempty"`
}

// Object returns the name the file is stored under.
func (f FileInfo) Object() string {
	if f.Stored != "" {
		return f.Stored
	}
	return f.Name
}

// File returns the entry for name.
func (m *Manifest) File(name string) (FileInfo, bool) {
	for _, f := range m.Files {
		if f.Name == name {
			return f, true
		}
	}
	return FileInfo{}, false
}

// Describe reads the .npy header of the file at path and checksums it.
func Describe(fsys fs.FileSystem, path string) (FileInfo, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return FileInfo{}, fmt.Errorf("manifest: open %s: %w", path, err)
	}
	defer f.Close()

	hdr, _, err := npy.ReadHeader(f)
	if err != nil {
		return FileInfo{}, fmt.Errorf("manifest: %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return FileInfo{}, fmt.Errorf("manifest: seek %s: %w", path, err)
	}
	sum, size, err := hash.ReaderCRC32C(f)
	if err != nil {
		return FileInfo{}, fmt.Errorf("manifest: checksum %s: %w", path, err)
	}
	return FileInfo{
		Name:   filepath.Base(path),
		DType:  hdr.DType,
		Shape:  hdr.Shape,
		Size:   size,
		CRC32C: sum,
	}, nil
}

// Encode renders m as indented JSON with the default codec.
func Encode(m *Manifest) ([]byte, error) {
	m.Version = CurrentVersion
	m.Codec = codec.Default.Name()

	var (
		data []byte
		err  error
	)
	if ic, ok := codec.Default.(interface{ MarshalIndent(any) ([]byte, error) }); ok {
		data, err = ic.MarshalIndent(m)
	} else {
		data, err = codec.Default.Marshal(m)
	}
	if err != nil {
		return nil, fmt.Errorf("manifest: encode: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a manifest and checks its version.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := codec.Default.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: %d (expected %d)", ErrIncompatibleVersion, m.Version, CurrentVersion)
	}
	return &m, nil
}

// Write stores m as dir/manifest.json via a temporary file and rename.
func Write(fsys fs.FileSystem, dir string, m *Manifest) error {
	if fsys == nil {
		fsys = fs.Default
	}
	data, err := Encode(m)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, FileName)
	tmpPath := path + ".tmp"
	f, err := fsys.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("manifest: create %s: %w", tmpPath, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = fsys.Remove(tmpPath)
		return fmt.Errorf("manifest: write %s: %w", tmpPath, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = fsys.Remove(tmpPath)
		return fmt.Errorf("manifest: sync %s: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		_ = fsys.Remove(tmpPath)
		return fmt.Errorf("manifest: close %s: %w", tmpPath, err)
	}
	if err := fsys.Rename(tmpPath, path); err != nil {
		_ = fsys.Remove(tmpPath)
		return fmt.Errorf("manifest: rename %s: %w", path, err)
	}
	return nil
}

// Load reads dir/manifest.json.
func Load(fsys fs.FileSystem, dir string) (*Manifest, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(filepath.Join(dir, FileName), os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("manifest: read: %w", err)
	}
	return Decode(buf.Bytes())
}

// LoadStore reads the manifest from a blob store.
func LoadStore(ctx context.Context, store blobstore.BlobStore) (*Manifest, error) {
	data, err := blobstore.ReadFile(ctx, store, FileName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return Decode(data)
}
