package appendarray

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/embedpack/internal/f16"
	"github.com/hupe1980/embedpack/internal/fs"
	"github.com/hupe1980/embedpack/internal/npy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readArray(t *testing.T, path string) (npy.Header, []byte) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	hdr, n, err := npy.DecodeHeader(data)
	require.NoError(t, err)
	require.Equal(t, hdr.DataLen(), int64(len(data)-n), "payload length must match header shape")
	return hdr, data[n:]
}

func TestArray_Float32(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token_embeddings.npy")

	arr, err := Create(fs.Default, path, WithBufferSize(16))
	require.NoError(t, err)
	assert.Equal(t, 0, arr.Width())

	require.NoError(t, arr.AppendFloat32([][]float32{{1, 2, 3}}))
	require.NoError(t, arr.AppendFloat32(nil))
	require.NoError(t, arr.AppendFloat32([][]float32{{4, 5, 6}, {7, 8, 9}}))
	assert.Equal(t, int64(3), arr.Rows())
	assert.Equal(t, 3, arr.Width())
	require.NoError(t, arr.Close())
	require.NoError(t, arr.Close())

	hdr, payload := readArray(t, path)
	assert.Equal(t, npy.Float32, hdr.DType)
	assert.Equal(t, []int64{3, 3}, hdr.Shape)

	got := make([]float32, 9)
	npy.DecodeFloat32(got, payload)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, got)

	assert.ErrorIs(t, arr.AppendFloat32([][]float32{{1, 2, 3}}), ErrClosed)
}

func TestArray_Float16(t *testing.T) {
	path := filepath.Join(t.TempDir(), "text_embeddings.npy")

	arr, err := Create(nil, path, WithDType(npy.Float16), WithWidth(2))
	require.NoError(t, err)
	require.NoError(t, arr.AppendFloat32([][]float32{{0.5, -1}, {2, 0.25}}))
	require.NoError(t, arr.Close())

	hdr, payload := readArray(t, path)
	assert.Equal(t, npy.Float16, hdr.DType)
	assert.Equal(t, []int64{2, 2}, hdr.Shape)

	got := make([]float32, 4)
	f16.DecodeLE(got, payload)
	assert.Equal(t, []float32{0.5, -1, 2, 0.25}, got)
}

func TestArray_Int64(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.npy")

	arr, err := Create(fs.Default, path, WithDType(npy.Int64))
	require.NoError(t, err)
	require.NoError(t, arr.AppendInt64([]int64{1}))
	require.NoError(t, arr.AppendInt64([]int64{2, 3}))
	assert.ErrorIs(t, arr.AppendFloat32([][]float32{{1}}), ErrWrongDType)
	require.NoError(t, arr.Close())

	hdr, payload := readArray(t, path)
	assert.Equal(t, []int64{3}, hdr.Shape)
	got := make([]int64, 3)
	npy.DecodeInt64(got, payload)
	assert.Equal(t, []int64{1, 2, 3}, got)
}

func TestArray_EmptyWithWidth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token_embeddings.npy")

	arr, err := Create(fs.Default, path, WithWidth(8))
	require.NoError(t, err)
	require.NoError(t, arr.Close())

	hdr, payload := readArray(t, path)
	assert.Equal(t, []int64{0, 8}, hdr.Shape)
	assert.Empty(t, payload)
}

func TestArray_ReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.npy")
	require.NoError(t, os.WriteFile(path, make([]byte, 10_000), 0o644))

	arr, err := Create(fs.Default, path, WithDType(npy.Int64))
	require.NoError(t, err)
	require.NoError(t, arr.AppendInt64([]int64{42}))
	require.NoError(t, arr.Close())

	hdr, _ := readArray(t, path)
	assert.Equal(t, []int64{1}, hdr.Shape)
}

func TestArray_DimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token_embeddings.npy")

	arr, err := Create(fs.Default, path, WithWidth(3))
	require.NoError(t, err)
	defer arr.Abort() //nolint:errcheck

	err = arr.AppendFloat32([][]float32{{1, 2, 3}, {1, 2}})
	var dm *ErrDimensionMismatch
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, path, dm.Target)
	assert.Equal(t, 3, dm.Expected)
	assert.Equal(t, 2, dm.Actual)
	assert.True(t, IsDimensionMismatch(err))
	// The rejected batch is not written.
	assert.Equal(t, int64(0), arr.Rows())
}

func TestArray_WriteFault(t *testing.T) {
	dir := t.TempDir()
	ffs := fs.NewFaultyFS(fs.Default)
	ffs.AddRule("token_embeddings", fs.Fault{FailAfterBytes: 256})

	arr, err := Create(ffs, filepath.Join(dir, "token_embeddings.npy"), WithBufferSize(64))
	require.NoError(t, err)

	row := make([]float32, 32)
	var appendErr error
	for range 10 {
		if appendErr = arr.AppendFloat32([][]float32{row}); appendErr != nil {
			break
		}
	}
	require.ErrorIs(t, appendErr, fs.ErrInjected)
	// The error is sticky.
	assert.ErrorIs(t, arr.AppendFloat32([][]float32{row}), fs.ErrInjected)
	assert.ErrorIs(t, arr.Close(), fs.ErrInjected)
}

func TestArray_SyncFault(t *testing.T) {
	dir := t.TempDir()
	ffs := fs.NewFaultyFS(fs.Default)
	ffs.AddRule("text_embeddings", fs.Fault{FailAfterBytes: -1, FailOnSync: true})

	arr, err := Create(ffs, filepath.Join(dir, "text_embeddings.npy"))
	require.NoError(t, err)
	require.NoError(t, arr.AppendFloat32([][]float32{{1}}))
	assert.ErrorIs(t, arr.Close(), fs.ErrInjected)
}

func TestArray_Abort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.npy")

	arr, err := Create(fs.Default, path, WithDType(npy.Int64), WithBufferSize(8))
	require.NoError(t, err)
	require.NoError(t, arr.AppendInt64([]int64{1, 2, 3}))
	require.NoError(t, arr.Abort())
	require.NoError(t, arr.Abort())
	require.NoError(t, arr.Close())

	// The partial file stays with its placeholder header.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	hdr, _, err := npy.DecodeHeader(data)
	require.NoError(t, err)
	assert.Equal(t, []int64{0}, hdr.Shape)

	assert.ErrorIs(t, arr.AppendInt64([]int64{4}), ErrClosed)
}

func TestWriteInt64(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offsets.npy")
	require.NoError(t, WriteInt64(fs.Default, path, []int64{0, 1, 2, 2}))

	hdr, payload := readArray(t, path)
	assert.Equal(t, npy.Int64, hdr.DType)
	assert.Equal(t, []int64{4}, hdr.Shape)
	got := make([]int64, 4)
	npy.DecodeInt64(got, payload)
	assert.Equal(t, []int64{0, 1, 2, 2}, got)

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteInt64_RenameFault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "offsets.npy")
	ffs := fs.NewFaultyFS(fs.Default)
	ffs.AddRule("offsets.npy", fs.Fault{FailAfterBytes: -1, FailOnRename: true})

	err := WriteInt64(ffs, path, []int64{0})
	require.ErrorIs(t, err, fs.ErrInjected)

	for _, p := range []string{path, path + ".tmp"} {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), p)
	}
}
