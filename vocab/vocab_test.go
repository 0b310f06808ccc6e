package vocab

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hupe1980/embedpack/internal/fs"
	"github.com/hupe1980/embedpack/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	v, err := Load(strings.NewReader("# animals\ncat\n\n  dog  \n#bird\nfish\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, v.Len())
	assert.Equal(t, []string{"cat", "dog", "fish"}, v.Words())

	id, ok := v.ID("dog")
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)

	w, ok := v.Word(1)
	assert.True(t, ok)
	assert.Equal(t, "cat", w)

	for _, bad := range []int64{0, 4, -1} {
		_, ok := v.Word(bad)
		assert.False(t, ok, bad)
	}
}

func TestLoad_Duplicate(t *testing.T) {
	_, err := Load(strings.NewReader("cat\ndog\ncat\n"))
	assert.ErrorIs(t, err, ErrDuplicateWord)
	assert.Contains(t, err.Error(), "line 3")

	_, err = New([]string{"a", "a"})
	assert.ErrorIs(t, err, ErrDuplicateWord)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte("cat\ndog\n"), 0o644))

	v, err := LoadFile(fs.Default, path)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Len())

	_, err = LoadFile(nil, filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// mapResolver resolves single words without spaces to their position in a list.
type mapResolver map[string]uint64

func (m mapResolver) Resolve(word string) (uint64, bool) {
	id, ok := m[word]
	return id, ok
}

func TestFilter(t *testing.T) {
	v, err := New([]string{"cat", "dog", "ice cream", "Cat"})
	require.NoError(t, err)

	r := mapResolver{"the": 10, "cat": 11, "dog": 12, "Cat": 11}
	f := NewFilter(v, r)
	assert.Equal(t, 2, f.Size())
	assert.Equal(t, []string{"ice cream"}, f.Unresolved())
	assert.Equal(t, []string{"Cat"}, f.Shadowed())

	cat := []float32{1, 0}
	dog := []float32{0, 1}
	the := []float32{0.5, 0.5}

	out, err := f.Filter(
		[][]uint64{{10, 11}, {10, 12}, {10}},
		[][][]float32{{the, cat}, {the, dog}, {the}},
	)
	require.NoError(t, err)
	require.NoError(t, out.Validate(3))
	assert.Equal(t, []int{1, 1, 0}, out.Counts)
	assert.Equal(t, []int64{1, 2}, out.VocabIDs)
	assert.Equal(t, [][]float32{cat, dog}, out.Embeddings)
}

func TestFilter_Empty(t *testing.T) {
	v, err := New(nil)
	require.NoError(t, err)
	f := NewFilter(v, mapResolver{})

	out, err := f.Filter(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, out.Counts)
	assert.Empty(t, out.VocabIDs)
}

func TestFilter_Malformed(t *testing.T) {
	v, err := New([]string{"cat"})
	require.NoError(t, err)
	f := NewFilter(v, mapResolver{"cat": 1})

	_, err = f.Filter([][]uint64{{1}}, nil)
	assert.ErrorIs(t, err, model.ErrMalformedEncoding)

	_, err = f.Filter([][]uint64{{1, 1}}, [][][]float32{{{1}}})
	assert.ErrorIs(t, err, model.ErrMalformedEncoding)
}
