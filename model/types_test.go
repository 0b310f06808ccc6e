package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodingValidate(t *testing.T) {
	good := Encoding{
		TokenIDs:        [][]uint64{{1, 2}, {}},
		TokenEmbeddings: [][][]float32{{{1}, {2}}, {}},
		TextEmbeddings:  [][]float32{{1}, {0}},
	}
	assert.NoError(t, good.Validate(2))
	assert.Equal(t, 2, good.Len())
	assert.Equal(t, 2, good.NumTokens())

	assert.ErrorIs(t, good.Validate(3), ErrMalformedEncoding)

	misaligned := good
	misaligned.TokenEmbeddings = [][][]float32{{{1}}, {}}
	assert.ErrorIs(t, misaligned.Validate(2), ErrMalformedEncoding)
}

func TestFilteredValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      Filtered
		lines   int
		wantErr bool
	}{
		{"ok", Filtered{Counts: []int{1, 0, 1}, VocabIDs: []int64{1, 2}, Embeddings: [][]float32{{1}, {2}}}, 3, false},
		{"empty", Filtered{Counts: []int{0}}, 1, false},
		{"wrong line count", Filtered{Counts: []int{1}, VocabIDs: []int64{1}, Embeddings: [][]float32{{1}}}, 2, true},
		{"negative", Filtered{Counts: []int{-1, 1}}, 2, true},
		{"sum mismatch", Filtered{Counts: []int{2}, VocabIDs: []int64{1}, Embeddings: [][]float32{{1}}}, 1, true},
		{"unaligned embeddings", Filtered{Counts: []int{1}, VocabIDs: []int64{1}}, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate(tt.lines)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInconsistentFilter)
				return
			}
			assert.NoError(t, err)
		})
	}
}
