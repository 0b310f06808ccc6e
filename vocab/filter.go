package vocab

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/embedpack/model"
)

// Resolver maps a vocabulary word to the raw token id an encoder emits for it.
type Resolver interface {
	Resolve(word string) (uint64, bool)
}

// Filter keeps the tokens whose raw id belongs to the vocabulary.
// It is safe for concurrent use after construction.
type Filter struct {
	members    *roaring64.Bitmap
	vocabIDs   map[uint64]int64
	unresolved []string
	shadowed   []string
}

// NewFilter resolves every word of v through r. Words that do not map to a
// single token are skipped; words that map to a raw id already claimed by
// an earlier word are shadowed by it.
func NewFilter(v *Vocabulary, r Resolver) *Filter {
	f := &Filter{
		members:  roaring64.New(),
		vocabIDs: make(map[uint64]int64, v.Len()),
	}
	for i, w := range v.words {
		raw, ok := r.Resolve(w)
		if !ok {
			f.unresolved = append(f.unresolved, w)
			continue
		}
		if f.members.Contains(raw) {
			f.shadowed = append(f.shadowed, w)
			continue
		}
		f.members.Add(raw)
		f.vocabIDs[raw] = int64(i + 1)
	}
	f.members.RunOptimize()
	return f
}

// Size returns the number of raw ids the filter keeps.
func (f *Filter) Size() int { return int(f.members.GetCardinality()) }

// Unresolved returns the words the resolver could not map to one token.
func (f *Filter) Unresolved() []string { return f.unresolved }

// Shadowed returns the words that resolved to an already claimed raw id.
func (f *Filter) Shadowed() []string { return f.shadowed }

// Lookup returns the vocabulary id of a raw token id.
func (f *Filter) Lookup(raw uint64) (int64, bool) {
	if !f.members.Contains(raw) {
		return 0, false
	}
	return f.vocabIDs[raw], true
}

// Filter keeps in-vocabulary tokens in encounter order and reports how many
// survive per line. Surviving embeddings are shared with the input.
func (f *Filter) Filter(ids [][]uint64, embeddings [][][]float32) (model.Filtered, error) {
	if len(ids) != len(embeddings) {
		return model.Filtered{}, fmt.Errorf("%w: %d token id rows, %d embedding rows",
			model.ErrMalformedEncoding, len(ids), len(embeddings))
	}
	out := model.Filtered{Counts: make([]int, len(ids))}
	for i, row := range ids {
		if len(row) != len(embeddings[i]) {
			return model.Filtered{}, fmt.Errorf("%w: line %d has %d ids and %d embeddings",
				model.ErrMalformedEncoding, i, len(row), len(embeddings[i]))
		}
		for j, raw := range row {
			id, ok := f.Lookup(raw)
			if !ok {
				continue
			}
			out.VocabIDs = append(out.VocabIDs, id)
			out.Embeddings = append(out.Embeddings, embeddings[i][j])
			out.Counts[i]++
		}
	}
	return out, nil
}
