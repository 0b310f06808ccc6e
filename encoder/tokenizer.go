package encoder

import (
	"context"
	"fmt"

	"github.com/hupe1980/embedpack/model"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// textTokenizer is the part of *tokenizer.Tokenizer the encoder needs.
type textTokenizer interface {
	EncodeSingle(input string, addSpecialTokensOpt ...bool) (*tokenizer.Encoding, error)
}

// Tokenizer encodes with a HuggingFace tokenizer. Special tokens are not
// added, so every id corresponds to a piece of the input text.
type Tokenizer struct {
	tk    textTokenizer
	table static
}

// NewTokenizer loads a tokenizer.json file.
func NewTokenizer(path string, opts ...Option) (*Tokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("encoder: load tokenizer %s: %w", path, err)
	}
	return newTokenizer(tk, opts...)
}

func newTokenizer(tk textTokenizer, opts ...Option) (*Tokenizer, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Tokenizer{tk: tk, table: static{dim: o.dim, seed: o.seed}}, nil
}

// Dimension returns the embedding width.
func (t *Tokenizer) Dimension() int { return t.table.dim }

// Encode tokenizes and embeds texts.
func (t *Tokenizer) Encode(ctx context.Context, texts []string) (model.Encoding, error) {
	enc := model.Encoding{
		TokenIDs:        make([][]uint64, len(texts)),
		TokenEmbeddings: make([][][]float32, len(texts)),
		TextEmbeddings:  make([][]float32, len(texts)),
	}
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return model.Encoding{}, err
		}
		ids, err := t.ids(text)
		if err != nil {
			return model.Encoding{}, fmt.Errorf("encoder: tokenize line %d: %w", i, err)
		}
		vecs := make([][]float32, len(ids))
		for j, id := range ids {
			vecs[j] = t.table.vector(id)
		}
		enc.TokenIDs[i] = ids
		enc.TokenEmbeddings[i] = vecs
		enc.TextEmbeddings[i] = t.table.pool(vecs)
	}
	return enc, nil
}

// Resolve returns the id of word when the tokenizer maps it to exactly one token.
func (t *Tokenizer) Resolve(word string) (uint64, bool) {
	ids, err := t.ids(word)
	if err != nil || len(ids) != 1 {
		return 0, false
	}
	return ids[0], true
}

func (t *Tokenizer) ids(text string) ([]uint64, error) {
	e, err := t.tk.EncodeSingle(text, false)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, len(e.Ids))
	for i, id := range e.Ids {
		if id < 0 {
			return nil, fmt.Errorf("negative token id %d", id)
		}
		out[i] = uint64(id)
	}
	return out, nil
}
