package encoder

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/hupe1980/embedpack/model"
)

// ErrInvalidDimension is returned for a non-positive embedding width.
var ErrInvalidDimension = errors.New("encoder: dimension must be positive")

type options struct {
	dim  int
	seed uint64
}

// Option configures an encoder.
type Option func(*options)

// WithDimension sets the embedding width.
func WithDimension(d int) Option {
	return func(o *options) { o.dim = d }
}

// WithSeed selects a different embedding table.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

func buildOptions(opts []Option) (options, error) {
	o := options{dim: DefaultDimension}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dim <= 0 {
		return o, fmt.Errorf("%w: %d", ErrInvalidDimension, o.dim)
	}
	return o, nil
}

// Hash is a tokenizer-free encoder. A token is a maximal run of Unicode
// letters and digits, lower-cased; its raw id is the FNV-1a 64 hash.
type Hash struct {
	table static
}

// NewHash returns a Hash encoder.
func NewHash(opts ...Option) (*Hash, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Hash{table: static{dim: o.dim, seed: o.seed}}, nil
}

// Dimension returns the embedding width.
func (h *Hash) Dimension() int { return h.table.dim }

// Encode tokenizes and embeds texts.
func (h *Hash) Encode(ctx context.Context, texts []string) (model.Encoding, error) {
	enc := model.Encoding{
		TokenIDs:        make([][]uint64, len(texts)),
		TokenEmbeddings: make([][][]float32, len(texts)),
		TextEmbeddings:  make([][]float32, len(texts)),
	}
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return model.Encoding{}, err
		}
		words := tokenize(text)
		ids := make([]uint64, len(words))
		vecs := make([][]float32, len(words))
		for j, w := range words {
			ids[j] = tokenID(w)
			vecs[j] = h.table.vector(ids[j])
		}
		enc.TokenIDs[i] = ids
		enc.TokenEmbeddings[i] = vecs
		enc.TextEmbeddings[i] = h.table.pool(vecs)
	}
	return enc, nil
}

// Resolve returns the raw id of word when it is exactly one token.
func (h *Hash) Resolve(word string) (uint64, bool) {
	words := tokenize(word)
	if len(words) != 1 {
		return 0, false
	}
	return tokenID(words[0]), true
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func tokenID(word string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(word))
	return h.Sum64()
}
