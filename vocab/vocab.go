// Package vocab loads a fixed vocabulary and filters encoder tokens against it.
//
// A vocabulary file holds one word per line. Blank lines and lines starting
// with '#' are ignored. The n-th word gets vocabulary id n, starting at 1;
// id 0 is reserved and never assigned.
package vocab

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hupe1980/embedpack/internal/fs"
)

// ErrDuplicateWord is returned when a vocabulary lists the same word twice.
var ErrDuplicateWord = errors.New("vocab: duplicate word")

// Vocabulary is an ordered, immutable word list.
type Vocabulary struct {
	words []string
	index map[string]int64
}

// New builds a vocabulary from words in id order.
func New(words []string) (*Vocabulary, error) {
	v := &Vocabulary{
		words: make([]string, 0, len(words)),
		index: make(map[string]int64, len(words)),
	}
	for _, w := range words {
		if err := v.add(w); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (v *Vocabulary) add(word string) error {
	if id, ok := v.index[word]; ok {
		return fmt.Errorf("%w: %q (id %d)", ErrDuplicateWord, word, id)
	}
	v.words = append(v.words, word)
	v.index[word] = int64(len(v.words))
	return nil
}

// Load reads a vocabulary from r.
func Load(r io.Reader) (*Vocabulary, error) {
	v := &Vocabulary{index: make(map[string]int64)}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		w := strings.TrimSpace(sc.Text())
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		if err := v.add(w); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("vocab: read: %w", err)
	}
	return v, nil
}

// LoadFile reads a vocabulary file through fsys.
func LoadFile(fsys fs.FileSystem, path string) (*Vocabulary, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("vocab: open %s: %w", path, err)
	}
	defer f.Close()

	v, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("vocab: %s: %w", path, err)
	}
	return v, nil
}

// Len returns the number of words.
func (v *Vocabulary) Len() int { return len(v.words) }

// ID returns the vocabulary id of word.
func (v *Vocabulary) ID(word string) (int64, bool) {
	id, ok := v.index[word]
	return id, ok
}

// Word returns the word with the given id.
func (v *Vocabulary) Word(id int64) (string, bool) {
	if id < 1 || id > int64(len(v.words)) {
		return "", false
	}
	return v.words[id-1], true
}

// Words returns the words in id order.
func (v *Vocabulary) Words() []string {
	return append([]string(nil), v.words...)
}
