package compress

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("token embeddings compress well "), 2000)

	for _, typ := range []Type{None, Zstd, LZ4} {
		t.Run(string(typ), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(typ, &buf)
			require.NoError(t, err)
			_, err = w.Write(payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			if typ != None {
				assert.Less(t, buf.Len(), len(payload))
			}

			// Run twice so the pooled zstd decoder is reused.
			for range 2 {
				r, err := NewReader(typ, bytes.NewReader(buf.Bytes()))
				require.NoError(t, err)
				got, err := io.ReadAll(r)
				require.NoError(t, err)
				require.NoError(t, r.Close())
				assert.Equal(t, payload, got)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in     string
		want   Type
		suffix string
	}{
		{"", None, ""},
		{"none", None, ""},
		{"zstd", Zstd, ".zst"},
		{"lz4", LZ4, ".lz4"},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.suffix, got.Suffix())
	}

	_, err := Parse("gzip")
	assert.Error(t, err)
	_, err = NewWriter("gzip", io.Discard)
	assert.Error(t, err)
}
