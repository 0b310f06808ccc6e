package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fileEntry struct {
	Name  string  `json:"name"`
	Shape []int64 `json:"shape"`
}

func TestCodecs(t *testing.T) {
	in := fileEntry{Name: "tokens.npy", Shape: []int64{2}}

	for _, name := range []string{"json", "go-json"} {
		t.Run(name, func(t *testing.T) {
			c, ok := ByName(name)
			require.True(t, ok)
			assert.Equal(t, name, c.Name())

			b, err := c.Marshal(in)
			require.NoError(t, err)
			assert.JSONEq(t, `{"name":"tokens.npy","shape":[2]}`, string(b))

			var out fileEntry
			require.NoError(t, c.Unmarshal(b, &out))
			assert.Equal(t, in, out)
		})
	}

	_, ok := ByName("msgpack")
	assert.False(t, ok)
}

func TestCodecsAgree(t *testing.T) {
	in := fileEntry{Name: "offsets.npy", Shape: []int64{4}}
	assert.Equal(t, MustMarshal(JSON{}, in), MustMarshal(nil, in))

	assert.Panics(t, func() { MustMarshal(JSON{}, make(chan int)) })
}
