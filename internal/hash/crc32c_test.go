package hash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC32C(t *testing.T) {
	// Check value from RFC 3720 (iSCSI): 32 bytes of zeros.
	assert.Equal(t, uint32(0x8a9136aa), CRC32C(make([]byte, 32)))

	h := NewCRC32C()
	_, _ = h.Write([]byte("hello "))
	_, _ = h.Write([]byte("world"))
	assert.Equal(t, CRC32C([]byte("hello world")), h.Sum32())
}

func TestReaderCRC32C(t *testing.T) {
	sum, n, err := ReaderCRC32C(strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)
	assert.Equal(t, CRC32C([]byte("hello world")), sum)
}
