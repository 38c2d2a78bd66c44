package buffer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufReadThenCopy(t *testing.T) {
	b := WithCapacity(0)

	n, err := b.ReadFrom(bytes.NewReader([]byte("hello, world!")), 64)
	require.NoError(t, err)
	require.Equal(t, 13, n)
	require.False(t, b.IsEmpty())

	dst := make([]byte, 5)
	got := b.CopyTo(dst)
	require.Equal(t, 5, got)
	require.Equal(t, "hello", string(dst))
	require.False(t, b.IsEmpty())
	require.Equal(t, int64(8), b.DiscardRead())
	require.True(t, b.IsEmpty())
}

func TestBufCopyFromCaps(t *testing.T) {
	b := WithCapacity(0)
	n := b.CopyFrom([]byte("abcdefgh"), 4)
	require.Equal(t, 4, n)

	var out bytes.Buffer
	require.NoError(t, b.WriteTo(&out))
	require.Equal(t, "abcd", out.String())
	require.True(t, b.IsEmpty())
}

func TestBufCopyFromSlicesCaps(t *testing.T) {
	b := WithCapacity(0)
	n := b.CopyFromSlices([][]byte{[]byte("ab"), []byte("cdef")}, 5)
	require.Equal(t, 5, n)

	var out bytes.Buffer
	require.NoError(t, b.WriteTo(&out))
	require.Equal(t, "abcde", out.String())
}
