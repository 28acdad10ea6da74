package prs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTripSmall(t *testing.T) {
	cases := [][]byte{
		[]byte(""),
		[]byte("a"),
		[]byte("hello, world"),
		bytes.Repeat([]byte("abcabcabcabc"), 50),
		bytes.Repeat([]byte{0x00}, 1000),
	}
	for _, c := range cases {
		compressed := Compress(c)
		got, err := Decompress(compressed, 0)
		require.NoError(t, err)
		require.Equal(t, c, got)
	}
}

func TestRoundTripRepetitiveBeatsIdentity(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog, "), 200)
	compressed := Compress(data)
	require.Less(t, len(compressed), len(data))

	got, err := Decompress(compressed, 0)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestDecompressRespectsMaxSize(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 10000)
	compressed := Compress(data)
	_, err := Decompress(compressed, 100)
	require.Error(t, err)
}

func TestDecompressRejectsTruncatedStream(t *testing.T) {
	compressed := Compress([]byte("some data to compress"))
	_, err := Decompress(compressed[:len(compressed)-3], 0)
	require.Error(t, err)
}

func TestDecompressRejectsBackReferenceBeforeStart(t *testing.T) {
	// Control byte 0x02 selects the long-copy op on the very first two
	// bits; a zero offset/size header then an extra-size byte of 5
	// requests a 6-byte copy starting 0x2000 bytes before an empty
	// output, which Decompress must reject instead of panicking.
	stream := []byte{0x02, 0x00, 0x00, 0x05}
	_, err := Decompress(stream, 0)
	require.Error(t, err)
}
