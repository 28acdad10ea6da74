package textenc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShiftJISRoundTrip(t *testing.T) {
	cases := [][]byte{
		[]byte("Hello, World!"),
		{0x83, 0x41, 0x83, 0x42, 0x83, 0x43}, // katakana
		{0x82, 0xA0, 0x82, 0xA2},             // hiragana
		{0xB1, 0xB2, 0xB3},                   // half-width katakana
		{0x88, 0x9F}, // first JIS level-1 kanji (U+4E9C)
	}
	for _, raw := range cases {
		units := DecodeShiftJIS(raw)
		back := EncodeShiftJIS(units)
		require.Equal(t, raw, back, "round trip mismatch for % x", raw)
	}
}

func TestLanguageMarkerIdempotent(t *testing.T) {
	units := []uint16{'h', 'i'}
	once := AddLanguageMarker(units, LangJapanese)
	twice := AddLanguageMarker(once, LangJapanese)
	require.Equal(t, once, twice)
	require.True(t, HasLanguageMarker(once))
	require.Equal(t, units, StripLanguageMarker(once))
}

func TestColorEscapes(t *testing.T) {
	require.Equal(t, "\tC6You do not have\n", EncodeColorEscapes("$C6You do not have#"))
	require.Equal(t, "$#%lit", EncodeColorEscapes("%s%n%%lit"))
}

func TestPadToBoundary(t *testing.T) {
	b := []byte{1, 2, 3}
	padded := PadToBoundary(b, 4)
	require.Len(t, padded, 4)
	require.Equal(t, byte(0), padded[3])
}

func TestUTF16LEStringRoundTrip(t *testing.T) {
	enc := EncodeUTF16LEString("Ragol")
	require.Equal(t, "Ragol", DecodeUTF16LEString(enc))
	require.Equal(t, 0, len(enc)%4)
}
