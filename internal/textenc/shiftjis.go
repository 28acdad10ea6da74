// Package textenc implements the text conversions PSO's wire protocol
// needs: Shift-JIS <-> UTF-16LE transcoding, the language-marker prefix
// convention, and the "$"/"#"/"%" color-escape translation described in
// spec.md §4A.
package textenc

import (
	"unicode/utf16"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// Real Shift-JIS <-> Unicode transcoding, not a hand-rolled table:
// golang.org/x/text/encoding/japanese carries the full JIS X 0208 mapping
// PSO's own Japanese client text actually needs. ReplaceUnsupported makes
// an unmappable byte or rune degrade to U+FFFD / '?' instead of aborting
// the whole string, matching how a malformed chat/name field should be
// tolerated rather than rejected outright.
var (
	shiftJISDecoder = encoding.ReplaceUnsupported(japanese.ShiftJIS.NewDecoder())
	shiftJISEncoder = encoding.ReplaceUnsupported(japanese.ShiftJIS.NewEncoder())
)

// DecodeShiftJIS converts a NUL-terminated Shift-JIS byte string to UTF-16LE
// code units.
func DecodeShiftJIS(b []byte) []uint16 {
	if i := indexNUL(b); i >= 0 {
		b = b[:i]
	}
	// ReplaceUnsupported makes this transformer substitute malformed bytes
	// with U+FFFD instead of erroring, so err is always nil here.
	utf8Bytes, _, _ := transform.Bytes(shiftJISDecoder, b)
	return utf16.Encode([]rune(string(utf8Bytes)))
}

// EncodeShiftJIS converts UTF-16LE code units to a NUL-terminated-free
// Shift-JIS byte string.
func EncodeShiftJIS(units []uint16) []byte {
	runes := utf16.Decode(units)
	for i, r := range runes {
		if r == 0 {
			runes = runes[:i]
			break
		}
	}
	// ReplaceUnsupported makes this transformer substitute unmappable
	// runes with '?' instead of erroring, so err is always nil here.
	out, _, _ := transform.Bytes(shiftJISEncoder, []byte(string(runes)))
	return out
}

func indexNUL(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}
