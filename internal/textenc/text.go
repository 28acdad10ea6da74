package textenc

import "unicode/utf16"

// Language marker prefix: a two-code-unit "\t<lang>" sequence PSO prepends to
// most text fields so the client knows which font/codepage to use.
const (
	LangJapanese = 'J'
	LangEnglish  = 'E'
)

// HasLanguageMarker reports whether units begins with a "\t<lang>" prefix.
func HasLanguageMarker(units []uint16) bool {
	return len(units) >= 2 && units[0] == '\t'
}

// AddLanguageMarker prepends a "\t<lang>" prefix, unless one is already
// present (idempotent — spec.md §9 design notes call out that the original
// isn't idempotent here and flags it as a bug to avoid repeating).
func AddLanguageMarker(units []uint16, lang rune) []uint16 {
	if HasLanguageMarker(units) {
		return units
	}
	out := make([]uint16, 0, len(units)+2)
	out = append(out, '\t', uint16(lang))
	out = append(out, units...)
	return out
}

// StripLanguageMarker removes a leading "\t<lang>" prefix if present.
func StripLanguageMarker(units []uint16) []uint16 {
	if HasLanguageMarker(units) {
		return units[2:]
	}
	return units
}

// Color escape convention (spec.md §4A): user-facing text uses a small
// escaping scheme so chat/info text can embed PSO's color/wait control
// codes (TAB, LF) using printable source characters.
//
//	$  -> TAB (0x09), PSO's color/wait control introducer
//	#  -> LF  (0x0A)
//	%s -> literal $
//	%n -> literal #
//	%% -> literal %
func EncodeColorEscapes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '$':
			out = append(out, '\t')
		case '#':
			out = append(out, '\n')
		case '%':
			if i+1 < len(s) {
				switch s[i+1] {
				case 's':
					out = append(out, '$')
					i++
					continue
				case 'n':
					out = append(out, '#')
					i++
					continue
				case '%':
					out = append(out, '%')
					i++
					continue
				}
			}
			out = append(out, '%')
		default:
			out = append(out, s[i])
		}
	}
	return out
}

// PadToBoundary appends NUL bytes until len(b) is a multiple of boundary.
func PadToBoundary(b []byte, boundary int) []byte {
	for len(b)%boundary != 0 {
		b = append(b, 0)
	}
	return b
}

// EncodeUTF16LEString converts a Go string to PSO's on-wire UTF-16LE byte
// form, NUL-terminated and padded to a 4-byte boundary as outbound PSO text
// fields require.
func EncodeUTF16LEString(s string) []byte {
	units := utf16.Encode([]rune(s))
	b := make([]byte, 0, len(units)*2+2)
	for _, u := range units {
		b = append(b, byte(u), byte(u>>8))
	}
	b = append(b, 0, 0)
	return PadToBoundary(b, 4)
}

// DecodeUTF16LEString reads a NUL-terminated UTF-16LE byte string.
func DecodeUTF16LEString(b []byte) string {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u := uint16(b[i]) | uint16(b[i+1])<<8
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}
