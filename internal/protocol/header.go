// Package protocol implements per-version command framing: header layout,
// decrypt-then-parse, and buffered command iteration over a byte stream.
package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/openpso/server/internal/constants"
)

// Header is a decoded command header, normalized across all six per-version
// wire layouts (spec.md §4C's header table).
type Header struct {
	Command uint16
	Flag    uint32
	// Size is the total command size including the header itself.
	Size int
}

// EncodeHeader writes a command header for the given version into buf[0:n],
// returning n (the version's HeaderSize). buf must have at least
// version.HeaderSize() bytes.
func EncodeHeader(version constants.Version, buf []byte, h Header) (int, error) {
	n := version.HeaderSize()
	if len(buf) < n {
		return 0, fmt.Errorf("encode header: buffer too small (need %d, have %d)", n, len(buf))
	}

	switch version {
	case constants.VersionDCv1, constants.VersionDCv2, constants.VersionGC, constants.VersionEp3:
		buf[0] = byte(h.Command)
		buf[1] = byte(h.Flag)
		binary.LittleEndian.PutUint16(buf[2:4], uint16(h.Size))
	case constants.VersionPC:
		binary.LittleEndian.PutUint16(buf[0:2], uint16(h.Size))
		buf[2] = byte(h.Command)
		buf[3] = byte(h.Flag)
	case constants.VersionBB:
		binary.LittleEndian.PutUint16(buf[0:2], uint16(h.Size))
		binary.LittleEndian.PutUint16(buf[2:4], h.Command)
		binary.LittleEndian.PutUint32(buf[4:8], h.Flag)
	default:
		return 0, fmt.Errorf("encode header: unknown version %v", version)
	}
	return n, nil
}

// DecodeHeader parses a command header already decrypted into buf. buf must
// have at least version.HeaderSize() bytes.
func DecodeHeader(version constants.Version, buf []byte) (Header, error) {
	n := version.HeaderSize()
	if len(buf) < n {
		return Header{}, fmt.Errorf("decode header: buffer too small (need %d, have %d)", n, len(buf))
	}

	var h Header
	switch version {
	case constants.VersionDCv1, constants.VersionDCv2, constants.VersionGC, constants.VersionEp3:
		h.Command = uint16(buf[0])
		h.Flag = uint32(buf[1])
		h.Size = int(binary.LittleEndian.Uint16(buf[2:4]))
	case constants.VersionPC:
		h.Size = int(binary.LittleEndian.Uint16(buf[0:2]))
		h.Command = uint16(buf[2])
		h.Flag = uint32(buf[3])
	case constants.VersionBB:
		h.Size = int(binary.LittleEndian.Uint16(buf[0:2]))
		h.Command = binary.LittleEndian.Uint16(buf[2:4])
		h.Flag = binary.LittleEndian.Uint32(buf[4:8])
	default:
		return Header{}, fmt.Errorf("decode header: unknown version %v", version)
	}
	if h.Size < n {
		return Header{}, fmt.Errorf("decode header: size %d smaller than header size %d", h.Size, n)
	}
	if h.Size > constants.MaxCommandSize {
		return Header{}, fmt.Errorf("decode header: size %d exceeds max command size %d", h.Size, constants.MaxCommandSize)
	}
	return h, nil
}

// roundUp returns size rounded up to the next multiple of boundary.
func roundUp(size, boundary int) int {
	if size%boundary == 0 {
		return size
	}
	return size + (boundary - size%boundary)
}
