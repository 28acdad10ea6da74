package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"
)

// AssertCommand checks that a decoded header's command id matches expected.
func AssertCommand(t testing.TB, expected, actual uint16) {
	t.Helper()

	if actual != expected {
		t.Fatalf("command mismatch: expected 0x%04X, got 0x%04X", expected, actual)
	}
}

// AssertUint32LE checks a little-endian uint32 at offset in packet.
func AssertUint32LE(t testing.TB, expected uint32, packet []byte, offset int) {
	t.Helper()

	if len(packet) < offset+4 {
		t.Fatalf("packet too short: need %d bytes for uint32 at offset %d, got %d",
			offset+4, offset, len(packet))
	}

	actual := binary.LittleEndian.Uint32(packet[offset:])
	if actual != expected {
		t.Fatalf("uint32 mismatch at offset %d: expected %d, got %d", offset, expected, actual)
	}
}

// AssertUint16LE checks a little-endian uint16 at offset in packet.
func AssertUint16LE(t testing.TB, expected uint16, packet []byte, offset int) {
	t.Helper()

	if len(packet) < offset+2 {
		t.Fatalf("packet too short: need %d bytes for uint16 at offset %d, got %d",
			offset+2, offset, len(packet))
	}

	actual := binary.LittleEndian.Uint16(packet[offset:])
	if actual != expected {
		t.Fatalf("uint16 mismatch at offset %d: expected %d, got %d", offset, expected, actual)
	}
}

// AssertByteAtOffset checks a single byte at offset in packet.
func AssertByteAtOffset(t testing.TB, expected byte, packet []byte, offset int) {
	t.Helper()

	if len(packet) <= offset {
		t.Fatalf("packet too short: need %d bytes, got %d", offset+1, len(packet))
	}

	actual := packet[offset]
	if actual != expected {
		t.Fatalf("byte mismatch at offset %d: expected 0x%02X, got 0x%02X", offset, expected, actual)
	}
}

// AssertBytesEqual checks that two byte slices are equal.
func AssertBytesEqual(t testing.TB, expected, actual []byte, msg string) {
	t.Helper()

	if !bytes.Equal(expected, actual) {
		t.Fatalf("%s: bytes mismatch\nexpected: %v\nactual:   %v", msg, expected, actual)
	}
}

// AssertPacketMinLength checks that packet is at least minLength bytes.
func AssertPacketMinLength(t testing.TB, minLength int, packet []byte) {
	t.Helper()

	if len(packet) < minLength {
		t.Fatalf("packet too short: expected at least %d bytes, got %d bytes", minLength, len(packet))
	}
}

// DumpPacket returns a hex dump of packet, useful when a test assertion
// failure needs to show the raw bytes under inspection.
func DumpPacket(packet []byte) string {
	var buf bytes.Buffer
	for i := 0; i < len(packet); i += 16 {
		end := i + 16
		if end > len(packet) {
			end = len(packet)
		}
		chunk := packet[i:end]

		fmt.Fprintf(&buf, "%04x  ", i)

		for j, b := range chunk {
			if j == 8 {
				buf.WriteString(" ")
			}
			fmt.Fprintf(&buf, "%02x ", b)
		}

		for j := len(chunk); j < 16; j++ {
			if j == 8 {
				buf.WriteString(" ")
			}
			buf.WriteString("   ")
		}

		buf.WriteString(" |")
		for _, b := range chunk {
			if b >= 32 && b <= 126 {
				buf.WriteByte(b)
			} else {
				buf.WriteByte('.')
			}
		}
		buf.WriteString("|\n")
	}
	return buf.String()
}
