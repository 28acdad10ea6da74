package protocol

import (
	"fmt"

	"github.com/openpso/server/internal/constants"
	"github.com/openpso/server/internal/crypto"
)

// Framer buffers raw bytes arriving on a connection and yields decrypted
// commands one at a time, implementing the dispatch algorithm of spec.md
// §4C: peek the header under a cloned cipher to learn the command size
// without disturbing the session cipher's state, then once the full
// (header-size-aligned) command has arrived, decrypt it in place through
// the real session cipher exactly once.
//
// A Framer is not safe for concurrent use; each connection owns one.
type Framer struct {
	version constants.Version
	cipher  crypto.Stream
	buf     []byte
}

// NewFramer creates a Framer for the given version, reading through cipher.
// cipher may be nil, meaning the stream is not yet encrypted (used before a
// handshake establishes the session cipher); in that case commands are
// parsed directly without decryption.
func NewFramer(version constants.Version, cipher crypto.Stream) *Framer {
	return &Framer{version: version, cipher: cipher}
}

// SetCipher installs the session cipher once a handshake completes. Any
// bytes already buffered are assumed to predate encryption.
func (f *Framer) SetCipher(cipher crypto.Stream) {
	f.cipher = cipher
}

// Feed appends newly-read bytes to the framer's internal buffer.
func (f *Framer) Feed(data []byte) {
	f.buf = append(f.buf, data...)
}

// Buffered reports how many undispatched bytes are currently held.
func (f *Framer) Buffered() int { return len(f.buf) }

// Next attempts to extract one complete command from the buffered stream.
// It returns ok=false (with a nil error) when more bytes are needed. The
// returned payload is the command body only — header stripped, trailing
// alignment padding stripped — and aliases the framer's internal buffer;
// callers must finish using it before calling Next or Feed again.
func (f *Framer) Next() (hdr Header, payload []byte, ok bool, err error) {
	headerSize := f.version.HeaderSize()
	if len(f.buf) < headerSize {
		return Header{}, nil, false, nil
	}

	peek := make([]byte, headerSize)
	copy(peek, f.buf[:headerSize])
	if f.cipher != nil {
		clone := f.cipher.Clone()
		if err := clone.Decrypt(peek, headerSize); err != nil {
			return Header{}, nil, false, fmt.Errorf("framing: peek-decrypt header: %w", err)
		}
	}

	hdr, err = DecodeHeader(f.version, peek)
	if err != nil {
		return Header{}, nil, false, fmt.Errorf("framing: %w", err)
	}

	aligned := roundUp(hdr.Size, headerSize)
	if len(f.buf) < aligned {
		return Header{}, nil, false, nil
	}

	command := f.buf[:aligned]
	if f.cipher != nil {
		if err := f.cipher.Decrypt(command, aligned); err != nil {
			return Header{}, nil, false, fmt.Errorf("framing: decrypt command: %w", err)
		}
	}

	payload = command[headerSize:hdr.Size]
	f.buf = f.buf[aligned:]

	return hdr, payload, true, nil
}
