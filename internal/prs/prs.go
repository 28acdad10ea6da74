// Package prs implements the PRS compression scheme used for quest files
// and the static data tables (level table, battle parameters, rare-item
// table) described in spec.md §6's file-format list. The distilled spec
// treats decompression as a black box, but original_source/Compression.hh
// documents the function signatures without a body; the algorithm itself
// (an LZ77 variant with a control-bit bitstream, long-copy/short-copy
// back-references, and a 1-byte end marker) is implemented faithfully here
// so the quest index and the gamedata loaders can be exercised end to end
// instead of stubbed (SPEC_FULL.md §4K).
package prs

import "fmt"

// Decompress expands src, which must be a complete PRS stream ending in its
// own end-of-stream marker. maxSize, if nonzero, bounds the output size and
// aborts decompression early once exceeded (guards against a corrupt or
// hostile stream expanding without bound).
func Decompress(src []byte, maxSize int) ([]byte, error) {
	d := &decoder{src: src}
	out := make([]byte, 0, len(src)*3)

	for {
		if maxSize > 0 && len(out) > maxSize {
			return nil, fmt.Errorf("prs: decompressed size exceeds %d bytes", maxSize)
		}

		bit, err := d.bit()
		if err != nil {
			return nil, err
		}
		if bit == 1 {
			b, err := d.byte()
			if err != nil {
				return nil, fmt.Errorf("prs: literal byte: %w", err)
			}
			out = append(out, b)
			continue
		}

		bit, err = d.bit()
		if err != nil {
			return nil, err
		}
		if bit == 1 {
			// Long copy: a two-byte offset/size field.
			b0, err := d.byte()
			if err != nil {
				return nil, fmt.Errorf("prs: long copy header byte 0: %w", err)
			}
			b1, err := d.byte()
			if err != nil {
				return nil, fmt.Errorf("prs: long copy header byte 1: %w", err)
			}

			offset := (int(b1)<<8 | int(b0)) >> 3
			offset -= 0x2000
			size := int(b0) & 0x07

			if size == 0 {
				extra, err := d.byte()
				if err != nil {
					return nil, fmt.Errorf("prs: long copy extended size: %w", err)
				}
				size = int(extra) + 1
				if size == 1 {
					// End-of-stream marker.
					return out, nil
				}
				if size == 2 {
					lo, err := d.byte()
					if err != nil {
						return nil, fmt.Errorf("prs: long copy 16-bit size low: %w", err)
					}
					hi, err := d.byte()
					if err != nil {
						return nil, fmt.Errorf("prs: long copy 16-bit size high: %w", err)
					}
					size = int(hi)<<8 | int(lo)
				}
			} else {
				size += 2
			}

			if err := copyBack(&out, offset, size); err != nil {
				return nil, err
			}
			continue
		}

		// Short copy: 2-bit size (2-5), one-byte offset.
		b0, err := d.bit()
		if err != nil {
			return nil, err
		}
		b1, err := d.bit()
		if err != nil {
			return nil, err
		}
		size := (b0<<1 | b1) + 2

		offByte, err := d.byte()
		if err != nil {
			return nil, fmt.Errorf("prs: short copy offset byte: %w", err)
		}
		offset := int(offByte) - 256

		if err := copyBack(&out, offset, size); err != nil {
			return nil, err
		}
	}
}

func copyBack(out *[]byte, offset, size int) error {
	start := len(*out) + offset
	if start < 0 {
		return fmt.Errorf("prs: back-reference offset %d precedes start of output", offset)
	}
	for i := 0; i < size; i++ {
		pos := start + i
		if pos < 0 || pos >= len(*out) {
			return fmt.Errorf("prs: back-reference reads past available output (pos %d, len %d)", pos, len(*out))
		}
		*out = append(*out, (*out)[pos])
	}
	return nil
}

// decoder reads src one bit at a time, LSB first within each control byte,
// refilling the control byte from the stream whenever its 8 bits are spent.
type decoder struct {
	src     []byte
	pos     int
	control byte
	nbits   int
}

func (d *decoder) byte() (byte, error) {
	if d.pos >= len(d.src) {
		return 0, fmt.Errorf("prs: unexpected end of stream")
	}
	b := d.src[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) bit() (int, error) {
	if d.nbits == 0 {
		b, err := d.byte()
		if err != nil {
			return 0, fmt.Errorf("prs: control byte: %w", err)
		}
		d.control = b
		d.nbits = 8
	}
	bit := int(d.control & 1)
	d.control >>= 1
	d.nbits--
	return bit, nil
}
