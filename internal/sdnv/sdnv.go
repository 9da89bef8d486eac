// Package sdnv implements the self-delimiting numeric value codec used
// throughout the BPv6 wire format: an unsigned integer encoded as a
// sequence of 7-bit big-endian groups, high bit set on every byte but the
// last.
package sdnv

import "fmt"

// Flags accumulates non-fatal parse conditions across one decode/read
// call, per the "tagged result variants + threaded flags" convention used
// across this codebase instead of mixed negative-return-code signaling.
type Flags uint16

const (
	// FlagIncomplete is set when the buffer ends before a terminating
	// byte (high bit clear) is found.
	FlagIncomplete Flags = 1 << iota
	// FlagOverflow is set when the accumulated value would exceed 64 bits.
	FlagOverflow
)

// Field pairs a decoded/encoded value with the byte offset and width of
// its slot in the owning buffer, so a later Rewrite can update the field
// in place without reserializing the surrounding block.
type Field struct {
	Value uint64
	Index int
	Width int
}

// Encode renders v as a minimal-width SDNV. If widthHint is larger than
// the natural encoding, the field is left-padded with 0x80 "zero prefix"
// bytes so it occupies exactly widthHint bytes — required so that blocks
// can reserve a fixed-width slot for a field that is rewritten later (e.g.
// createsec, blklen).
func Encode(v uint64, widthHint int) []byte {
	natural := naturalWidth(v)
	width := natural
	if widthHint > width {
		width = widthHint
	}

	out := make([]byte, width)
	pad := width - natural
	for i := 0; i < pad; i++ {
		out[i] = 0x80
	}

	// Emit the 7-bit groups, most significant first, into the tail of
	// the buffer.
	for i := width - 1; i >= pad; i-- {
		b := byte(v & 0x7F)
		v >>= 7
		if i != width-1 {
			b |= 0x80
		}
		out[i] = b
	}
	return out
}

// naturalWidth returns the number of bytes Encode would need for v with
// no padding.
func naturalWidth(v uint64) int {
	width := 1
	for v >>= 7; v != 0; v >>= 7 {
		width++
	}
	return width
}

// Decode reads an SDNV starting at buf[offset:]. It never panics on
// malformed input: short or overlong buffers set flags in *flags and
// return a best-effort value.
func Decode(buf []byte, offset int, flags *Flags) Field {
	field := Field{Index: offset}

	var value uint64
	i := offset
	for {
		if i >= len(buf) {
			*flags |= FlagIncomplete
			field.Value = value
			field.Width = i - offset
			return field
		}
		b := buf[i]
		i++

		if value > (1<<57)-1 {
			// Shifting by 7 more would overflow 64 bits.
			*flags |= FlagOverflow
		}
		value = (value << 7) | uint64(b&0x7F)

		if b&0x80 == 0 {
			break
		}
	}

	field.Value = value
	field.Width = i - offset
	return field
}

// Rewrite re-encodes field.Value into its previously recorded slot in
// buf. It fails if the value no longer fits in the reserved width.
func Rewrite(buf []byte, field Field) error {
	if field.Index < 0 || field.Index+field.Width > len(buf) {
		return fmt.Errorf("sdnv: rewrite slot [%d:%d] out of range for %d-byte buffer", field.Index, field.Index+field.Width, len(buf))
	}
	if naturalWidth(field.Value) > field.Width {
		return fmt.Errorf("sdnv: value %d does not fit in reserved width %d", field.Value, field.Width)
	}
	copy(buf[field.Index:field.Index+field.Width], Encode(field.Value, field.Width))
	return nil
}
