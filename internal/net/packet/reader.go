package packet

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Reader reads message fields from a frame payload.
// Bytes 0-1 are always the opcode (little-endian).
//
// Reads past the end return zero values and set the overrun flag; handlers
// check Overrun before acting on what they read.
type Reader struct {
	data    []byte
	off     int
	overrun bool
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data, off: 2} // skip opcode
}

func (r *Reader) Opcode() uint16 {
	if len(r.data) < 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(r.data)
}

// ReadUint8 reads 1 byte.
func (r *Reader) ReadUint8() uint8 {
	if r.off+1 > len(r.data) {
		r.overrun = true
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

// ReadUint16 reads 2 bytes as little-endian uint16.
func (r *Reader) ReadUint16() uint16 {
	if r.off+2 > len(r.data) {
		r.overrun = true
		r.off = len(r.data)
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

// ReadUint32 reads 4 bytes as little-endian uint32.
func (r *Reader) ReadUint32() uint32 {
	if r.off+4 > len(r.data) {
		r.overrun = true
		r.off = len(r.data)
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

// ReadString reads a [2B LE length][UTF-8 bytes] string.
// Ill-formed UTF-8 is replaced with U+FFFD rather than rejected.
func (r *Reader) ReadString() string {
	n := int(r.ReadUint16())
	if r.overrun {
		return ""
	}
	return validUTF8(r.ReadBytes(n))
}

// ReadFixedString reads exactly n bytes and trims trailing NUL padding.
func (r *Reader) ReadFixedString(n int) string {
	raw := r.ReadBytes(n)
	return validUTF8(bytes.TrimRight(raw, "\x00"))
}

// ReadBytes reads n raw bytes. A short buffer yields whatever remains.
func (r *Reader) ReadBytes(n int) []byte {
	if r.off+n > len(r.data) {
		r.overrun = true
		remaining := r.data[r.off:]
		r.off = len(r.data)
		return remaining
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:r.off+n])
	r.off += n
	return b
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Overrun reports whether any read ran past the end of the payload.
func (r *Reader) Overrun() bool {
	return r.overrun
}

// validUTF8 passes well-formed input through unchanged.
func validUTF8(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	out, _, err := transform.Bytes(runes.ReplaceIllFormed(), raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}
