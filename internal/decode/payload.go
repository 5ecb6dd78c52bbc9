package decode

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

// Event payloads are BCS-encoded Move structs: little-endian fixed-width
// integers, 32-byte addresses, ULEB128 length-prefixed strings. A reader
// accumulates the first error and keeps returning zero values afterwards,
// so decode functions can read a full layout and check err once.
type reader struct {
	buf []byte
	off int
	err error
}

func newReader(payload []byte) *reader {
	return &reader{buf: payload}
}

var errShortPayload = errors.New("payload truncated")

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = errShortPayload
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) bool() bool {
	b := r.take(1)
	if r.err != nil {
		return false
	}
	switch b[0] {
	case 0:
		return false
	case 1:
		return true
	}
	r.err = fmt.Errorf("invalid bool byte 0x%02x", b[0])
	return false
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if r.err != nil {
		return 0
	}
	return b[0]
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) i32() int32 {
	return int32(r.u32())
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) i64() int64 {
	return int64(r.u64())
}

// u128 returns the 16-byte little-endian value as a decimal string.
func (r *reader) u128() string {
	return r.uintLE(16)
}

// u256 returns the 32-byte little-endian value as a decimal string.
func (r *reader) u256() string {
	return r.uintLE(32)
}

func (r *reader) uintLE(width int) string {
	b := r.take(width)
	if r.err != nil {
		return ""
	}
	be := make([]byte, width)
	for i, v := range b {
		be[width-1-i] = v
	}
	return new(big.Int).SetBytes(be).String()
}

// i128 returns the 16-byte little-endian two's-complement value as a
// signed decimal string.
func (r *reader) i128() string {
	b := r.take(16)
	if r.err != nil {
		return ""
	}
	be := make([]byte, 16)
	for i, v := range b {
		be[15-i] = v
	}
	v := new(big.Int).SetBytes(be)
	if be[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	return v.String()
}

// address reads a 32-byte object ID or account address as 0x-prefixed hex.
func (r *reader) address() string {
	b := r.take(32)
	if r.err != nil {
		return ""
	}
	return "0x" + hex.EncodeToString(b)
}

// bytes32 reads 32 raw bytes as unprefixed hex (Pyth feed identifiers).
func (r *reader) bytes32() string {
	b := r.take(32)
	if r.err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}

// uleb reads a ULEB128-encoded length.
func (r *reader) uleb() int {
	var v uint64
	var shift uint
	for {
		b := r.take(1)
		if r.err != nil {
			return 0
		}
		v |= uint64(b[0]&0x7f) << shift
		if b[0]&0x80 == 0 {
			break
		}
		shift += 7
		if shift > 32 {
			r.err = errors.New("uleb128 length overflow")
			return 0
		}
	}
	if v > uint64(len(r.buf)) {
		r.err = errShortPayload
		return 0
	}
	return int(v)
}

// str reads a ULEB128 length-prefixed UTF-8 string (coin type names).
func (r *reader) str() string {
	n := r.uleb()
	b := r.take(n)
	if r.err != nil {
		return ""
	}
	return string(b)
}

// finish validates the layout: every byte consumed, no read errors.
// Trailing bytes mean the payload belongs to a different event version.
func (r *reader) finish() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return fmt.Errorf("layout mismatch: %d trailing bytes", len(r.buf)-r.off)
	}
	return nil
}
