package decode

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// bcs builds little test payloads without pulling in a serializer.
type bcs struct{ buf bytes.Buffer }

func (b *bcs) u8(v uint8) *bcs {
	b.buf.WriteByte(v)
	return b
}

func (b *bcs) boolean(v bool) *bcs {
	if v {
		return b.u8(1)
	}
	return b.u8(0)
}

func (b *bcs) u32(v uint32) *bcs {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf.Write(tmp[:])
	return b
}

func (b *bcs) u64(v uint64) *bcs {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.buf.Write(tmp[:])
	return b
}

// u128 writes the low 64 bits little-endian and zero-pads the high half.
func (b *bcs) u128(lo uint64) *bcs {
	b.u64(lo)
	b.u64(0)
	return b
}

func (b *bcs) raw(p []byte) *bcs {
	b.buf.Write(p)
	return b
}

func (b *bcs) addr(last byte) *bcs {
	var a [32]byte
	a[31] = last
	b.buf.Write(a[:])
	return b
}

func (b *bcs) str(s string) *bcs {
	b.uleb(uint64(len(s)))
	b.buf.WriteString(s)
	return b
}

func (b *bcs) uleb(v uint64) *bcs {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b.buf.WriteByte(c)
		if v == 0 {
			return b
		}
	}
}

func (b *bcs) bytes() []byte { return b.buf.Bytes() }

func testAddr(last byte) string {
	const zeros = "0x00000000000000000000000000000000000000000000000000000000000000"
	return zeros + hexByte(last)
}

func hexByte(v byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[v>>4], digits[v&0x0f]})
}

func TestReaderScalars(t *testing.T) {
	payload := new(bcs).boolean(true).u8(7).u32(42).u64(1 << 40).bytes()
	r := newReader(payload)

	if got := r.bool(); !got {
		t.Errorf("bool = %v, want true", got)
	}
	if got := r.u8(); got != 7 {
		t.Errorf("u8 = %d, want 7", got)
	}
	if got := r.u32(); got != 42 {
		t.Errorf("u32 = %d, want 42", got)
	}
	if got := r.u64(); got != 1<<40 {
		t.Errorf("u64 = %d, want %d", got, uint64(1)<<40)
	}
	if err := r.finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
}

func TestReaderU128(t *testing.T) {
	// 2^64 = low half zero, high half one.
	payload := new(bcs).u64(0).u64(1).bytes()
	r := newReader(payload)
	if got := r.u128(); got != "18446744073709551616" {
		t.Errorf("u128 = %s, want 18446744073709551616", got)
	}
	if err := r.finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
}

func TestReaderI128Negative(t *testing.T) {
	// -1 in two's complement is all ones.
	payload := bytes.Repeat([]byte{0xff}, 16)
	r := newReader(payload)
	if got := r.i128(); got != "-1" {
		t.Errorf("i128 = %s, want -1", got)
	}
}

func TestReaderString(t *testing.T) {
	payload := new(bcs).str("0x2::sui::SUI").bytes()
	r := newReader(payload)
	if got := r.str(); got != "0x2::sui::SUI" {
		t.Errorf("str = %q", got)
	}
	if err := r.finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
}

func TestReaderAddress(t *testing.T) {
	payload := new(bcs).addr(0xab).bytes()
	r := newReader(payload)
	if got := r.address(); got != testAddr(0xab) {
		t.Errorf("address = %s, want %s", got, testAddr(0xab))
	}
}

func TestReaderTruncated(t *testing.T) {
	r := newReader([]byte{1, 2, 3})
	_ = r.u64()
	if err := r.finish(); err == nil {
		t.Fatal("finish accepted a truncated payload")
	}
}

func TestReaderTrailingBytes(t *testing.T) {
	payload := new(bcs).u64(1).u8(0).bytes()
	r := newReader(payload)
	_ = r.u64()
	if err := r.finish(); err == nil {
		t.Fatal("finish accepted trailing bytes")
	}
}

func TestReaderErrorSticks(t *testing.T) {
	r := newReader([]byte{})
	_ = r.u64()
	_ = r.address()
	_ = r.str()
	if err := r.finish(); err == nil {
		t.Fatal("finish cleared a read error")
	}
}
