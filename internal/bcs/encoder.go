// Package bcs writes Binary Canonical Serialization, the wire format Sui
// uses for transactions, intents and signatures. Only the encoding side is
// needed here: every value this service serializes is built locally.
package bcs

import (
	"bytes"
	"encoding/binary"
)

// Encoder appends BCS values to an internal buffer. The zero value is ready to use.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an empty encoder
func NewEncoder() *Encoder {
	return &Encoder{}
}

// U8 writes a single byte
func (e *Encoder) U8(v uint8) *Encoder {
	e.buf.WriteByte(v)
	return e
}

// U64 writes a little-endian u64
func (e *Encoder) U64(v uint64) *Encoder {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
	return e
}

// ULEB128 writes an unsigned LEB128 value, used for lengths and enum tags
func (e *Encoder) ULEB128(v uint64) *Encoder {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		e.buf.WriteByte(b)
		if v == 0 {
			return e
		}
	}
}

// Variant writes an enum variant index
func (e *Encoder) Variant(index uint64) *Encoder {
	return e.ULEB128(index)
}

// Fixed writes bytes with no length prefix (fixed-size arrays, addresses)
func (e *Encoder) Fixed(b []byte) *Encoder {
	e.buf.Write(b)
	return e
}

// Bytes writes a vector<u8>
func (e *Encoder) Bytes(b []byte) *Encoder {
	e.ULEB128(uint64(len(b)))
	e.buf.Write(b)
	return e
}

// String writes a UTF-8 string as vector<u8>
func (e *Encoder) String(s string) *Encoder {
	return e.Bytes([]byte(s))
}

// Strings writes a vector<string>
func (e *Encoder) Strings(values []string) *Encoder {
	e.ULEB128(uint64(len(values)))
	for _, v := range values {
		e.String(v)
	}
	return e
}

// Len starts a vector of n elements; the caller writes the elements
func (e *Encoder) Len(n int) *Encoder {
	return e.ULEB128(uint64(n))
}

// Result returns a copy of the encoded bytes
func (e *Encoder) Result() []byte {
	return bytes.Clone(e.buf.Bytes())
}

// Vector is a convenience for serializing a bare vector<u8>
func Vector(b []byte) []byte {
	return NewEncoder().Bytes(b).Result()
}
