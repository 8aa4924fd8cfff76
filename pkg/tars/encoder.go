package tars

import (
	"encoding/binary"
	"maps"
	"math"
	"slices"
)

// Encoder appends tagged fields to an internal buffer.
type Encoder struct {
	buf []byte
}

// NewEncoder creates a new encoder with a default initial capacity.
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 128)}
}

// Reset empties the encoder, reusing the underlying buffer.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Bytes returns the encoded bytes. The returned slice is valid until
// the next call to Reset or any Write method.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes currently encoded.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// WriteHead appends a field head. Tags of 15 and above use the escape form.
func (e *Encoder) WriteHead(tag uint8, t Type) {
	if tag < 15 {
		e.buf = append(e.buf, tag<<4|byte(t))
		return
	}
	e.buf = append(e.buf, 0xF0|byte(t), tag)
}

// WriteInt8 appends a byte field, or a zero field for 0.
func (e *Encoder) WriteInt8(tag uint8, v int8) {
	if v == 0 {
		e.WriteHead(tag, Zero)
		return
	}
	e.WriteHead(tag, Byte)
	e.buf = append(e.buf, byte(v))
}

// WriteInt16 appends v using the narrowest integer type that holds it.
func (e *Encoder) WriteInt16(tag uint8, v int16) {
	if v >= math.MinInt8 && v <= math.MaxInt8 {
		e.WriteInt8(tag, int8(v))
		return
	}
	e.WriteHead(tag, Short)
	e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(v))
}

// WriteInt32 appends v using the narrowest integer type that holds it.
func (e *Encoder) WriteInt32(tag uint8, v int32) {
	if v >= math.MinInt16 && v <= math.MaxInt16 {
		e.WriteInt16(tag, int16(v))
		return
	}
	e.WriteHead(tag, Int)
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(v))
}

// WriteInt64 appends v using the narrowest integer type that holds it.
func (e *Encoder) WriteInt64(tag uint8, v int64) {
	if v >= math.MinInt32 && v <= math.MaxInt32 {
		e.WriteInt32(tag, int32(v))
		return
	}
	e.WriteHead(tag, Long)
	e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(v))
}

// WriteBool appends b as a byte field.
func (e *Encoder) WriteBool(tag uint8, b bool) {
	if b {
		e.WriteInt8(tag, 1)
		return
	}
	e.WriteInt8(tag, 0)
}

// WriteFloat32 appends a float field. Positive zero is written as a zero field.
func (e *Encoder) WriteFloat32(tag uint8, v float32) {
	bits := math.Float32bits(v)
	if bits == 0 {
		e.WriteHead(tag, Zero)
		return
	}
	e.WriteHead(tag, Float)
	e.buf = binary.BigEndian.AppendUint32(e.buf, bits)
}

// WriteFloat64 appends a double field. Positive zero is written as a zero field.
func (e *Encoder) WriteFloat64(tag uint8, v float64) {
	bits := math.Float64bits(v)
	if bits == 0 {
		e.WriteHead(tag, Zero)
		return
	}
	e.WriteHead(tag, Double)
	e.buf = binary.BigEndian.AppendUint64(e.buf, bits)
}

// WriteString appends a string field. Strings longer than 255 bytes use
// the 4-byte length form.
func (e *Encoder) WriteString(tag uint8, s string) {
	if len(s) > math.MaxUint8 {
		e.WriteHead(tag, String4)
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(len(s)))
	} else {
		e.WriteHead(tag, String1)
		e.buf = append(e.buf, byte(len(s)))
	}
	e.buf = append(e.buf, s...)
}

// WriteBytes appends b as a simple list.
func (e *Encoder) WriteBytes(tag uint8, b []byte) {
	e.WriteHead(tag, SimpleList)
	e.WriteHead(0, Byte)
	e.WriteInt32(0, int32(len(b)))
	e.buf = append(e.buf, b...)
}

// WriteListHead starts a list of n elements. The caller writes each
// element at tag 0.
func (e *Encoder) WriteListHead(tag uint8, n int) {
	e.WriteHead(tag, List)
	e.WriteInt32(0, int32(n))
}

// WriteMapHead starts a map of n entries. The caller writes each key at
// tag 0 followed by its value at tag 1.
func (e *Encoder) WriteMapHead(tag uint8, n int) {
	e.WriteHead(tag, Map)
	e.WriteInt32(0, int32(n))
}

// WriteStruct appends s as a nested struct.
func (e *Encoder) WriteStruct(tag uint8, s Struct) {
	e.WriteHead(tag, StructBegin)
	s.EncodeTars(e)
	e.WriteHead(0, StructEnd)
}

// WriteList appends items as a list, encoding each element with fn at tag 0.
func WriteList[T any](e *Encoder, tag uint8, items []T, fn func(e *Encoder, item T)) {
	e.WriteListHead(tag, len(items))
	for _, item := range items {
		fn(e, item)
	}
}

// WriteStructList appends a list of structs.
func WriteStructList[T Struct](e *Encoder, tag uint8, items []T) {
	e.WriteListHead(tag, len(items))
	for _, item := range items {
		e.WriteStruct(0, item)
	}
}

// WriteStringMap appends a map with string keys and values in key order.
func (e *Encoder) WriteStringMap(tag uint8, m map[string]string) {
	e.WriteMapHead(tag, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		e.WriteString(0, k)
		e.WriteString(1, m[k])
	}
}
