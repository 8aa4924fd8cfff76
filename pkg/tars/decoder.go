package tars

import (
	"encoding/binary"
	"math"
)

// Limits applied while decoding untrusted input.
const (
	// MaxStringLength is the largest string4 length accepted (100MB).
	MaxStringLength = 104857600

	// MaxCollectionCount is the maximum number of elements in a list or map.
	MaxCollectionCount = 1_000_000

	// DefaultMaxDepth limits nesting of structs, lists and maps.
	DefaultMaxDepth = 64
)

// Decoder reads tagged fields from a byte buffer.
type Decoder struct {
	buf      []byte
	pos      int
	depth    int
	maxDepth int
}

// NewDecoder creates a new decoder from the given byte slice.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf, maxDepth: DefaultMaxDepth}
}

// SetMaxDepth overrides the nesting limit. Values <= 0 restore the default.
func (d *Decoder) SetMaxDepth(n int) {
	if n <= 0 {
		n = DefaultMaxDepth
	}
	d.maxDepth = n
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// EOF returns true if all bytes have been read.
func (d *Decoder) EOF() bool {
	return d.pos >= len(d.buf)
}

// Position returns the current read position.
func (d *Decoder) Position() int {
	return d.pos
}

func (d *Decoder) enter(op string, tag int) error {
	if d.depth >= d.maxDepth {
		return malformed(op, tag, ErrDepthExceeded)
	}
	d.depth++
	return nil
}

func (d *Decoder) leave() {
	d.depth--
}

func (d *Decoder) take(op string, tag int, n int) ([]byte, error) {
	if n < 0 {
		return nil, malformed(op, tag, ErrNegativeLength)
	}
	if n > d.Remaining() {
		return nil, truncated(op, tag)
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// PeekHead decodes the next head without consuming it. It also returns the
// number of bytes the head occupies.
func (d *Decoder) PeekHead() (Head, int, error) {
	if d.pos >= len(d.buf) {
		return Head{}, 0, truncated("read head", -1)
	}
	b := d.buf[d.pos]
	h := Head{Tag: b >> 4, Type: Type(b & 0x0F)}
	n := 1
	if h.Tag == 15 {
		if d.pos+1 >= len(d.buf) {
			return Head{}, 0, truncated("read head", -1)
		}
		h.Tag = d.buf[d.pos+1]
		n = 2
	}
	if !h.Type.Valid() {
		return Head{}, 0, malformed("read head", int(h.Tag), ErrInvalidType)
	}
	return h, n, nil
}

// ReadHead decodes and consumes the next head.
func (d *Decoder) ReadHead() (Head, error) {
	h, n, err := d.PeekHead()
	if err != nil {
		return Head{}, err
	}
	d.pos += n
	return h, nil
}

// SkipToTag skips fields until one with the given tag is next. It stops
// without consuming anything at the end of input, at a struct end, or at a
// field with a larger tag, and reports whether the tag was found.
func (d *Decoder) SkipToTag(tag uint8) (bool, error) {
	for !d.EOF() {
		h, n, err := d.PeekHead()
		if err != nil {
			return false, err
		}
		if h.Type == StructEnd || tag < h.Tag {
			return false, nil
		}
		if tag == h.Tag {
			return true, nil
		}
		d.pos += n
		if err := d.SkipValue(h); err != nil {
			return false, err
		}
	}
	return false, nil
}

// SkipField consumes the next field, head and value.
func (d *Decoder) SkipField() error {
	h, err := d.ReadHead()
	if err != nil {
		return err
	}
	return d.SkipValue(h)
}

// SkipValue consumes the value of a field whose head was already read.
func (d *Decoder) SkipValue(h Head) error {
	const op = "skip"
	tag := int(h.Tag)
	switch h.Type {
	case Zero, StructEnd:
		return nil
	case Byte:
		_, err := d.take(op, tag, 1)
		return err
	case Short:
		_, err := d.take(op, tag, 2)
		return err
	case Int, Float:
		_, err := d.take(op, tag, 4)
		return err
	case Long, Double:
		_, err := d.take(op, tag, 8)
		return err
	case String1, String4:
		n, err := d.stringLength(op, h)
		if err != nil {
			return err
		}
		_, err = d.take(op, tag, n)
		return err
	case List, Map:
		n, err := d.count(op, tag)
		if err != nil {
			return err
		}
		if h.Type == Map {
			n *= 2
		}
		if err := d.enter(op, tag); err != nil {
			return err
		}
		defer d.leave()
		for i := 0; i < n; i++ {
			if err := d.SkipField(); err != nil {
				return err
			}
		}
		return nil
	case SimpleList:
		n, err := d.simpleListLength(op, tag)
		if err != nil {
			return err
		}
		_, err = d.take(op, tag, n)
		return err
	case StructBegin:
		if err := d.enter(op, tag); err != nil {
			return err
		}
		defer d.leave()
		return d.skipToStructEnd()
	default:
		return malformed(op, tag, ErrInvalidType)
	}
}

// skipToStructEnd consumes fields up to and including the next struct end.
func (d *Decoder) skipToStructEnd() error {
	for {
		h, err := d.ReadHead()
		if err != nil {
			return err
		}
		if h.Type == StructEnd {
			return nil
		}
		if err := d.SkipValue(h); err != nil {
			return err
		}
	}
}

func (d *Decoder) stringLength(op string, h Head) (int, error) {
	if h.Type == String1 {
		b, err := d.take(op, int(h.Tag), 1)
		if err != nil {
			return 0, err
		}
		return int(b[0]), nil
	}
	b, err := d.take(op, int(h.Tag), 4)
	if err != nil {
		return 0, err
	}
	n := int32(binary.BigEndian.Uint32(b))
	if n < 0 || n > MaxStringLength {
		return 0, malformed(op, int(h.Tag), ErrStringTooLong)
	}
	return int(n), nil
}

// count reads the element count that opens a list or map.
func (d *Decoder) count(op string, tag int) (int, error) {
	n, err := d.ReadInt32(0, true)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, malformed(op, tag, ErrNegativeLength)
	}
	if n > MaxCollectionCount {
		return 0, malformed(op, tag, ErrCollectionTooLarge)
	}
	return int(n), nil
}

// simpleListLength reads the byte marker and length of a simple list.
func (d *Decoder) simpleListLength(op string, tag int) (int, error) {
	h, err := d.ReadHead()
	if err != nil {
		return 0, err
	}
	if h.Tag != 0 || h.Type != Byte {
		return 0, malformed(op, tag, ErrBadSimpleList)
	}
	n, err := d.ReadInt32(0, true)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, malformed(op, tag, ErrNegativeLength)
	}
	return int(n), nil
}

// seek positions the decoder on tag and consumes its head. ok is false when
// the field is absent and not required.
func (d *Decoder) seek(op string, tag uint8, required bool) (h Head, ok bool, err error) {
	found, err := d.SkipToTag(tag)
	if err != nil {
		return Head{}, false, err
	}
	if !found {
		if required {
			return Head{}, false, malformed(op, int(tag), ErrFieldMissing)
		}
		return Head{}, false, nil
	}
	h, err = d.ReadHead()
	return h, err == nil, err
}

// readInteger decodes an integer value of physical type h.Type, rejecting
// types wider than max.
func (d *Decoder) readInteger(op string, h Head, max Type) (int64, error) {
	tag := int(h.Tag)
	if !h.Type.integral() || (h.Type != Zero && h.Type > max) {
		return 0, mismatch(op, tag, h.Type)
	}
	switch h.Type {
	case Zero:
		return 0, nil
	case Byte:
		b, err := d.take(op, tag, 1)
		if err != nil {
			return 0, err
		}
		return int64(int8(b[0])), nil
	case Short:
		b, err := d.take(op, tag, 2)
		if err != nil {
			return 0, err
		}
		return int64(int16(binary.BigEndian.Uint16(b))), nil
	case Int:
		b, err := d.take(op, tag, 4)
		if err != nil {
			return 0, err
		}
		return int64(int32(binary.BigEndian.Uint32(b))), nil
	default:
		b, err := d.take(op, tag, 8)
		if err != nil {
			return 0, err
		}
		return int64(binary.BigEndian.Uint64(b)), nil
	}
}

func (d *Decoder) readIntegerField(op string, tag uint8, required bool, max Type) (int64, error) {
	h, ok, err := d.seek(op, tag, required)
	if !ok {
		return 0, err
	}
	return d.readInteger(op, h, max)
}

// ReadInt8 reads a byte field. Missing optional fields yield 0.
func (d *Decoder) ReadInt8(tag uint8, required bool) (int8, error) {
	v, err := d.readIntegerField("read byte", tag, required, Byte)
	return int8(v), err
}

// ReadBool reads a bool encoded as a byte field.
func (d *Decoder) ReadBool(tag uint8, required bool) (bool, error) {
	v, err := d.readIntegerField("read bool", tag, required, Byte)
	return v != 0, err
}

// ReadInt16 reads a short field, widening byte and zero.
func (d *Decoder) ReadInt16(tag uint8, required bool) (int16, error) {
	v, err := d.readIntegerField("read short", tag, required, Short)
	return int16(v), err
}

// ReadInt32 reads an int field, widening short, byte and zero.
func (d *Decoder) ReadInt32(tag uint8, required bool) (int32, error) {
	v, err := d.readIntegerField("read int", tag, required, Int)
	return int32(v), err
}

// ReadInt64 reads a long field, widening any narrower integer type.
func (d *Decoder) ReadInt64(tag uint8, required bool) (int64, error) {
	return d.readIntegerField("read long", tag, required, Long)
}

// ReadFloat32 reads a float field.
func (d *Decoder) ReadFloat32(tag uint8, required bool) (float32, error) {
	const op = "read float"
	h, ok, err := d.seek(op, tag, required)
	if !ok {
		return 0, err
	}
	switch h.Type {
	case Zero:
		return 0, nil
	case Float:
		b, err := d.take(op, int(tag), 4)
		if err != nil {
			return 0, err
		}
		return decodeFloat32(b), nil
	default:
		return 0, mismatch(op, int(tag), h.Type)
	}
}

// ReadFloat64 reads a double field, widening float and zero.
func (d *Decoder) ReadFloat64(tag uint8, required bool) (float64, error) {
	const op = "read double"
	h, ok, err := d.seek(op, tag, required)
	if !ok {
		return 0, err
	}
	switch h.Type {
	case Zero:
		return 0, nil
	case Float:
		b, err := d.take(op, int(tag), 4)
		if err != nil {
			return 0, err
		}
		return float64(decodeFloat32(b)), nil
	case Double:
		b, err := d.take(op, int(tag), 8)
		if err != nil {
			return 0, err
		}
		return decodeFloat64(b), nil
	default:
		return 0, mismatch(op, int(tag), h.Type)
	}
}

// ReadString reads a string field. A zero field decodes to "".
func (d *Decoder) ReadString(tag uint8, required bool) (string, error) {
	const op = "read string"
	h, ok, err := d.seek(op, tag, required)
	if !ok {
		return "", err
	}
	switch h.Type {
	case Zero:
		return "", nil
	case String1, String4:
		n, err := d.stringLength(op, h)
		if err != nil {
			return "", err
		}
		b, err := d.take(op, int(tag), n)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", mismatch(op, int(tag), h.Type)
	}
}

// ReadBytes reads a byte blob. Both the simple list form and a list of
// byte fields are accepted. The returned slice is a copy.
func (d *Decoder) ReadBytes(tag uint8, required bool) ([]byte, error) {
	const op = "read bytes"
	h, ok, err := d.seek(op, tag, required)
	if !ok {
		return nil, err
	}
	switch h.Type {
	case SimpleList:
		n, err := d.simpleListLength(op, int(tag))
		if err != nil {
			return nil, err
		}
		b, err := d.take(op, int(tag), n)
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), b...), nil
	case List:
		n, err := d.count(op, int(tag))
		if err != nil {
			return nil, err
		}
		out := make([]byte, 0, min(n, d.Remaining()))
		for i := 0; i < n; i++ {
			v, err := d.ReadInt8(0, true)
			if err != nil {
				return nil, err
			}
			out = append(out, byte(v))
		}
		return out, nil
	default:
		return nil, mismatch(op, int(tag), h.Type)
	}
}

// ReadStruct decodes a nested struct into s. Fields of s that DecodeTars
// did not consume are skipped. It reports whether the field was present.
func (d *Decoder) ReadStruct(tag uint8, required bool, s Struct) (bool, error) {
	const op = "read struct"
	h, ok, err := d.seek(op, tag, required)
	if !ok {
		return false, err
	}
	if h.Type != StructBegin {
		return false, mismatch(op, int(tag), h.Type)
	}
	if err := d.enter(op, int(tag)); err != nil {
		return false, err
	}
	defer d.leave()
	if err := s.DecodeTars(d); err != nil {
		return false, err
	}
	return true, d.skipToStructEnd()
}

// ReadListFunc reads a list field, calling fn once per element. fn must
// consume exactly one element at tag 0.
func (d *Decoder) ReadListFunc(tag uint8, required bool, fn func(d *Decoder) error) error {
	const op = "read list"
	h, ok, err := d.seek(op, tag, required)
	if !ok {
		return err
	}
	if h.Type != List {
		return mismatch(op, int(tag), h.Type)
	}
	n, err := d.count(op, int(tag))
	if err != nil {
		return err
	}
	if err := d.enter(op, int(tag)); err != nil {
		return err
	}
	defer d.leave()
	for i := 0; i < n; i++ {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

// ReadMapFunc reads a map field, calling fn once per entry. fn must
// consume the key at tag 0 and the value at tag 1.
func (d *Decoder) ReadMapFunc(tag uint8, required bool, fn func(d *Decoder) error) error {
	const op = "read map"
	h, ok, err := d.seek(op, tag, required)
	if !ok {
		return err
	}
	if h.Type != Map {
		return mismatch(op, int(tag), h.Type)
	}
	n, err := d.count(op, int(tag))
	if err != nil {
		return err
	}
	if err := d.enter(op, int(tag)); err != nil {
		return err
	}
	defer d.leave()
	for i := 0; i < n; i++ {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

// ReadStringMap reads a map with string keys and values.
func (d *Decoder) ReadStringMap(tag uint8, required bool) (map[string]string, error) {
	var m map[string]string
	err := d.ReadMapFunc(tag, required, func(d *Decoder) error {
		k, err := d.ReadString(0, true)
		if err != nil {
			return err
		}
		v, err := d.ReadString(1, true)
		if err != nil {
			return err
		}
		if m == nil {
			m = make(map[string]string)
		}
		m[k] = v
		return nil
	})
	return m, err
}

// ReadList reads a list field, decoding each element with fn.
func ReadList[T any](d *Decoder, tag uint8, required bool, fn func(d *Decoder) (T, error)) ([]T, error) {
	var out []T
	err := d.ReadListFunc(tag, required, func(d *Decoder) error {
		v, err := fn(d)
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

// ReadStructList reads a list of structs. newT allocates each element.
func ReadStructList[T Struct](d *Decoder, tag uint8, required bool, newT func() T) ([]T, error) {
	return ReadList(d, tag, required, func(d *Decoder) (T, error) {
		v := newT()
		_, err := d.ReadStruct(0, true, v)
		return v, err
	})
}

func decodeFloat32(b []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}

func decodeFloat64(b []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}
