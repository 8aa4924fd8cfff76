package tars

import (
	"encoding/hex"
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// Value is a decoded field value of any type. Which payload is set depends
// on Type: Int for integer types and zero, Float for float and double,
// Str for strings, Bytes for simple lists, Elems for lists, Entries for
// maps and Fields for structs.
type Value struct {
	Type    Type
	Int     int64
	Float   float64
	Str     string
	Bytes   []byte
	Elems   []Value
	Entries []Entry
	Fields  []Field
}

// Entry is one key/value pair of a map value.
type Entry struct {
	Key   Value
	Value Value
}

// Field is a tagged value.
type Field struct {
	Tag   uint8
	Value Value
}

// ReadValue decodes the value of a field whose head was already read.
func (d *Decoder) ReadValue(h Head) (Value, error) {
	const op = "read value"
	tag := int(h.Tag)
	v := Value{Type: h.Type}
	switch h.Type {
	case Zero, Byte, Short, Int, Long:
		n, err := d.readInteger(op, h, Long)
		v.Int = n
		return v, err
	case Float:
		b, err := d.take(op, tag, 4)
		if err != nil {
			return v, err
		}
		v.Float = float64(decodeFloat32(b))
		return v, nil
	case Double:
		b, err := d.take(op, tag, 8)
		if err != nil {
			return v, err
		}
		v.Float = decodeFloat64(b)
		return v, nil
	case String1, String4:
		n, err := d.stringLength(op, h)
		if err != nil {
			return v, err
		}
		b, err := d.take(op, tag, n)
		v.Str = string(b)
		return v, err
	case SimpleList:
		n, err := d.simpleListLength(op, tag)
		if err != nil {
			return v, err
		}
		b, err := d.take(op, tag, n)
		v.Bytes = append([]byte(nil), b...)
		return v, err
	case List, Map:
		n, err := d.count(op, tag)
		if err != nil {
			return v, err
		}
		if err := d.enter(op, tag); err != nil {
			return v, err
		}
		defer d.leave()
		for i := 0; i < n; i++ {
			first, err := d.readField()
			if err != nil {
				return v, err
			}
			if h.Type == List {
				v.Elems = append(v.Elems, first.Value)
				continue
			}
			second, err := d.readField()
			if err != nil {
				return v, err
			}
			v.Entries = append(v.Entries, Entry{Key: first.Value, Value: second.Value})
		}
		return v, nil
	case StructBegin:
		if err := d.enter(op, tag); err != nil {
			return v, err
		}
		defer d.leave()
		for {
			f, err := d.readField()
			if err != nil {
				return v, err
			}
			if f.Value.Type == StructEnd {
				return v, nil
			}
			v.Fields = append(v.Fields, f)
		}
	case StructEnd:
		return v, nil
	default:
		return v, malformed(op, tag, ErrInvalidType)
	}
}

func (d *Decoder) readField() (Field, error) {
	h, err := d.ReadHead()
	if err != nil {
		return Field{}, err
	}
	v, err := d.ReadValue(h)
	return Field{Tag: h.Tag, Value: v}, err
}

// Fields returns an iterator over the top-level fields remaining in the
// decoder. Iteration stops after the first error.
func (d *Decoder) Fields() iter.Seq2[Field, error] {
	return func(yield func(Field, error) bool) {
		for !d.EOF() {
			f, err := d.readField()
			if !yield(f, err) || err != nil {
				return
			}
		}
	}
}

// DecodeFields decodes data as a sequence of fields without a schema.
func DecodeFields(data []byte) ([]Field, error) {
	var out []Field
	for f, err := range NewDecoder(data).Fields() {
		if err != nil {
			return out, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Dump renders data as an indented field tree. When table is non-nil its
// field names label the top-level tags. Undecodable tails are reported
// inline.
func Dump(data []byte, table *Table) string {
	var sb strings.Builder
	d := NewDecoder(data)
	for f, err := range d.Fields() {
		if err != nil {
			fmt.Fprintf(&sb, "!error at byte %d: %v\n", d.Position(), err)
			break
		}
		writeField(&sb, f, table, 0)
	}
	return sb.String()
}

func writeField(sb *strings.Builder, f Field, table *Table, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(strconv.Itoa(int(f.Tag)))
	if table != nil {
		if desc, ok := table.Lookup(f.Tag); ok {
			sb.WriteString(" " + desc.Name)
			if !table.Accepts(f.Tag, f.Value.Type) {
				fmt.Fprintf(sb, " (want %s)", desc.Type)
			}
		}
	}
	sb.WriteString(": ")
	writeValue(sb, f.Value, depth)
	sb.WriteByte('\n')
}

func writeValue(sb *strings.Builder, v Value, depth int) {
	switch v.Type {
	case Zero, Byte, Short, Int, Long:
		sb.WriteString(strconv.FormatInt(v.Int, 10))
	case Float, Double:
		sb.WriteString(strconv.FormatFloat(v.Float, 'g', -1, 64))
	case String1, String4:
		sb.WriteString(strconv.Quote(v.Str))
	case SimpleList:
		fmt.Fprintf(sb, "bytes[%d] %s", len(v.Bytes), hex.EncodeToString(v.Bytes))
	case List:
		fmt.Fprintf(sb, "list[%d]", len(v.Elems))
		for i, e := range v.Elems {
			sb.WriteByte('\n')
			sb.WriteString(strings.Repeat("  ", depth+1))
			fmt.Fprintf(sb, "[%d]: ", i)
			writeValue(sb, e, depth+1)
		}
	case Map:
		fmt.Fprintf(sb, "map[%d]", len(v.Entries))
		for _, e := range v.Entries {
			sb.WriteByte('\n')
			sb.WriteString(strings.Repeat("  ", depth+1))
			writeValue(sb, e.Key, depth+1)
			sb.WriteString(" => ")
			writeValue(sb, e.Value, depth+1)
		}
	case StructBegin:
		sb.WriteString("struct {\n")
		for _, f := range v.Fields {
			writeField(sb, f, nil, depth+1)
		}
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString("}")
	default:
		sb.WriteString(v.Type.String())
	}
}
