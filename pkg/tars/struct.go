package tars

import (
	"fmt"
	"slices"
)

// Struct is implemented by types with a tagged wire representation.
type Struct interface {
	// EncodeTars writes the fields of the struct, without the surrounding
	// struct-begin and struct-end heads.
	EncodeTars(e *Encoder)

	// DecodeTars reads the fields of the struct. Unknown fields are skipped
	// by the caller.
	DecodeTars(d *Decoder) error
}

// Marshal encodes s as a top-level field sequence.
func Marshal(s Struct) []byte {
	e := NewEncoder()
	s.EncodeTars(e)
	return e.Bytes()
}

// Unmarshal decodes a top-level field sequence into s. Fields after the last
// one s reads are skipped and validated.
func Unmarshal(data []byte, s Struct) error {
	d := NewDecoder(data)
	if err := s.DecodeTars(d); err != nil {
		return err
	}
	for !d.EOF() {
		h, err := d.ReadHead()
		if err != nil {
			return err
		}
		if h.Type == StructEnd {
			return malformed("unmarshal", int(h.Tag), ErrTrailingData)
		}
		if err := d.SkipValue(h); err != nil {
			return err
		}
	}
	return nil
}

// FieldDesc describes one field of a struct.
type FieldDesc struct {
	Name string
	Tag  uint8
	Type Type
}

// Desc is shorthand for a FieldDesc literal.
func Desc(name string, tag uint8, t Type) FieldDesc {
	return FieldDesc{Name: name, Tag: tag, Type: t}
}

// Table is the static field table of a struct type: a mapping from field
// name to tag and logical type. Tables are declared once per type and used
// to name fields in diagnostics.
type Table struct {
	name   string
	fields []FieldDesc
	byName map[string]int
	byTag  map[uint8]int
}

// NewTable builds a table, rejecting duplicate names or tags.
func NewTable(name string, fields ...FieldDesc) (*Table, error) {
	t := &Table{
		name:   name,
		fields: slices.Clone(fields),
		byName: make(map[string]int, len(fields)),
		byTag:  make(map[uint8]int, len(fields)),
	}
	slices.SortStableFunc(t.fields, func(a, b FieldDesc) int {
		return int(a.Tag) - int(b.Tag)
	})
	for i, f := range t.fields {
		if _, dup := t.byName[f.Name]; dup {
			return nil, fmt.Errorf("tars: table %s: duplicate field name %q", name, f.Name)
		}
		if _, dup := t.byTag[f.Tag]; dup {
			return nil, fmt.Errorf("tars: table %s: duplicate tag %d", name, f.Tag)
		}
		if !f.Type.Valid() || f.Type == StructEnd {
			return nil, fmt.Errorf("tars: table %s: field %q has invalid type %s", name, f.Name, f.Type)
		}
		t.byName[f.Name] = i
		t.byTag[f.Tag] = i
	}
	return t, nil
}

// MustTable is like NewTable but panics on error. It is meant for
// package-level table declarations.
func MustTable(name string, fields ...FieldDesc) *Table {
	t, err := NewTable(name, fields...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the struct name.
func (t *Table) Name() string {
	return t.name
}

// Fields returns the field descriptors in tag order.
func (t *Table) Fields() []FieldDesc {
	return slices.Clone(t.fields)
}

// Tag returns the tag of the named field. It panics for unknown names,
// which is a programming error.
func (t *Table) Tag(name string) uint8 {
	i, ok := t.byName[name]
	if !ok {
		panic(fmt.Sprintf("tars: table %s has no field %q", t.name, name))
	}
	return t.fields[i].Tag
}

// Lookup returns the descriptor for tag.
func (t *Table) Lookup(tag uint8) (FieldDesc, bool) {
	i, ok := t.byTag[tag]
	if !ok {
		return FieldDesc{}, false
	}
	return t.fields[i], true
}

// Accepts reports whether a field with physical type physical may be
// decoded as the logical type of the named tag, following the widening
// rules of the decoder.
func (t *Table) Accepts(tag uint8, physical Type) bool {
	f, ok := t.Lookup(tag)
	if !ok {
		return true
	}
	return compatible(f.Type, physical)
}

func compatible(logical, physical Type) bool {
	switch logical {
	case Byte, Short, Int, Long:
		return physical == Zero || (physical <= logical)
	case Float:
		return physical == Zero || physical == Float
	case Double:
		return physical == Zero || physical == Float || physical == Double
	case String1, String4:
		return physical == Zero || physical == String1 || physical == String4
	case SimpleList:
		return physical == SimpleList || physical == List
	default:
		return physical == logical
	}
}

// Tabled is implemented by structs that publish their field table.
type Tabled interface {
	TarsTable() *Table
}
