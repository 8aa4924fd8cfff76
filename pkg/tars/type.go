package tars

import "fmt"

// Type is the physical value type carried in a field head.
type Type uint8

const (
	Byte        Type = 0
	Short       Type = 1
	Int         Type = 2
	Long        Type = 3
	Float       Type = 4
	Double      Type = 5
	String1     Type = 6
	String4     Type = 7
	Map         Type = 8
	List        Type = 9
	StructBegin Type = 10
	StructEnd   Type = 11
	Zero        Type = 12
	SimpleList  Type = 13
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case Byte:
		return "byte"
	case Short:
		return "short"
	case Int:
		return "int"
	case Long:
		return "long"
	case Float:
		return "float"
	case Double:
		return "double"
	case String1:
		return "string1"
	case String4:
		return "string4"
	case Map:
		return "map"
	case List:
		return "list"
	case StructBegin:
		return "struct-begin"
	case StructEnd:
		return "struct-end"
	case Zero:
		return "zero"
	case SimpleList:
		return "simple-list"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Valid reports whether t is a known wire type.
func (t Type) Valid() bool {
	return t <= SimpleList
}

// integral reports whether t can carry an integer value.
func (t Type) integral() bool {
	return t <= Long || t == Zero
}

// Head describes the next field on the wire.
type Head struct {
	Tag  uint8
	Type Type
}

// String returns a compact form such as "3:long".
func (h Head) String() string {
	return fmt.Sprintf("%d:%s", h.Tag, h.Type)
}

// headSize returns the number of bytes a head with the given tag occupies.
func headSize(tag uint8) int {
	if tag < 15 {
		return 1
	}
	return 2
}
