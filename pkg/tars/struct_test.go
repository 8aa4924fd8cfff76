package tars

import (
	"strings"
	"testing"
)

func TestNewTableRejectsDuplicates(t *testing.T) {
	tests := []struct {
		name   string
		fields []FieldDesc
		want   string
	}{
		{"duplicate name", []FieldDesc{Desc("a", 0, Int), Desc("a", 1, Int)}, "duplicate field name"},
		{"duplicate tag", []FieldDesc{Desc("a", 0, Int), Desc("b", 0, Long)}, "duplicate tag"},
		{"struct end", []FieldDesc{Desc("a", 0, StructEnd)}, "invalid type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable("T", tt.fields...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("NewTable() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestTableLookup(t *testing.T) {
	table := MustTable("Msg",
		Desc("body", 3, SimpleList),
		Desc("seq", 0, Long),
		Desc("from", 1, Long),
	)

	if got := table.Tag("body"); got != 3 {
		t.Errorf("Tag(body) = %d, want 3", got)
	}
	fields := table.Fields()
	if fields[0].Name != "seq" || fields[2].Name != "body" {
		t.Errorf("Fields() order = %v, want tag order", fields)
	}
	if !table.Accepts(0, Byte) || !table.Accepts(0, Zero) {
		t.Error("Accepts(seq, byte|zero) = false, want true")
	}
	if table.Accepts(0, String1) {
		t.Error("Accepts(seq, string1) = true, want false")
	}
	if !table.Accepts(42, String1) {
		t.Error("Accepts(unknown tag) = false, want true")
	}

	defer func() {
		if recover() == nil {
			t.Error("Tag(unknown) did not panic")
		}
	}()
	table.Tag("nope")
}

func TestDump(t *testing.T) {
	table := MustTable("Msg", Desc("seq", 0, Long), Desc("text", 1, String1))
	e := NewEncoder()
	e.WriteInt64(0, 5)
	e.WriteString(1, "hi")
	e.WriteStruct(2, &inner{A: 1, B: "x"})
	e.WriteBytes(3, []byte{0xCA, 0xFE})

	out := Dump(e.Bytes(), table)
	for _, want := range []string{"0 seq: 5", `1 text: "hi"`, "2: struct {", `1: "x"`, "3: bytes[2] cafe"} {
		if !strings.Contains(out, want) {
			t.Errorf("Dump() missing %q in:\n%s", want, out)
		}
	}

	e = NewEncoder()
	e.WriteString(0, "five")
	out = Dump(e.Bytes(), table)
	if want := "0 seq (want " + Long.String() + ")"; !strings.Contains(out, want) {
		t.Errorf("Dump(mistyped) missing %q in:\n%s", want, out)
	}

	out = Dump([]byte{0x0E}, nil)
	if !strings.Contains(out, "!error") {
		t.Errorf("Dump(invalid) = %q, want error marker", out)
	}
}

func TestDecodeFields(t *testing.T) {
	e := NewEncoder()
	WriteList(e, 0, []int32{1, 2}, func(e *Encoder, v int32) { e.WriteInt32(0, v) })
	e.WriteStringMap(1, map[string]string{"k": "v"})

	fields, err := DecodeFields(e.Bytes())
	if err != nil {
		t.Fatalf("DecodeFields() error = %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("len(fields) = %d, want 2", len(fields))
	}
	if l := fields[0].Value; l.Type != List || len(l.Elems) != 2 || l.Elems[1].Int != 2 {
		t.Errorf("list = %+v, want [1 2]", l)
	}
	if m := fields[1].Value; m.Type != Map || len(m.Entries) != 1 || m.Entries[0].Key.Str != "k" || m.Entries[0].Value.Str != "v" {
		t.Errorf("map = %+v, want {k: v}", m)
	}
}
