// Package tars implements the tag-length-value structural codec used for
// every frame exchanged with the IM service.
//
// # Wire Format
//
// Each field starts with a head that packs the field tag and the value type:
//
//	┌──────────────┬──────────────┐
//	│ Tag (4 bits) │ Type (4 bits)│        tag < 15
//	└──────────────┴──────────────┘
//	┌──────────────┬──────────────┬──────────────────┐
//	│ 0xF (4 bits) │ Type (4 bits)│ Tag (1 byte)     │ 15 <= tag <= 255
//	└──────────────┴──────────────┴──────────────────┘
//
// The value that follows is determined by the type:
//
//   - Zero: no bytes, the zero value of any numeric, string or bool field
//   - Byte, Short, Int, Long: 1, 2, 4, 8 bytes big-endian
//   - Float, Double: IEEE 754, 4 or 8 bytes big-endian
//   - String1: 1-byte length + bytes
//   - String4: 4-byte length + bytes
//   - List: count (int at tag 0) + count elements at tag 0
//   - Map: count (int at tag 0) + count pairs, keys at tag 0, values at tag 1
//   - SimpleList: byte head at tag 0 + length (int at tag 0) + raw bytes
//   - StructBegin ... StructEnd: nested fields
//
// # Numeric Widening
//
// Encoders pick the narrowest physical type able to hold a value. Decoders
// widen whatever they find to the requested width, and reject anything wider
// or non-numeric.
//
// # Skipping
//
// Decoding seeks fields by tag. Fields with smaller tags that are not asked
// for are skipped according to their type, recursing into nested structures,
// so unknown fields never break decoding of the known ones.
//
// # Usage
//
// Types implement [Struct] and are serialized with [Marshal] and [Unmarshal]:
//
//	func (m *Ping) EncodeTars(e *tars.Encoder) {
//	    e.WriteInt64(0, m.Seq)
//	    e.WriteString(1, m.Text)
//	}
//
//	func (m *Ping) DecodeTars(d *tars.Decoder) (err error) {
//	    if m.Seq, err = d.ReadInt64(0, true); err != nil {
//	        return err
//	    }
//	    m.Text, err = d.ReadString(1, false)
//	    return err
//	}
package tars
