package tuple

import (
	"encoding/binary"
	"math"
)

// Binary tuple layout: uvarint arity, null-mask bytes, then for every field a
// kind tag followed by the value (zigzag varint for ints, uvarint for uints,
// 8-byte little-endian IEEE754 for doubles, uvarint length + bytes for
// strings). Null fields carry only the kind tag. StringRef fields are encoded
// as owned strings; decoding never produces KindStringRef.

// Serialize appends the binary encoding of the tuple to buf and returns the
// extended slice.
func (t *Tuple) Serialize(buf []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(t.fields)))
	buf = append(buf, t.nulls...)
	for i, f := range t.fields {
		kind := f.kind
		if kind == KindStringRef {
			kind = KindString
		}
		buf = append(buf, byte(kind))
		if t.IsNull(i) {
			continue
		}
		switch f.kind {
		case KindInt:
			buf = binary.AppendVarint(buf, f.i)
		case KindUInt:
			buf = binary.AppendUvarint(buf, f.u)
		case KindDouble:
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(f.d))
		case KindString:
			buf = binary.AppendUvarint(buf, uint64(len(f.s)))
			buf = append(buf, f.s...)
		case KindStringRef:
			buf = binary.AppendUvarint(buf, uint64(len(f.b)))
			buf = append(buf, f.b...)
		}
	}
	return buf
}

// Deserialize decodes a tuple from data, returning the tuple and the number
// of bytes consumed.
func Deserialize(data []byte) (*Tuple, int, error) {
	arity, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, 0, ErrCorruptData
	}
	pos := n
	maskLen := (int(arity) + 7) / 8
	if len(data) < pos+maskLen {
		return nil, 0, ErrCorruptData
	}
	t := &Tuple{
		fields: make([]field, arity),
		nulls:  append([]byte(nil), data[pos:pos+maskLen]...),
	}
	pos += maskLen

	for i := 0; i < int(arity); i++ {
		if pos >= len(data) {
			return nil, 0, ErrCorruptData
		}
		kind := Kind(data[pos])
		pos++
		t.fields[i].kind = kind
		if t.IsNull(i) {
			continue
		}
		switch kind {
		case KindInt:
			v, n := binary.Varint(data[pos:])
			if n <= 0 {
				return nil, 0, ErrCorruptData
			}
			t.fields[i].i = v
			pos += n
		case KindUInt:
			v, n := binary.Uvarint(data[pos:])
			if n <= 0 {
				return nil, 0, ErrCorruptData
			}
			t.fields[i].u = v
			pos += n
		case KindDouble:
			if len(data) < pos+8 {
				return nil, 0, ErrCorruptData
			}
			t.fields[i].d = math.Float64frombits(binary.LittleEndian.Uint64(data[pos:]))
			pos += 8
		case KindString:
			l, n := binary.Uvarint(data[pos:])
			if n <= 0 || len(data) < pos+n+int(l) {
				return nil, 0, ErrCorruptData
			}
			pos += n
			t.fields[i].s = string(data[pos : pos+int(l)])
			pos += int(l)
		default:
			return nil, 0, ErrCorruptData
		}
	}
	return t, pos, nil
}
