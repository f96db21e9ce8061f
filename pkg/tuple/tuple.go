// Package tuple implements the record type carried between stream operators:
// a fixed-arity heterogeneous tuple with a per-field null mask. Tuples are
// immutable after construction and shared between operators by pointer; an
// outdated emission never copies the tuple.
package tuple

import (
	"fmt"
	"strings"
)

// Kind identifies the type of a tuple field.
type Kind uint8

const (
	KindNone Kind = iota
	KindInt
	KindUInt
	KindDouble
	KindString
	// KindStringRef is a byte view into a buffer owned by the producing
	// source. Operators keeping the tuple beyond the producing call must
	// Clone it.
	KindStringRef
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUInt:
		return "uint"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindStringRef:
		return "stringref"
	default:
		return "none"
	}
}

// nullValue marks a null field in New.
type nullValue struct{ Kind Kind }

// Null returns a placeholder for a null field of the given kind.
func Null(k Kind) interface{} { return nullValue{Kind: k} }

type field struct {
	kind Kind
	i    int64
	u    uint64
	d    float64
	s    string
	b    []byte
}

// Tuple is an immutable fixed-arity record. The zero value is not usable;
// construct tuples with New or MustNew.
type Tuple struct {
	fields []field
	nulls  []byte // one bit per field
}

// New constructs a tuple from the given values. Supported value types:
// int, int32, int64 (KindInt); uint, uint32, uint64 (KindUInt); float64
// (KindDouble); string (KindString); []byte (KindStringRef); Null(kind)
// for a null field. Any other value is a type error.
func New(values ...interface{}) (*Tuple, error) {
	t := &Tuple{
		fields: make([]field, len(values)),
		nulls:  make([]byte, (len(values)+7)/8),
	}
	for i, v := range values {
		switch val := v.(type) {
		case int:
			t.fields[i] = field{kind: KindInt, i: int64(val)}
		case int32:
			t.fields[i] = field{kind: KindInt, i: int64(val)}
		case int64:
			t.fields[i] = field{kind: KindInt, i: val}
		case uint:
			t.fields[i] = field{kind: KindUInt, u: uint64(val)}
		case uint32:
			t.fields[i] = field{kind: KindUInt, u: uint64(val)}
		case uint64:
			t.fields[i] = field{kind: KindUInt, u: val}
		case float64:
			t.fields[i] = field{kind: KindDouble, d: val}
		case string:
			t.fields[i] = field{kind: KindString, s: val}
		case []byte:
			t.fields[i] = field{kind: KindStringRef, b: val}
		case nullValue:
			t.fields[i] = field{kind: val.Kind}
			t.nulls[i/8] |= 1 << (uint(i) % 8)
		default:
			return nil, NewTypeError(i, "int/uint/double/string/stringref", fmt.Sprintf("%T", v))
		}
	}
	return t, nil
}

// MustNew constructs a tuple and panics on a type error. Intended for
// literals in tests and generators.
func MustNew(values ...interface{}) *Tuple {
	t, err := New(values...)
	if err != nil {
		panic(err)
	}
	return t
}

// Arity returns the number of fields.
func (t *Tuple) Arity() int { return len(t.fields) }

// Kind returns the kind of field i.
func (t *Tuple) Kind(i int) Kind {
	t.check(i)
	return t.fields[i].kind
}

// IsNull reports whether field i is null.
func (t *Tuple) IsNull(i int) bool {
	t.check(i)
	return t.nulls[i/8]&(1<<(uint(i)%8)) != 0
}

// Int returns field i as int64; panics if the field has a different kind.
func (t *Tuple) Int(i int) int64 {
	t.check(i)
	t.checkKind(i, KindInt)
	return t.fields[i].i
}

// UInt returns field i as uint64; panics if the field has a different kind.
func (t *Tuple) UInt(i int) uint64 {
	t.check(i)
	t.checkKind(i, KindUInt)
	return t.fields[i].u
}

// Double returns field i as float64; panics if the field has a different kind.
func (t *Tuple) Double(i int) float64 {
	t.check(i)
	t.checkKind(i, KindDouble)
	return t.fields[i].d
}

// String returns field i as a string. A StringRef field is converted,
// copying the bytes.
func (t *Tuple) String(i int) string {
	t.check(i)
	f := t.fields[i]
	switch f.kind {
	case KindString:
		return f.s
	case KindStringRef:
		return string(f.b)
	default:
		panic(fmt.Sprintf("tuple: field %d is %s, not string", i, f.kind))
	}
}

// Bytes returns the raw view of a StringRef field. The returned slice is
// only valid during the producing call.
func (t *Tuple) Bytes(i int) []byte {
	t.check(i)
	t.checkKind(i, KindStringRef)
	return t.fields[i].b
}

// Clone returns a deep copy of the tuple. StringRef fields are materialized
// into owned strings so the copy outlives the producer's buffer.
func (t *Tuple) Clone() *Tuple {
	c := &Tuple{
		fields: make([]field, len(t.fields)),
		nulls:  append([]byte(nil), t.nulls...),
	}
	for i, f := range t.fields {
		if f.kind == KindStringRef {
			c.fields[i] = field{kind: KindString, s: string(f.b)}
		} else {
			c.fields[i] = f
		}
	}
	return c
}

// Concat builds the concatenation of two tuples, as produced by a join.
// Field values are shared, not copied.
func Concat(l, r *Tuple) *Tuple {
	n := len(l.fields) + len(r.fields)
	c := &Tuple{
		fields: make([]field, 0, n),
		nulls:  make([]byte, (n+7)/8),
	}
	c.fields = append(c.fields, l.fields...)
	c.fields = append(c.fields, r.fields...)
	for i := 0; i < len(l.fields); i++ {
		if l.IsNull(i) {
			c.nulls[i/8] |= 1 << (uint(i) % 8)
		}
	}
	for i := 0; i < len(r.fields); i++ {
		j := len(l.fields) + i
		if r.IsNull(i) {
			c.nulls[j/8] |= 1 << (uint(j) % 8)
		}
	}
	return c
}

// Format renders the tuple with the given field delimiter, e.g. for console
// and file sinks.
func (t *Tuple) Format(delim string) string {
	var sb strings.Builder
	for i, f := range t.fields {
		if i > 0 {
			sb.WriteString(delim)
		}
		if t.IsNull(i) {
			sb.WriteString("NULL")
			continue
		}
		switch f.kind {
		case KindInt:
			fmt.Fprintf(&sb, "%d", f.i)
		case KindUInt:
			fmt.Fprintf(&sb, "%d", f.u)
		case KindDouble:
			fmt.Fprintf(&sb, "%g", f.d)
		case KindString:
			sb.WriteString(f.s)
		case KindStringRef:
			sb.Write(f.b)
		}
	}
	return sb.String()
}

func (t *Tuple) check(i int) {
	if i < 0 || i >= len(t.fields) {
		panic(fmt.Sprintf("tuple: field index %d out of range (arity %d)", i, len(t.fields)))
	}
}

func (t *Tuple) checkKind(i int, k Kind) {
	if t.fields[i].kind != k {
		panic(fmt.Sprintf("tuple: field %d is %s, not %s", i, t.fields[i].kind, k))
	}
}
