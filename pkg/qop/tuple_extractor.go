package qop

import (
	"bytes"
	"strconv"

	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
	"github.com/dbis-ilm/pipefabric-go/pkg/tuple"
)

// TupleExtractor parses a delimited text line, as produced by the file and
// socket sources, into a typed tuple according to the given field schema.
// Fields that fail to parse become null.
type TupleExtractor struct {
	UnaryTransform[*tuple.Tuple, *tuple.Tuple]
	schema []tuple.Kind
	sep    byte
}

// NewTupleExtractor creates a new extractor producing tuples with the given
// field kinds from lines split at sep.
func NewTupleExtractor(schema []tuple.Kind, sep byte) *TupleExtractor {
	op := &TupleExtractor{schema: schema, sep: sep}
	op.InitUnary("TupleExtractor", false, op.processElement, op.processPunctuation)
	return op
}

func (op *TupleExtractor) processElement(data *tuple.Tuple, outdated bool) {
	var line []byte
	if data.Kind(0) == tuple.KindStringRef {
		line = data.Bytes(0)
	} else {
		line = []byte(data.String(0))
	}

	vals := make([]interface{}, len(op.schema))
	parts := bytes.Split(line, []byte{op.sep})
	for i, kind := range op.schema {
		if i >= len(parts) {
			vals[i] = tuple.Null(kind)
			continue
		}
		vals[i] = parseField(parts[i], kind)
	}
	out, err := tuple.New(vals...)
	if err != nil {
		// a malformed line is dropped, not fatal
		return
	}
	op.PublishElement(out, outdated)
}

func parseField(part []byte, kind tuple.Kind) interface{} {
	s := string(part)
	switch kind {
	case tuple.KindInt:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return tuple.Null(kind)
		}
		return v
	case tuple.KindUInt:
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return tuple.Null(kind)
		}
		return v
	case tuple.KindDouble:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return tuple.Null(kind)
		}
		return v
	default:
		return s
	}
}

func (op *TupleExtractor) processPunctuation(p *stream.Punctuation) {
	op.PublishPunctuation(p)
}
