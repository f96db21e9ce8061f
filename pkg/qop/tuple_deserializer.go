package qop

import (
	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
	"github.com/dbis-ilm/pipefabric-go/pkg/tuple"
)

// TupleDeserializer decodes binary-encoded tuples received as the byte
// payload of a one-field tuple, as produced by the socket sources in binary
// mode.
type TupleDeserializer struct {
	UnaryTransform[*tuple.Tuple, *tuple.Tuple]
}

// NewTupleDeserializer creates a new deserializing transform.
func NewTupleDeserializer() *TupleDeserializer {
	op := &TupleDeserializer{}
	op.InitUnary("TupleDeserializer", false, op.processElement, op.processPunctuation)
	return op
}

func (op *TupleDeserializer) processElement(data *tuple.Tuple, outdated bool) {
	var payload []byte
	if data.Kind(0) == tuple.KindStringRef {
		payload = data.Bytes(0)
	} else {
		payload = []byte(data.String(0))
	}
	out, _, err := tuple.Deserialize(payload)
	if err != nil {
		// a corrupt element is dropped, not fatal
		return
	}
	op.PublishElement(out, outdated)
}

func (op *TupleDeserializer) processPunctuation(p *stream.Punctuation) {
	op.PublishPunctuation(p)
}
