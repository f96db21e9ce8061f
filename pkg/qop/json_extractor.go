package qop

import (
	"encoding/json"

	"github.com/dbis-ilm/pipefabric-go/pkg/stream"
	"github.com/dbis-ilm/pipefabric-go/pkg/tuple"
)

// JSONExtractor parses a JSON object from a one-field text tuple and
// produces a tuple with the values of the requested keys, in key order.
// Missing keys become null string fields; numbers are extracted as doubles.
type JSONExtractor struct {
	UnaryTransform[*tuple.Tuple, *tuple.Tuple]
	keys []string
}

// NewJSONExtractor creates a new extractor for the given object keys.
func NewJSONExtractor(keys []string) *JSONExtractor {
	op := &JSONExtractor{keys: keys}
	op.InitUnary("JSONExtractor", false, op.processElement, op.processPunctuation)
	return op
}

func (op *JSONExtractor) processElement(data *tuple.Tuple, outdated bool) {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(data.String(0)), &doc); err != nil {
		// a malformed document is dropped, not fatal
		return
	}

	vals := make([]interface{}, len(op.keys))
	for i, key := range op.keys {
		switch v := doc[key].(type) {
		case string:
			vals[i] = v
		case float64:
			vals[i] = v
		case bool:
			if v {
				vals[i] = int64(1)
			} else {
				vals[i] = int64(0)
			}
		default:
			vals[i] = tuple.Null(tuple.KindString)
		}
	}
	out, err := tuple.New(vals...)
	if err != nil {
		return
	}
	op.PublishElement(out, outdated)
}

func (op *JSONExtractor) processPunctuation(p *stream.Punctuation) {
	op.PublishPunctuation(p)
}
