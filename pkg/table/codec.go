package table

import "github.com/dbis-ilm/pipefabric-go/pkg/tuple"

// TupleCodec returns the row codec for dynamic tuple records using the tuple
// binary serialization.
func TupleCodec() RowCodec[*tuple.Tuple] {
	return RowCodec[*tuple.Tuple]{
		Encode: func(rec *tuple.Tuple) ([]byte, error) {
			return rec.Serialize(nil), nil
		},
		Decode: func(data []byte) (*tuple.Tuple, error) {
			t, _, err := tuple.Deserialize(data)
			return t, err
		},
	}
}
