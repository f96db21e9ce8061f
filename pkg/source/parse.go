package source

import (
	"strconv"

	"github.com/dbis-ilm/pipefabric-go/pkg/tuple"
)

// parseText converts one delimited text field into a tuple value of the
// given kind; unparsable fields become null.
func parseText(s string, kind tuple.Kind) interface{} {
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
