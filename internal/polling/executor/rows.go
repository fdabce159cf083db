package executor

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/vietddude/dbwatch/internal/core/domain"
)

// row is a result row encoded as an object in column order.
type row struct {
	cols []string
	vals []any
}

func (r row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')

		var v any
		if i < len(r.vals) {
			v = jsonValue(r.vals[i])
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// jsonValue replaces floats JSON cannot carry with their text form.
func jsonValue(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return domain.FormatValue(x)
		}
	case float32:
		if f := float64(x); math.IsNaN(f) || math.IsInf(f, 0) {
			return domain.FormatValue(x)
		}
	}
	return v
}

func marshalRows(cols []string, rows [][]any) (string, error) {
	objs := make([]row, 0, len(rows))
	for _, vals := range rows {
		objs = append(objs, row{cols: cols, vals: vals})
	}
	return domain.MarshalDiscovery(objs)
}
