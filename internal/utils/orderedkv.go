package utils

import (
	"bytes"
	"encoding/json"
	"sort"
)

// OrderedKV is a map value that remembers where it sorts in the JSON output.
type OrderedKV[T any] struct {
	Value T
	Order int64
}

// OrderedKVMap marshals as a JSON object whose keys appear in ascending Order,
// so repeated broadcasts of the same state encode byte-identically.
type OrderedKVMap[T any] map[string]OrderedKV[T]

func (om OrderedKVMap[T]) Set(key string, value T, order int64) {
	om[key] = OrderedKV[T]{Value: value, Order: order}
}

// Keys returns the keys in output order.
func (om OrderedKVMap[T]) Keys() []string {
	keys := make([]string, 0, len(om))
	for k := range om {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		oi, oj := om[keys[i]].Order, om[keys[j]].Order
		if oi == oj {
			return keys[i] < keys[j]
		}
		return oi < oj
	})
	return keys
}

func (om OrderedKVMap[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range om.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valueBytes, err := json.Marshal(om[key].Value)
		if err != nil {
			return nil, err
		}
		buf.Write(valueBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
