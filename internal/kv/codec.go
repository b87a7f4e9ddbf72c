package kv

import (
	"github.com/cockroachdb/errors"
	"github.com/segmentio/encoding/json"
)

// Encode marshals v with the segmentio/encoding drop-in, used everywhere
// the WAL and repositories persist Go values as JSON bytes.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "kv: encode")
	}
	return b, nil
}

// Decode unmarshals b into v.
func Decode(b []byte, v any) error {
	if err := json.Unmarshal(b, v); err != nil {
		return errors.Wrap(err, "kv: decode")
	}
	return nil
}
