package kv

import (
	"encoding/json"
	"reflect"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// Documents encode as JSON so field names stay bit-compatible with the
// contributor wire contract, then compress with snappy.

func decode(data []byte, dst interface{}) error {
	data, err := snappy.Decode(nil, data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return err
	}
	return nil
}

func encode(msg interface{}) ([]byte, error) {
	if msg == nil || (reflect.ValueOf(msg).Kind() == reflect.Ptr && reflect.ValueOf(msg).IsNil()) {
		return nil, errors.New("cannot encode nil document")
	}
	enc, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, enc), nil
}
