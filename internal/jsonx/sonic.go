// Package jsonx provides high-performance JSON serialization using Sonic.
// This is a drop-in replacement for encoding/json for the hot paths of the
// invoker: response decoding and validation of model output.
package jsonx

import (
	"github.com/bytedance/sonic"
)

// Marshal returns the JSON encoding of v using Sonic.
func Marshal(v interface{}) ([]byte, error) {
	return sonic.Marshal(v)
}

// Unmarshal parses the JSON-encoded data and stores the result
// in the value pointed to by v using Sonic.
func Unmarshal(data []byte, v interface{}) error {
	return sonic.Unmarshal(data, v)
}

// MarshalToString is like Marshal but returns the JSON as a string.
// This avoids an allocation when converting []byte to string.
func MarshalToString(v interface{}) (string, error) {
	return sonic.MarshalString(v)
}

// UnmarshalFromString parses the JSON string and stores the result in v.
func UnmarshalFromString(data string, v interface{}) error {
	return sonic.UnmarshalString(data, v)
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return sonic.Valid(data)
}
