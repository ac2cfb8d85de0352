package json

import (
	jsoniter "github.com/json-iterator/go"
)

// JSON is the shared jsoniter instance for all components. It is configured
// for full standard-library compatibility while keeping jsoniter's speed;
// do not create per-package jsoniter configs.
var JSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Marshal serializes v, compatible with the standard library.
func Marshal(v interface{}) ([]byte, error) {
	return JSON.Marshal(v)
}

// MarshalIndent serializes v with indentation, for reports and diagnostics.
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return JSON.MarshalIndent(v, prefix, indent)
}

// Unmarshal deserializes data into v, compatible with the standard library.
func Unmarshal(data []byte, v interface{}) error {
	return JSON.Unmarshal(data, v)
}

// MarshalToString serializes v to a string without the extra []byte copy.
func MarshalToString(v interface{}) (string, error) {
	return JSON.MarshalToString(v)
}

// UnmarshalFromString deserializes a string without the extra []byte copy.
func UnmarshalFromString(str string, v interface{}) error {
	return JSON.UnmarshalFromString(str, v)
}

// RawMessage is the jsoniter-compatible raw JSON type.
type RawMessage = jsoniter.RawMessage
