// Package jsoncodec is the JSON collaborator the client delegates to for
// Request.SetJSON / Response.JSON: encode(value) -> bytes (the request
// owns the result) and decode(bytes) -> T. The core spec treats JSON as an
// external contract rather than baking in a specific codec; this module
// wires that contract to github.com/ugorji/go/codec, the JSON library
// named in the pack's own go.mod, rather than reaching for
// encoding/json — matching the instruction to use a pack-grounded library
// wherever the corpus names one.
package jsoncodec

import (
	"github.com/ugorji/go/codec"

	"github.com/oneopane/webhttp/pkg/errors"
)

var jsonHandle = &codec.JsonHandle{}

func init() {
	jsonHandle.Canonical = false
}

// Encode marshals value to its JSON byte representation.
func Encode(value interface{}) ([]byte, error) {
	var out []byte
	enc := codec.NewEncoderBytes(&out, jsonHandle)
	if err := enc.Encode(value); err != nil {
		return nil, errors.NewMalformedResponseError("encoding JSON body", err)
	}
	return out, nil
}

// Decode unmarshals data into target, which must be a pointer.
func Decode(data []byte, target interface{}) error {
	dec := codec.NewDecoderBytes(data, jsonHandle)
	if err := dec.Decode(target); err != nil {
		return errors.NewMalformedResponseError("decoding JSON body", err)
	}
	return nil
}
