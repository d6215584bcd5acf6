// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// HandleTag is the CBOR tag number that wraps a Handle on the wire. The
// number sits in the first-come-first-served range of the IANA CBOR
// tag registry and is not assigned to anything else we encode.
const HandleTag = 39999

// Handle is the wire form of a reference to an object that lives in the
// host process. It is always encoded as tag HandleTag wrapping the map
// {id, kind}, so a handle can never be mistaken for plain data when it
// appears in call arguments, call results, or the reference table.
type Handle struct {
	ID   uint64 `cbor:"id"`
	Kind string `cbor:"kind"`
}

// String renders the handle as kind#id.
func (h Handle) String() string {
	return fmt.Sprintf("%s#%d", h.Kind, h.ID)
}

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. Handle values are wrapped in
// HandleTag.
var encMode cbor.EncMode

// decMode is the CBOR decoder. Unknown fields are silently ignored so
// a newer peer can add fields without breaking an older one. Handle
// values must carry HandleTag.
var decMode cbor.DecMode

func init() {
	tags := cbor.NewTagSet()
	if err := tags.Add(
		cbor.TagOptions{EncTag: cbor.EncTagRequired, DecTag: cbor.DecTagRequired},
		reflect.TypeOf(Handle{}),
		HandleTag,
	); err != nil {
		panic("codec: registering handle tag failed: " + err.Error())
	}

	var err error
	encMode, err = cbor.CoreDetEncOptions().EncModeWithTags(tags)
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		// Map keys are always strings. Values decoded into any must
		// come out as map[string]any so they can be handed straight
		// to callers and to encoding/json.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecModeWithTags(tags)
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encoder is a CBOR stream encoder. Type alias so consumers import
// only lib/codec, not fxamacker/cbor directly.
type Encoder = cbor.Encoder

// Decoder is a CBOR stream decoder.
type Decoder = cbor.Decoder

// RawMessage is a raw encoded CBOR value, used to delay decoding of
// call arguments and results until the receiver knows their type.
type RawMessage = cbor.RawMessage

// NewEncoder returns a CBOR encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a CBOR decoder that reads successive values from r.
// CBOR is self-delimiting, so one decoder can read a whole request
// stream without additional framing.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for data.
// Used for debug logging of unexpected payloads.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
