// Copyright 2026 The Hearth Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. Same logical data always
// produces identical bytes, which keeps storage rows comparable.
var encMode cbor.EncMode

// decMode is the CBOR decoder configured to accept standard CBOR.
// Unknown fields are ignored for forward compatibility with rows
// written by newer versions.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Identifier types (ref.EventID, ref.RoomID, ref.UserID) implement
	// encoding.TextMarshaler; serialize them as CBOR text strings.
	// Without this, their unexported fields would serialize as empty
	// CBOR maps, losing the identity entirely.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Hearth never writes non-string map keys. When the decoder's
		// target is any, pick map[string]any rather than the CBOR
		// default map[any]any so decoded values interoperate with
		// encoding/json and the rest of the codebase.
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
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

// RawMessage is a raw encoded CBOR value, for delaying decoding or
// embedding pre-encoded output.
type RawMessage = cbor.RawMessage
