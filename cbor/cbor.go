// Package cbor is the single place where the module configures github.com/fxamacker/cbor.
// Protocol messages on the wire and user records in the bolt directory both go through it, so
// both share the same rules:
//
//  1. Encoding follows Core Deterministic Encoding (RFC 8949 section 4.2.1), so equal values
//     always produce equal bytes.
//  2. Decoding rejects duplicate map keys and indefinite-length items, and bounds container
//     sizes. Peers are untrusted.
//  3. Tags are not used. Integers of arbitrary size travel as byte strings through
//     big.Int's BinaryMarshaler.
package cbor

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Protocol messages and user records are small; these limits are generous.
const (
	MaxArrayElements = 1024 * 16
	MaxMapPairs      = 64
	MaxNestedLevels  = 8
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCoreDeterministic,
		ShortestFloat: cbor.ShortestFloat16,
		NaNConvert:    cbor.NaNConvert7e00,
		InfConvert:    cbor.InfConvertFloat16,
		IndefLength:   cbor.IndefLengthForbidden,
		TagsMd:        cbor.TagsForbidden,
	}.EncMode()
	if err != nil {
		panic(err)
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		IndefLength:      cbor.IndefLengthForbidden,
		TagsMd:           cbor.TagsForbidden,
		MaxArrayElements: MaxArrayElements,
		MaxMapPairs:      MaxMapPairs,
		MaxNestedLevels:  MaxNestedLevels,
		// Unknown fields are ignored so that newer peers can add fields.
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshal encodes src into a CBOR-encoded byte slice.
func Marshal(src interface{}) ([]byte, error) {
	return encMode.Marshal(src)
}

// Unmarshal decodes CBOR in data into dst.
func Unmarshal(data []byte, dst interface{}) error {
	return decMode.Unmarshal(data, dst)
}

// NewEncoder creates a new CBOR encoder that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder creates a new CBOR decoder that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}
