// Package big contains a "math/big".Int work-alike for the non-negative integers exchanged by the
// identification protocol. It knows the two byte layouts used throughout the module: big-endian
// byte strings on the wire and unsigned little-endian bytes in the modulus store and in key
// derivation.
package big

import (
	cryptorand "crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"

	"github.com/go-errors/errors"
)

// Int is an API-compatible "math/big".Int that marshals to a big-endian byte string (binary)
// or its base64 encoding (text). Only non-negative integers can be marshaled.
type Int big.Int

var ErrNegative = errors.New("marshaling negative integers is not supported")

// MarshalBinary implements encoding.BinaryMarshaler. CBOR encodes the result as a byte string.
func (i *Int) MarshalBinary() ([]byte, error) {
	if i.Sign() == -1 {
		return nil, ErrNegative
	}
	return i.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (i *Int) UnmarshalBinary(b []byte) error {
	i.SetBytes(b)
	return nil
}

// MarshalText implements encoding.TextMarshaler, returning the base64-encoding of i.Bytes().
func (i *Int) MarshalText() ([]byte, error) {
	bts, err := i.MarshalBinary()
	if err != nil {
		return nil, err
	}
	enc := make([]byte, base64.StdEncoding.EncodedLen(len(bts)))
	base64.StdEncoding.Encode(enc, bts)
	return enc, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Int) UnmarshalText(b []byte) error {
	bts := make([]byte, base64.StdEncoding.DecodedLen(len(b)))
	n, err := base64.StdEncoding.Decode(bts, b)
	if err != nil {
		return errors.WrapPrefix(err, "big: invalid base64 integer", 0)
	}
	i.SetBytes(bts[:n])
	return nil
}

// FromLittleEndian interprets buf as an unsigned little-endian integer.
func FromLittleEndian(buf []byte) *Int {
	be := make([]byte, len(buf))
	for k, b := range buf {
		be[len(buf)-1-k] = b
	}
	return new(Int).SetBytes(be)
}

// LittleEndianBytes returns the absolute value of i as unsigned little-endian bytes without
// trailing zero bytes. Zero encodes as an empty slice.
func (i *Int) LittleEndianBytes() []byte {
	be := i.Bytes()
	le := make([]byte, len(be))
	for k, b := range be {
		le[len(be)-1-k] = b
	}
	return le
}

// ByteLen is the number of bytes needed to hold the absolute value of i.
func (i *Int) ByteLen() int {
	return (i.BitLen() + 7) / 8
}

// RandInt wraps "crypto/rand".Int:
// returns a uniform random value in [0, max). It panics if max <= 0.
func RandInt(rnd io.Reader, max *Int) (*Int, error) {
	i, err := cryptorand.Int(rnd, max.Go())
	return Convert(i), err
}

// Convert from a "math/big".Int
func Convert(x *big.Int) *Int {
	return (*Int)(x)
}

// Convert to a "math/big".Int
func (i *Int) Go() *big.Int {
	return (*big.Int)(i)
}

// "math/big".Int API, restricted to what the protocol needs.

func NewInt(x int64) *Int { return Convert(big.NewInt(x)) }

func (i *Int) Format(s fmt.State, ch rune)       { i.Go().Format(s, ch) }
func (i *Int) Bit(j int) uint                    { return i.Go().Bit(j) }
func (i *Int) Bytes() []byte                     { return i.Go().Bytes() }
func (i *Int) BitLen() int                       { return i.Go().BitLen() }
func (i *Int) Int64() int64                      { return i.Go().Int64() }
func (i *Int) Uint64() uint64                    { return i.Go().Uint64() }
func (i *Int) IsUint64() bool                    { return i.Go().IsUint64() }
func (i *Int) Sign() int                         { return i.Go().Sign() }
func (i *Int) Cmp(y *Int) int                    { return i.Go().Cmp(y.Go()) }
func (i *Int) String() string                    { return i.Go().String() }
func (i *Int) Text(base int) string              { return i.Go().Text(base) }
func (i *Int) SetInt64(x int64) *Int             { return Convert(i.Go().SetInt64(x)) }
func (i *Int) SetUint64(x uint64) *Int           { return Convert(i.Go().SetUint64(x)) }
func (i *Int) Set(x *Int) *Int                   { return Convert(i.Go().Set(x.Go())) }
func (i *Int) SetBytes(buf []byte) *Int          { return Convert(i.Go().SetBytes(buf)) }
func (i *Int) SetBit(x *Int, j int, b uint) *Int { return Convert(i.Go().SetBit(x.Go(), j, b)) }
func (i *Int) Add(x, y *Int) *Int                { return Convert(i.Go().Add(x.Go(), y.Go())) }
func (i *Int) Sub(x, y *Int) *Int                { return Convert(i.Go().Sub(x.Go(), y.Go())) }
func (i *Int) Mul(x, y *Int) *Int                { return Convert(i.Go().Mul(x.Go(), y.Go())) }
func (i *Int) Mod(x, y *Int) *Int                { return Convert(i.Go().Mod(x.Go(), y.Go())) }
func (i *Int) Rsh(x *Int, n uint) *Int           { return Convert(i.Go().Rsh(x.Go(), n)) }
func (i *Int) Lsh(x *Int, n uint) *Int           { return Convert(i.Go().Lsh(x.Go(), n)) }
func (i *Int) Exp(x, y, m *Int) *Int {
	return Convert(i.Go().Exp(x.Go(), y.Go(), m.Go()))
}
func (i *Int) ModInverse(g, n *Int) *Int {
	if i.Go().ModInverse(g.Go(), n.Go()) == nil {
		return nil
	}
	return i
}
func (i *Int) GCD(x, y, a, b *Int) *Int {
	var xg, yg *big.Int
	if x != nil {
		xg = x.Go()
	}
	if y != nil {
		yg = y.Go()
	}
	return Convert(i.Go().GCD(xg, yg, a.Go(), b.Go()))
}
func (i *Int) SetString(s string, base int) (*Int, bool) {
	z, ok := i.Go().SetString(s, base)
	return Convert(z), ok
}

// Wipe overwrites the words of i with zeros and sets i to 0. Use it for secrets and nonces once
// they are no longer needed.
func (i *Int) Wipe() {
	words := i.Go().Bits()
	for k := range words {
		words[k] = 0
	}
	i.Go().SetInt64(0)
}
