package common

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"io"
	"sync/atomic"

	"github.com/go-errors/errors"

	"github.com/privacybydesign/fiatshamir/big"
)

// CPRNG is a simple thread-safe cryptographically secure pseudo-random number generator.
// Implemented with AES in counter mode with the seed as key and an
// atomic uint64 as counter. Two CPRNGs with the same seed produce the same stream, which is
// what the tests use to replay sessions.
type CPRNG struct {
	block   cipher.Block
	counter uint64
}

func NewCPRNG(seed *[32]byte) (*CPRNG, error) {
	c, err := aes.NewCipher(seed[:])
	if err != nil {
		return nil, err
	}
	return &CPRNG{
		block:   c,
		counter: 0,
	}, nil
}

func (c *CPRNG) Read(buf []byte) (n int, err error) {
	var pt, ct [16]byte
	n = len(buf)
	if n == 0 {
		return
	}

	// Number of blocks required
	nBlocks := uint64(((len(buf) - 1) / 16) + 1)

	// Atomically reserve nBlocks counter values; iv is the first of them.
	iv := atomic.AddUint64(&c.counter, nBlocks) - nBlocks
	for len(buf) > 0 {
		binary.LittleEndian.PutUint64(pt[:], iv)
		iv++

		if len(buf) >= 16 {
			c.block.Encrypt(buf, pt[:])
			buf = buf[16:]
			continue
		}

		c.block.Encrypt(ct[:], pt[:])
		copy(buf, ct[:len(buf)])
		break
	}
	return
}

var ErrEmptyRange = errors.New("random range is empty: min >= max")

// SecureRandomBytes reads n bytes from rnd and interprets them as an unsigned little-endian
// integer.
func SecureRandomBytes(rnd io.Reader, n int) (*big.Int, error) {
	if n < 0 {
		return nil, errors.Errorf("negative byte count %d", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(rnd, b); err != nil {
		return nil, errors.WrapPrefix(err, "reading random bytes", 0)
	}
	return big.FromLittleEndian(b), nil
}

// RandomInRange returns an integer in [min, max). A candidate of max's byte length is drawn; if
// it does not already fall in the range it is reduced as a mod (max-min) + min.
//
// The reduction is slightly biased towards the low end of the range whenever 256^len(max) is not
// a multiple of max-min. For the ranges used here (nonces modulo a large N) the bias is
// negligible, but callers that need exact uniformity should use big.RandInt.
func RandomInRange(rnd io.Reader, min, max *big.Int) (*big.Int, error) {
	if min.Cmp(max) >= 0 {
		return nil, ErrEmptyRange
	}
	a, err := SecureRandomBytes(rnd, max.ByteLen())
	if err != nil {
		return nil, err
	}
	if a.Cmp(min) >= 0 && a.Cmp(max) < 0 {
		return a, nil
	}
	width := new(big.Int).Sub(max, min)
	a.Mod(a, width)
	return a.Add(a, min), nil
}

// RandomBit returns a single uniformly distributed bit taken from rnd.
func RandomBit(rnd io.Reader) (uint, error) {
	var b [1]byte
	if _, err := io.ReadFull(rnd, b[:]); err != nil {
		return 0, errors.WrapPrefix(err, "reading random bit", 0)
	}
	return uint(b[0] & 1), nil
}
