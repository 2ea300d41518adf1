package fiatshamir

import (
	"crypto/sha512"
	"hash"

	"github.com/go-errors/errors"
	"github.com/multiformats/go-multihash"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/privacybydesign/fiatshamir/big"
)

// HashFunction is the digest used to derive secrets from passwords. Functions are identified by
// their multihash code, which is stored with every registered key.
type HashFunction interface {
	Code() uint64
	Name() string
	Sum(data []byte) []byte
}

type hashFunction struct {
	code uint64
	new  func() hash.Hash
}

func (h hashFunction) Code() uint64 { return h.code }
func (h hashFunction) Name() string { return multihash.Codes[h.code] }

func (h hashFunction) Sum(data []byte) []byte {
	d := h.new()
	d.Write(data)
	return d.Sum(nil)
}

func newBlake2b512() hash.Hash {
	// only fails for keys longer than 64 bytes
	h, _ := blake2b.New512(nil)
	return h
}

var (
	SHA512     HashFunction = hashFunction{code: multihash.SHA2_512, new: sha512.New}
	SHA3_512   HashFunction = hashFunction{code: multihash.SHA3_512, new: sha3.New512}
	BLAKE2b512 HashFunction = hashFunction{code: multihash.BLAKE2B_MAX, new: newBlake2b512}

	// DefaultHashFunction is used when a key carries no hash code.
	DefaultHashFunction = SHA512
)

var hashFunctions = map[uint64]HashFunction{
	SHA512.Code():     SHA512,
	SHA3_512.Code():   SHA3_512,
	BLAKE2b512.Code(): BLAKE2b512,
}

var ErrUnknownHash = errors.New("unsupported hash function")

// HashFunctionByCode returns the hash function with the given multihash code. Code 0 selects
// DefaultHashFunction.
func HashFunctionByCode(code uint64) (HashFunction, error) {
	if code == 0 {
		return DefaultHashFunction, nil
	}
	h, ok := hashFunctions[code]
	if !ok {
		return nil, errors.WrapPrefix(ErrUnknownHash, multihash.Codes[code], 0)
	}
	return h, nil
}

// HashFunctionByName returns the hash function with the given multihash name, e.g. "sha2-512".
func HashFunctionByName(name string) (HashFunction, error) {
	code, ok := multihash.Names[name]
	if !ok {
		return nil, errors.WrapPrefix(ErrUnknownHash, name, 0)
	}
	return HashFunctionByCode(code)
}

// Fingerprint identifies a modulus: the base58 SHA2-256 multihash of its big-endian bytes.
func Fingerprint(n *big.Int) string {
	mh, err := multihash.Sum(n.Bytes(), multihash.SHA2_256, -1)
	if err != nil {
		// SHA2-256 is always registered
		panic(err)
	}
	return mh.B58String()
}
