package fiatshamir

import (
	"bytes"
	"io"

	"github.com/privacybydesign/fiatshamir/big"
)

// KeyDeriver maps passwords to secret and public keys. Nothing is stored: the same password
// always yields the same keys.
type KeyDeriver struct {
	hash HashFunction
}

// NewKeyDeriver returns a KeyDeriver using h, or DefaultHashFunction if h is nil.
func NewKeyDeriver(h HashFunction) *KeyDeriver {
	if h == nil {
		h = DefaultHashFunction
	}
	return &KeyDeriver{hash: h}
}

func (k *KeyDeriver) Hash() HashFunction {
	return k.hash
}

// DeriveSecret returns s, the unsigned little-endian integer of H(password) repeated three times.
// The byte layout is fixed: keys registered elsewhere depend on it.
func (k *KeyDeriver) DeriveSecret(password string) *big.Int {
	digest := k.hash.Sum([]byte(password))
	return big.FromLittleEndian(bytes.Repeat(digest, 3))
}

// DerivePublicKey returns v = s^2 mod n.
func (k *KeyDeriver) DerivePublicKey(password string, n *big.Int) *big.Int {
	s := k.DeriveSecret(password)
	defer s.Wipe()
	return new(big.Int).Exp(s, big.NewInt(2), n)
}

// NewProver derives the secret of password and returns a Prover for it.
func (k *KeyDeriver) NewProver(password string, n *big.Int, rnd io.Reader) *Prover {
	s := k.DeriveSecret(password)
	defer s.Wipe()
	return NewProver(n, s, rnd)
}
