package fiatshamir

import (
	"context"
	"io"

	"github.com/go-errors/errors"
	"github.com/sirupsen/logrus"

	"github.com/privacybydesign/fiatshamir/big"
	"github.com/privacybydesign/fiatshamir/internal/common"
	"github.com/privacybydesign/fiatshamir/modulus"
)

// Authority owns the modulus N for the lifetime of the process. It never holds the factors of N.
type Authority struct {
	n           *big.Int
	fingerprint string
}

// NewAuthority loads N from store, or generates and stores a new one if the store is empty.
// A stored N is never replaced.
func NewAuthority(ctx context.Context, store modulus.Store, params *Parameters, rnd io.Reader) (*Authority, error) {
	n, err := store.Load()
	if err == nil {
		if err = validateModulus(n); err != nil {
			return nil, err
		}
		a := newAuthority(n)
		Logger.WithFields(logrus.Fields{"fingerprint": a.fingerprint, "bits": n.BitLen()}).Info("loaded modulus")
		return a, nil
	}
	if !errors.Is(err, modulus.ErrNotFound) {
		return nil, err
	}

	if err = params.Validate(); err != nil {
		return nil, err
	}
	n, err = GenerateModulus(ctx, rnd, params)
	if err != nil {
		return nil, err
	}
	if err = store.Save(n); err != nil {
		return nil, err
	}
	a := newAuthority(n)
	Logger.WithFields(logrus.Fields{"fingerprint": a.fingerprint, "bits": n.BitLen()}).Info("generated modulus")
	return a, nil
}

// NewAuthorityFromModulus returns an Authority for a known N, e.g. one fetched from a verifier.
func NewAuthorityFromModulus(n *big.Int) (*Authority, error) {
	if err := validateModulus(n); err != nil {
		return nil, err
	}
	return newAuthority(n), nil
}

func newAuthority(n *big.Int) *Authority {
	return &Authority{n: new(big.Int).Set(n), fingerprint: Fingerprint(n)}
}

// N returns a copy of the modulus.
func (a *Authority) N() *big.Int {
	return new(big.Int).Set(a.n)
}

func (a *Authority) Fingerprint() string {
	return a.fingerprint
}

func validateModulus(n *big.Int) error {
	switch {
	case n == nil || n.Cmp(big.NewInt(1)) <= 0:
		return errors.WrapPrefix(modulus.ErrInvalid, "modulus must exceed 1", 0)
	case n.Bit(0) == 0:
		return errors.WrapPrefix(modulus.ErrInvalid, "modulus must be odd", 0)
	case n.BitLen() < 16:
		return errors.WrapPrefix(modulus.ErrInvalid, "modulus must have at least 16 bits", 0)
	}
	return nil
}

// GenerateModulus returns N = p*q for two distinct primes of params.PrimeBits bits. The primes are
// wiped before returning.
func GenerateModulus(ctx context.Context, rnd io.Reader, params *Parameters) (*big.Int, error) {
	byteLength := ParamSize(params.PrimeBits)
	p, err := common.GeneratePrime(ctx, rnd, byteLength, params.PrimalityRounds, params.MaxPrimeAttempts)
	if err != nil {
		return nil, err
	}
	defer p.Wipe()

	var q *big.Int
	for q == nil || q.Cmp(p) == 0 {
		if q != nil {
			q.Wipe()
		}
		q, err = common.GeneratePrime(ctx, rnd, byteLength, params.PrimalityRounds, params.MaxPrimeAttempts)
		if err != nil {
			return nil, err
		}
	}
	defer q.Wipe()

	return new(big.Int).Mul(p, q), nil
}
