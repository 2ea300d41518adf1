// Copyright 2016 Maarten Everts. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package common

import (
	"context"
	"io"

	"github.com/go-errors/errors"

	"github.com/privacybydesign/fiatshamir/big"
)

// DefaultPrimalityRounds is the number of Miller-Rabin rounds used when the caller has no
// preference. A composite survives k rounds with probability at most 4^-k.
const DefaultPrimalityRounds = 15

// SmallPrimes is a list of small prime numbers that allows us to rapidly
// exclude some fraction of composite candidates when searching for a random
// prime. This list is truncated at the point where SmallPrimesProduct exceeds
// a uint64. It does not include two because we ensure that the candidates are
// odd by construction.
var SmallPrimes = []uint8{
	3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47, 53,
}

// SmallPrimesProduct is the product of the values in SmallPrimes and allows us
// to reduce a candidate prime by this number and then determine whether it's
// coprime with all the elements of SmallPrimes without further big.Int
// operations.
var SmallPrimesProduct = new(big.Int).SetUint64(16294579238595022365)

var ErrGenerationFailure = errors.New("prime generation exceeded its attempt budget")

var (
	bigONE   = big.NewInt(1)
	bigTWO   = big.NewInt(2)
	bigTHREE = big.NewInt(3)
	bigFOUR  = big.NewInt(4)
)

// IsProbablyPrime runs k rounds of Miller-Rabin on n with witnesses drawn uniformly from
// [2, n-2) using rnd. Numbers below 2 and even numbers other than 2 are rejected without
// consuming randomness.
func IsProbablyPrime(rnd io.Reader, n *big.Int, k int) (bool, error) {
	if n.Cmp(bigTWO) == 0 || n.Cmp(bigTHREE) == 0 {
		return true, nil
	}
	if n.Cmp(bigTWO) < 0 || n.Bit(0) == 0 {
		return false, nil
	}

	// n - 1 = 2^s * t with t odd
	nMinusOne := new(big.Int).Sub(n, bigONE)
	t := new(big.Int).Set(nMinusOne)
	s := 0
	for t.Bit(0) == 0 {
		t.Rsh(t, 1)
		s++
	}

	// witnesses a in [2, n-2): a = 2 + RandInt(n-4), n >= 5 here
	witnessRange := new(big.Int).Sub(n, bigFOUR)
	x := new(big.Int)

NextWitness:
	for i := 0; i < k; i++ {
		a, err := big.RandInt(rnd, witnessRange)
		if err != nil {
			return false, errors.WrapPrefix(err, "sampling Miller-Rabin witness", 0)
		}
		a.Add(a, bigTWO)

		x.Exp(a, t, n)
		if x.Cmp(bigONE) == 0 || x.Cmp(nMinusOne) == 0 {
			continue
		}
		for r := 1; r < s; r++ {
			x.Exp(x, bigTWO, n)
			if x.Cmp(bigONE) == 0 {
				return false, nil
			}
			if x.Cmp(nMinusOne) == 0 {
				continue NextWitness
			}
		}
		return false, nil
	}
	return true, nil
}

// GeneratePrime samples byteLength-byte candidates from rnd until one passes k rounds of
// Miller-Rabin. Candidates get their top and bottom bits set so that every prime found has exactly
// 8*byteLength bits, and are screened against SmallPrimes first. After maxAttempts candidates
// ErrGenerationFailure is returned; a maxAttempts of zero or less means no bound. The context is
// checked between candidates.
func GeneratePrime(ctx context.Context, rnd io.Reader, byteLength, k, maxAttempts int) (*big.Int, error) {
	if byteLength < 1 {
		return nil, errors.Errorf("prime size must be at least one byte, got %d", byteLength)
	}
	topBit := 8*byteLength - 1
	bigMod := new(big.Int)

NextCandidate:
	for attempt := 1; maxAttempts <= 0 || attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p, err := SecureRandomBytes(rnd, byteLength)
		if err != nil {
			return nil, err
		}
		p.SetBit(p, topBit, 1)
		p.SetBit(p, 0, 1)

		// Calculate the value mod the product of SmallPrimes. If it's a multiple of any of these
		// primes we discard this candidate. This check is much cheaper than Miller-Rabin below.
		bigMod.Mod(p, SmallPrimesProduct)
		mod := bigMod.Uint64()
		for _, prime := range SmallPrimes {
			if mod%uint64(prime) == 0 && (byteLength > 1 || p.Uint64() != uint64(prime)) {
				continue NextCandidate
			}
		}

		ok, err := IsProbablyPrime(rnd, p, k)
		if err != nil {
			return nil, err
		}
		if ok {
			return p, nil
		}
	}
	return nil, errors.WrapPrefix(ErrGenerationFailure, "no prime found", 0)
}
