// Copyright 2016 Maarten Everts. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fiatshamir

import (
	"sort"

	"github.com/go-errors/errors"

	"github.com/privacybydesign/fiatshamir/internal/common"
)

// Parameters holds the sizing of a deployment.
type Parameters struct {
	// PrimeBits is the size of each of the two prime factors of N.
	PrimeBits int `json:"prime_bits"`
	// Rounds is the number of protocol rounds per session. A cheating prover is accepted with
	// probability at most 2^-Rounds.
	Rounds int `json:"rounds"`
	// PrimalityRounds is the number of Miller-Rabin iterations per prime candidate.
	PrimalityRounds int `json:"primality_rounds"`
	// MaxPrimeAttempts bounds the number of candidates sampled per prime.
	MaxPrimeAttempts int `json:"max_prime_attempts"`
}

const (
	DefaultRounds    = 20
	DefaultPrimeBits = 1024
)

// MakeParameters returns the parameters for primes of the given size. The prime search budget is
// far beyond the expected ln(2^bits)/2 candidates.
func MakeParameters(primeBits int) *Parameters {
	return &Parameters{
		PrimeBits:        primeBits,
		Rounds:           DefaultRounds,
		PrimalityRounds:  common.DefaultPrimalityRounds,
		MaxPrimeAttempts: 40 * primeBits,
	}
}

// DefaultParameters holds per prime size the default parameters.
var DefaultParameters = map[int]*Parameters{
	512:  MakeParameters(512),
	1024: MakeParameters(1024),
	2048: MakeParameters(2048),
}

// getAvailablePrimeSizes returns the prime sizes for the provided map of parameters.
func getAvailablePrimeSizes(params map[int]*Parameters) []int {
	sizes := make([]int, 0, len(params))
	for k := range params {
		sizes = append(sizes, k)
	}
	sort.Ints(sizes)
	return sizes
}

// DefaultPrimeSizes is a slice of integers holding the prime sizes for which parameters are
// available.
var DefaultPrimeSizes = getAvailablePrimeSizes(DefaultParameters)

var ErrInvalidParameters = errors.New("invalid parameters")

// Validate checks that the parameters describe a usable deployment.
func (p *Parameters) Validate() error {
	switch {
	case p.PrimeBits < 16 || p.PrimeBits%8 != 0:
		return errors.WrapPrefix(ErrInvalidParameters, "prime size must be a multiple of 8 of at least 16 bits", 0)
	case p.Rounds < 1:
		return errors.WrapPrefix(ErrInvalidParameters, "at least one round is required", 0)
	case p.PrimalityRounds < 1:
		return errors.WrapPrefix(ErrInvalidParameters, "at least one Miller-Rabin round is required", 0)
	}
	return nil
}

// ParamSize computes the size of a parameter in bytes given the size in bits.
func ParamSize(a int) int {
	return (a + 8 - 1) / 8
}
