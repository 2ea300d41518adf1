package fiatshamir

import (
	"context"
	"io"
	"sync"

	"github.com/go-errors/errors"

	"github.com/privacybydesign/fiatshamir/big"
	"github.com/privacybydesign/fiatshamir/internal/common"
)

// Committer is the prover side of a session as the verifier sees it: a source of fresh
// commitments, one per round.
type Committer interface {
	Commit(ctx context.Context) (Commitment, error)
}

// Commitment is one round's x = r^2 mod N. It answers at most one challenge.
type Commitment interface {
	X() *big.Int
	Respond(ctx context.Context, e uint) (*big.Int, error)
}

// Prover knows the secret s for a public key v = s^2 mod N.
type Prover struct {
	n   *big.Int
	s   *big.Int
	rnd io.Reader
}

// NewProver returns a Prover for secret s under modulus n. Nonces are drawn from rnd.
func NewProver(n, s *big.Int, rnd io.Reader) *Prover {
	return &Prover{
		n:   new(big.Int).Set(n),
		s:   new(big.Int).Mod(s, n),
		rnd: rnd,
	}
}

// Commit samples a fresh nonce r in [1, N-1) and commits to it.
func (p *Prover) Commit(ctx context.Context) (Commitment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	max := new(big.Int).Sub(p.n, big.NewInt(1))
	r, err := common.RandomInRange(p.rnd, big.NewInt(1), max)
	if err != nil {
		return nil, err
	}
	return p.commitWithNonce(r), nil
}

func (p *Prover) commitWithNonce(r *big.Int) *commitment {
	return &commitment{
		prover: p,
		r:      r,
		x:      new(big.Int).Exp(r, big.NewInt(2), p.n),
	}
}

// Wipe erases the secret. The Prover cannot be used afterwards.
func (p *Prover) Wipe() {
	p.s.Wipe()
}

type commitment struct {
	prover *Prover
	mu     sync.Mutex
	r      *big.Int
	x      *big.Int
	used   bool
}

func (c *commitment) X() *big.Int {
	return new(big.Int).Set(c.x)
}

// Respond returns y = r for e = 0 and y = r*s mod N for e = 1, then erases r.
func (c *commitment) Respond(ctx context.Context, e uint) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e > 1 {
		return nil, errors.WrapPrefix(ErrMalformedMessage, "challenge is not a bit", 0)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.used {
		return nil, ErrNonceReused
	}
	c.used = true
	defer c.r.Wipe()

	y := new(big.Int).Set(c.r)
	if e == 1 {
		y.Mul(y, c.prover.s).Mod(y, c.prover.n)
	}
	return y, nil
}
