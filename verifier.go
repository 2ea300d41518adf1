package fiatshamir

import (
	"context"
	"io"

	"github.com/go-errors/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/privacybydesign/fiatshamir/big"
	"github.com/privacybydesign/fiatshamir/directory"
	"github.com/privacybydesign/fiatshamir/internal/common"
)

// Verifier checks identification sessions against the public keys in a directory. It is safe for
// concurrent sessions.
type Verifier struct {
	n           *big.Int
	fingerprint string
	users       directory.Directory
	rounds      int
	rnd         io.Reader
}

// NewVerifier returns a Verifier running the given number of rounds per session. Challenges are
// drawn from rnd, which must be unpredictable to provers. At least one round is required.
func NewVerifier(auth *Authority, users directory.Directory, rounds int, rnd io.Reader) (*Verifier, error) {
	if rounds < 1 {
		return nil, errors.WrapPrefix(ErrInvalidParameters, "at least one round is required", 0)
	}
	return &Verifier{
		n:           auth.N(),
		fingerprint: auth.Fingerprint(),
		users:       users,
		rounds:      rounds,
		rnd:         rnd,
	}, nil
}

func (v *Verifier) Rounds() int {
	return v.rounds
}

// Register stores the public key of a new user, derived with h under this verifier's modulus.
func (v *Verifier) Register(ctx context.Context, username string, pub *big.Int, h HashFunction) error {
	if pub == nil || pub.Sign() <= 0 || pub.Cmp(v.n) >= 0 {
		return errors.WrapPrefix(ErrMalformedMessage, "public key outside (0, N)", 0)
	}
	if h == nil {
		h = DefaultHashFunction
	}
	return v.users.Register(ctx, &directory.User{
		Username:  username,
		PublicKey: pub,
		HashCode:  h.Code(),
		Modulus:   v.fingerprint,
	})
}

// Verify runs a session with the prover claiming to be username. It returns true only if the
// user is known and every round passes. The first failure ends the session; the error tells
// why, and round failures are *RoundError.
func (v *Verifier) Verify(ctx context.Context, username string, prover Committer) (bool, error) {
	user, err := v.Lookup(ctx, username)
	if err != nil {
		return false, err
	}
	return v.VerifyUser(ctx, user, prover)
}

// Lookup returns the registered user, or ErrUnknownUser. Callers that need the user before the
// session starts, e.g. to pick the hash function, pass the result on to VerifyUser.
func (v *Verifier) Lookup(ctx context.Context, username string) (*directory.User, error) {
	user, err := v.users.Lookup(ctx, username)
	if errors.Is(err, directory.ErrNotFound) {
		Logger.WithField("username", username).Info("rejected unknown user")
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// VerifyUser runs a session for a user returned by Lookup.
func (v *Verifier) VerifyUser(ctx context.Context, user *directory.User, prover Committer) (bool, error) {
	log := Logger.WithFields(logrus.Fields{"session": uuid.NewString(), "username": user.Username})
	if user.Modulus != "" && user.Modulus != v.fingerprint {
		log.WithField("modulus", user.Modulus).Warn("key registered under another modulus")
		return false, ErrModulusMismatch
	}

	for round := 1; round <= v.rounds; round++ {
		if err := v.round(ctx, prover, user.PublicKey); err != nil {
			err = &RoundError{Round: round, Err: err}
			log.WithField("round", round).WithError(err).Info("rejected")
			return false, err
		}
		log.WithField("round", round).Trace("round passed")
	}
	log.WithField("rounds", v.rounds).Info("accepted")
	return true, nil
}

func (v *Verifier) round(ctx context.Context, prover Committer, pub *big.Int) error {
	c, err := prover.Commit(ctx)
	if err != nil {
		return err
	}
	x := c.X()
	e, err := common.RandomBit(v.rnd)
	if err != nil {
		return err
	}
	y, err := c.Respond(ctx, e)
	if err != nil {
		return err
	}
	return Check(v.n, pub, x, e, y)
}

// Check verifies a single round: y must be nonzero and y^2 = x*v^e mod n. Values outside [0, n)
// are malformed, so y = n cannot stand in for y = 0.
func Check(n, v, x *big.Int, e uint, y *big.Int) error {
	if e > 1 {
		return errors.WrapPrefix(ErrMalformedMessage, "challenge is not a bit", 0)
	}
	if !inRange(x, n) {
		return errors.WrapPrefix(ErrMalformedMessage, "commitment outside [0, N)", 0)
	}
	if !inRange(y, n) {
		return errors.WrapPrefix(ErrMalformedMessage, "response outside [0, N)", 0)
	}
	if y.Sign() == 0 {
		return ErrDegenerateResponse
	}

	lhs := new(big.Int).Mul(y, y)
	lhs.Mod(lhs, n)
	rhs := x
	if e == 1 {
		rhs = new(big.Int).Mul(x, v)
		rhs.Mod(rhs, n)
	}
	if lhs.Cmp(rhs) != 0 {
		return ErrRelationMismatch
	}
	return nil
}

func inRange(a, n *big.Int) bool {
	return a != nil && a.Sign() >= 0 && a.Cmp(n) < 0
}
