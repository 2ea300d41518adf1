package fiatshamir

import (
	"fmt"

	"github.com/go-errors/errors"

	"github.com/privacybydesign/fiatshamir/internal/common"
)

var (
	// ErrUnknownUser means the username is not in the directory. No round was run.
	ErrUnknownUser = errors.New("unknown user")
	// ErrDegenerateResponse means the prover answered y = 0, which is rejected whatever e was.
	ErrDegenerateResponse = errors.New("degenerate response")
	// ErrRelationMismatch means y^2 mod N did not equal x*v^e mod N.
	ErrRelationMismatch = errors.New("relation mismatch")
	// ErrGenerationFailure means no prime was found within the attempt budget.
	ErrGenerationFailure = common.ErrGenerationFailure
	// ErrMalformedMessage means a value was outside [0, N), a challenge was not a bit, or a
	// message arrived out of order.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrModulusMismatch means a key was derived under a different modulus than the verifier's.
	ErrModulusMismatch = errors.New("modulus mismatch")
	// ErrNonceReused means a commitment was asked to answer a second challenge.
	ErrNonceReused = errors.New("commitment already answered")
	// ErrRejected is returned to a remote prover or registrant when the verifier said no.
	ErrRejected = errors.New("rejected by verifier")
)

// RoundError reports the round in which a session failed.
type RoundError struct {
	Round int
	Err   error
}

func (e *RoundError) Error() string {
	return fmt.Sprintf("round %d: %v", e.Round, e.Err)
}

func (e *RoundError) Unwrap() error {
	return e.Err
}
