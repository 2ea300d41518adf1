package fiatshamir

import (
	"context"
	"fmt"

	"github.com/go-errors/errors"
	"github.com/sirupsen/logrus"

	"github.com/privacybydesign/fiatshamir/big"
	"github.com/privacybydesign/fiatshamir/transport"
)

// Serve answers modulus requests, registrations and identification sessions on conn until the
// peer closes it or ctx ends. It returns nil when the peer closes the connection.
func (v *Verifier) Serve(ctx context.Context, conn transport.Conn) error {
	for {
		m, err := conn.Receive(ctx)
		if errors.Is(err, transport.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		var reply *transport.Message
		switch m.Kind {
		case transport.KindModulusRequest:
			reply = &transport.Message{Kind: transport.KindModulus, Value: v.n, Fingerprint: v.fingerprint}
		case transport.KindRegister:
			reply = verdict(v.serveRegistration(ctx, m))
		case transport.KindHello:
			reply, err = v.serveSession(ctx, conn, m.Username)
			if err != nil {
				return err
			}
		default:
			reply = verdict(errors.WrapPrefix(ErrMalformedMessage, "unexpected "+m.Kind.String(), 0))
		}
		if err = conn.Send(ctx, reply); err != nil {
			return err
		}
	}
}

func (v *Verifier) serveRegistration(ctx context.Context, m *transport.Message) error {
	if m.Fingerprint != v.fingerprint {
		return ErrModulusMismatch
	}
	h, err := HashFunctionByCode(m.HashCode)
	if err != nil {
		return err
	}
	err = v.Register(ctx, m.Username, m.Value, h)
	Logger.WithFields(logrus.Fields{"username": m.Username, "hash": h.Name()}).WithError(err).Info("registration")
	return err
}

// serveSession runs a session and returns the verdict to send. An error is returned only if the
// connection itself failed.
func (v *Verifier) serveSession(ctx context.Context, conn transport.Conn, username string) (*transport.Message, error) {
	remote := &remoteProver{conn: conn, rounds: v.rounds}
	ok, err := v.Verify(ctx, username, remote)
	if remote.failed != nil {
		return nil, remote.failed
	}
	if ok {
		return &transport.Message{Kind: transport.KindVerdict, Accepted: true}, nil
	}
	return verdict(err), nil
}

func verdict(err error) *transport.Message {
	if err != nil {
		return &transport.Message{Kind: transport.KindVerdict, Error: err.Error()}
	}
	return &transport.Message{Kind: transport.KindVerdict, Accepted: true}
}

// remoteProver is a Committer whose commitments and responses arrive over a connection. The
// first commitment is requested by announcing the number of rounds, every later one by Next.
type remoteProver struct {
	conn     transport.Conn
	rounds   int
	round    int
	accepted bool
	// failed records a broken connection, as opposed to a misbehaving prover
	failed error
}

func (r *remoteProver) receive(ctx context.Context, kind transport.Kind) (*transport.Message, error) {
	m, err := transport.Expect(ctx, r.conn, kind)
	switch {
	case err == nil:
	case errors.Is(err, transport.ErrUnexpected):
		return nil, errors.WrapPrefix(ErrMalformedMessage, err.Error(), 0)
	default:
		r.failed = err
		return nil, err
	}
	if m.Round != r.round {
		return nil, errors.WrapPrefix(ErrMalformedMessage, fmt.Sprintf("%s for round %d during round %d", kind, m.Round, r.round), 0)
	}
	if m.Value == nil {
		return nil, errors.WrapPrefix(ErrMalformedMessage, kind.String()+" without value", 0)
	}
	return m, nil
}

func (r *remoteProver) send(ctx context.Context, m *transport.Message) error {
	if err := r.conn.Send(ctx, m); err != nil {
		r.failed = err
		return err
	}
	return nil
}

func (r *remoteProver) Commit(ctx context.Context) (Commitment, error) {
	ask := &transport.Message{Kind: transport.KindNext, Round: r.round + 1}
	if !r.accepted {
		ask = &transport.Message{Kind: transport.KindAccept, Round: r.rounds}
	}
	if err := r.send(ctx, ask); err != nil {
		return nil, err
	}
	r.accepted = true
	r.round++
	m, err := r.receive(ctx, transport.KindCommitment)
	if err != nil {
		return nil, err
	}
	return &remoteCommitment{prover: r, round: r.round, x: m.Value}, nil
}

type remoteCommitment struct {
	prover *remoteProver
	round  int
	x      *big.Int
	used   bool
}

func (c *remoteCommitment) X() *big.Int {
	return new(big.Int).Set(c.x)
}

func (c *remoteCommitment) Respond(ctx context.Context, e uint) (*big.Int, error) {
	if c.used {
		return nil, ErrNonceReused
	}
	c.used = true
	if err := c.prover.send(ctx, &transport.Message{Kind: transport.KindChallenge, Round: c.round, Bit: uint8(e)}); err != nil {
		return nil, err
	}
	m, err := c.prover.receive(ctx, transport.KindResponse)
	if err != nil {
		return nil, err
	}
	return m.Value, nil
}

// Prove identifies as username over conn, answering the verifier's challenges with p's secret.
func (p *Prover) Prove(ctx context.Context, username string, conn transport.Conn) (bool, error) {
	return Prove(ctx, username, p, conn)
}

// Prove runs the prover side of a session over conn with commitments from c. It returns the
// verifier's verdict; a rejection comes with an error wrapping ErrRejected.
func Prove(ctx context.Context, username string, c Committer, conn transport.Conn) (bool, error) {
	if err := conn.Send(ctx, &transport.Message{Kind: transport.KindHello, Username: username}); err != nil {
		return false, err
	}
	m, err := transport.Expect(ctx, conn, transport.KindAccept, transport.KindVerdict)
	if err != nil {
		return false, err
	}
	if m.Kind == transport.KindVerdict {
		return verdictResult(m)
	}
	rounds := m.Round
	if rounds < 1 {
		return false, errors.WrapPrefix(ErrMalformedMessage, "verifier announced no rounds", 0)
	}

	for round := 1; ; round++ {
		commitment, err := c.Commit(ctx)
		if err != nil {
			return false, err
		}
		err = conn.Send(ctx, &transport.Message{Kind: transport.KindCommitment, Round: round, Value: commitment.X()})
		if err != nil {
			return false, err
		}
		m, err = transport.Expect(ctx, conn, transport.KindChallenge, transport.KindVerdict)
		if err != nil {
			return false, err
		}
		if m.Kind == transport.KindVerdict {
			return verdictResult(m)
		}
		if m.Round != round || m.Bit > 1 {
			return false, errors.WrapPrefix(ErrMalformedMessage, "bad challenge", 0)
		}
		y, err := commitment.Respond(ctx, uint(m.Bit))
		if err != nil {
			return false, err
		}
		if err = conn.Send(ctx, &transport.Message{Kind: transport.KindResponse, Round: round, Value: y}); err != nil {
			return false, err
		}

		// the verifier either asks for the next round or ends the session
		m, err = transport.Expect(ctx, conn, transport.KindNext, transport.KindVerdict)
		if err != nil {
			return false, err
		}
		if m.Kind == transport.KindVerdict {
			return verdictResult(m)
		}
		if round >= rounds || m.Round != round+1 {
			return false, errors.WrapPrefix(ErrMalformedMessage, fmt.Sprintf("asked for round %d after round %d of %d", m.Round, round, rounds), 0)
		}
	}
}

func verdictResult(m *transport.Message) (bool, error) {
	if m.Accepted {
		return true, nil
	}
	if m.Error == "" {
		return false, ErrRejected
	}
	return false, errors.WrapPrefix(ErrRejected, m.Error, 0)
}

// FetchModulus asks the verifier on conn for its modulus and checks it against the fingerprint
// sent along with it.
func FetchModulus(ctx context.Context, conn transport.Conn) (*Authority, error) {
	if err := conn.Send(ctx, &transport.Message{Kind: transport.KindModulusRequest}); err != nil {
		return nil, err
	}
	m, err := transport.Expect(ctx, conn, transport.KindModulus)
	if err != nil {
		return nil, err
	}
	if m.Value == nil {
		return nil, errors.WrapPrefix(ErrMalformedMessage, "modulus without value", 0)
	}
	auth, err := NewAuthorityFromModulus(m.Value)
	if err != nil {
		return nil, err
	}
	if auth.Fingerprint() != m.Fingerprint {
		return nil, ErrModulusMismatch
	}
	return auth, nil
}

// RequestRegistration registers username with the verifier on conn, sending only the public key
// derived from password under auth's modulus.
func RequestRegistration(ctx context.Context, conn transport.Conn, auth *Authority, kd *KeyDeriver, username, password string) error {
	err := conn.Send(ctx, &transport.Message{
		Kind:        transport.KindRegister,
		Username:    username,
		Value:       kd.DerivePublicKey(password, auth.N()),
		HashCode:    kd.Hash().Code(),
		Fingerprint: auth.Fingerprint(),
	})
	if err != nil {
		return err
	}
	m, err := transport.Expect(ctx, conn, transport.KindVerdict)
	if err != nil {
		return err
	}
	_, err = verdictResult(m)
	return err
}
