package fiatshamir

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/go-errors/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privacybydesign/fiatshamir/big"
	"github.com/privacybydesign/fiatshamir/directory"
)

// N = 1000003 * 1000033
var (
	testN      = big.NewInt(1000036000099)
	testNonce  = big.NewInt(123456789)
	testPubKey = big.NewInt(721068663368)
	testAuth   *Authority
)

// constReader returns the same byte forever.
type constReader byte

func (c constReader) Read(buf []byte) (int, error) {
	for i := range buf {
		buf[i] = byte(c)
	}
	return len(buf), nil
}

func seeded(t *testing.T, b byte) io.Reader {
	var seed [32]byte
	for i := range seed {
		seed[i] = b
	}
	rnd, err := NewSeededRandomSource(&seed)
	require.NoError(t, err)
	return rnd
}

func newVerifier(t *testing.T, auth *Authority, users directory.Directory, rounds int, rnd io.Reader) *Verifier {
	v, err := NewVerifier(auth, users, rounds, rnd)
	require.NoError(t, err)
	return v
}

func setupVerifier(t *testing.T, rounds int, rnd io.Reader) (*Verifier, *directory.MemoryDirectory) {
	users := directory.NewMemoryDirectory()
	v := newVerifier(t, testAuth, users, rounds, rnd)
	pub := NewKeyDeriver(nil).DerivePublicKey("pw1", testAuth.N())
	require.NoError(t, v.Register(context.Background(), "alice", pub, SHA512))
	return v, users
}

// fixedCommitter commits to the same nonce every round.
type fixedCommitter struct {
	prover *Prover
	nonce  *big.Int
}

func (f *fixedCommitter) Commit(context.Context) (Commitment, error) {
	return f.prover.commitWithNonce(new(big.Int).Set(f.nonce)), nil
}

// countingCommitter counts the rounds a verifier starts.
type countingCommitter struct {
	Committer
	commits int
}

func (c *countingCommitter) Commit(ctx context.Context) (Commitment, error) {
	c.commits++
	return c.Committer.Commit(ctx)
}

// zeroResponder answers every challenge with y = 0 without knowing s.
type zeroResponder struct {
	x *big.Int
}

func (z *zeroResponder) Commit(context.Context) (Commitment, error) { return z, nil }
func (z *zeroResponder) X() *big.Int                                { return new(big.Int).Set(z.x) }
func (z *zeroResponder) Respond(context.Context, uint) (*big.Int, error) {
	return big.NewInt(0), nil
}

// cheater does not know s. Each round it guesses the challenge and prepares a commitment that
// survives exactly that challenge: x = r^2 for e = 0, x = r^2 * v^-1 for e = 1, answering y = r.
type cheater struct {
	n, v *big.Int
	rnd  io.Reader
}

type cheat struct {
	x, r *big.Int
}

func (c *cheater) Commit(context.Context) (Commitment, error) {
	r, err := big.RandInt(c.rnd, new(big.Int).Sub(c.n, big.NewInt(1)))
	if err != nil {
		return nil, err
	}
	r.Add(r, big.NewInt(1))
	guess, err := big.RandInt(c.rnd, big.NewInt(2))
	if err != nil {
		return nil, err
	}
	x := new(big.Int).Exp(r, big.NewInt(2), c.n)
	if guess.Sign() == 1 {
		vInv := new(big.Int).ModInverse(c.v, c.n)
		x.Mul(x, vInv).Mod(x, c.n)
	}
	return &cheat{x: x, r: r}, nil
}

func (c *cheat) X() *big.Int                                       { return new(big.Int).Set(c.x) }
func (c *cheat) Respond(context.Context, uint) (*big.Int, error) { return c.r, nil }

func TestEndToEndVectors(t *testing.T) {
	ctx := context.Background()
	kd := NewKeyDeriver(SHA512)
	require.Zero(t, testPubKey.Cmp(kd.DerivePublicKey("pw1", testN)))

	prover := kd.NewProver("pw1", testN, SecureRandom())

	// e = 1
	c := prover.commitWithNonce(new(big.Int).Set(testNonce))
	x := c.X()
	assert.Equal(t, "30072681662", x.String())
	y, err := c.Respond(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "965357974695", y.String())
	require.NoError(t, Check(testN, testPubKey, x, 1, y))

	// e = 0
	c = prover.commitWithNonce(new(big.Int).Set(testNonce))
	y, err = c.Respond(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, y.Cmp(testNonce))
	require.NoError(t, Check(testN, testPubKey, c.X(), 0, y))

	// the same exchange driven by a verifier with a fixed challenge
	for _, e := range []constReader{0, 1} {
		v, _ := setupVerifier(t, 1, e)
		ok, err := v.Verify(ctx, "alice", &fixedCommitter{prover: prover, nonce: testNonce})
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestCompleteness(t *testing.T) {
	ctx := context.Background()
	params := MakeParameters(64)
	for i := byte(0); i < 4; i++ {
		n, err := GenerateModulus(ctx, seeded(t, i), params)
		require.NoError(t, err)
		auth, err := NewAuthorityFromModulus(n)
		require.NoError(t, err)

		for _, h := range []HashFunction{SHA512, SHA3_512, BLAKE2b512} {
			kd := NewKeyDeriver(h)
			users := directory.NewMemoryDirectory()
			v := newVerifier(t, auth, users, DefaultRounds, SecureRandom())
			require.NoError(t, v.Register(ctx, "alice", kd.DerivePublicKey("correct horse", n), h))

			ok, err := v.Verify(ctx, "alice", kd.NewProver("correct horse", n, seeded(t, 100+i)))
			require.NoError(t, err)
			require.True(t, ok, "honest prover rejected (modulus %d, %s)", i, h.Name())
		}
	}
}

func TestWrongPassword(t *testing.T) {
	v, _ := setupVerifier(t, DefaultRounds, SecureRandom())
	ok, err := v.Verify(context.Background(), "alice", NewKeyDeriver(nil).NewProver("pw2", testN, SecureRandom()))
	require.False(t, ok)
	require.True(t, errors.Is(err, ErrRelationMismatch))
	var roundErr *RoundError
	require.True(t, errors.As(err, &roundErr))
	require.GreaterOrEqual(t, roundErr.Round, 1)
}

func TestSoundness(t *testing.T) {
	ctx := context.Background()
	const sessions = 2000
	const rounds = 3

	v, _ := setupVerifier(t, rounds, seeded(t, 1))
	c := &cheater{n: testN, v: testPubKey, rnd: seeded(t, 2)}
	accepted := 0
	for i := 0; i < sessions; i++ {
		ok, err := v.Verify(ctx, "alice", c)
		if ok {
			accepted++
		} else {
			require.True(t, errors.Is(err, ErrRelationMismatch))
		}
	}
	// 2^-3 = 0.125; the standard deviation over 2000 sessions is below 0.008
	require.InDelta(t, 0.125, float64(accepted)/sessions, 0.04)

	v, _ = setupVerifier(t, DefaultRounds, SecureRandom())
	for i := 0; i < 100; i++ {
		ok, _ := v.Verify(ctx, "alice", c)
		require.False(t, ok)
	}
}

func TestDegenerateResponse(t *testing.T) {
	ctx := context.Background()
	v, _ := setupVerifier(t, DefaultRounds, SecureRandom())

	for _, x := range []*big.Int{big.NewInt(0), big.NewInt(1), testPubKey} {
		prover := &countingCommitter{Committer: &zeroResponder{x: x}}
		ok, err := v.Verify(ctx, "alice", prover)
		require.False(t, ok)
		require.True(t, errors.Is(err, ErrDegenerateResponse))
		require.Equal(t, 1, prover.commits)
	}

	// 0^2 = 0 = x for x = 0 and e = 0, but y = 0 is never accepted
	require.True(t, errors.Is(Check(testN, testPubKey, big.NewInt(0), 0, big.NewInt(0)), ErrDegenerateResponse))
	require.True(t, errors.Is(Check(testN, testPubKey, big.NewInt(0), 1, big.NewInt(0)), ErrDegenerateResponse))
}

func TestCheck(t *testing.T) {
	x := big.NewInt(30072681662)
	y := big.NewInt(965357974695)
	tests := []struct {
		name string
		x    *big.Int
		e    uint
		y    *big.Int
		err  error
	}{
		{"valid e=1", x, 1, y, nil},
		{"valid e=0", x, 0, testNonce, nil},
		{"wrong branch", x, 0, y, ErrRelationMismatch},
		{"wrong response", x, 1, big.NewInt(42), ErrRelationMismatch},
		{"response N", big.NewInt(0), 0, testN, ErrMalformedMessage},
		{"response above N", x, 1, new(big.Int).Add(y, testN), ErrMalformedMessage},
		{"negative response", x, 1, big.NewInt(-1), ErrMalformedMessage},
		{"commitment above N", new(big.Int).Add(x, testN), 0, testNonce, ErrMalformedMessage},
		{"missing commitment", nil, 0, testNonce, ErrMalformedMessage},
		{"missing response", x, 0, nil, ErrMalformedMessage},
		{"challenge not a bit", x, 2, y, ErrMalformedMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(testN, testPubKey, tt.x, tt.e, tt.y)
			if tt.err == nil {
				require.NoError(t, err)
			} else {
				require.True(t, errors.Is(err, tt.err), "got %v", err)
			}
		})
	}
}

func TestUnknownUser(t *testing.T) {
	v, _ := setupVerifier(t, DefaultRounds, SecureRandom())
	prover := &countingCommitter{Committer: NewKeyDeriver(nil).NewProver("pw1", testN, SecureRandom())}
	ok, err := v.Verify(context.Background(), "mallory", prover)
	require.False(t, ok)
	require.True(t, errors.Is(err, ErrUnknownUser))
	require.Zero(t, prover.commits)
}

func TestModulusMismatch(t *testing.T) {
	ctx := context.Background()
	v, users := setupVerifier(t, DefaultRounds, SecureRandom())
	require.NoError(t, users.Register(ctx, &directory.User{Username: "bob", PublicKey: big.NewInt(4), Modulus: "QmOther"}))

	prover := &countingCommitter{Committer: NewKeyDeriver(nil).NewProver("pw1", testN, SecureRandom())}
	ok, err := v.Verify(ctx, "bob", prover)
	require.False(t, ok)
	require.True(t, errors.Is(err, ErrModulusMismatch))
	require.Zero(t, prover.commits)
}

// challengeRecorder records the challenges an honest prover answers.
type challengeRecorder struct {
	Committer
	transcript []string
}

type recordedCommitment struct {
	Commitment
	rec *challengeRecorder
}

func (r *challengeRecorder) Commit(ctx context.Context) (Commitment, error) {
	c, err := r.Committer.Commit(ctx)
	if err != nil {
		return nil, err
	}
	r.transcript = append(r.transcript, c.X().String())
	return &recordedCommitment{Commitment: c, rec: r}, nil
}

func (c *recordedCommitment) Respond(ctx context.Context, e uint) (*big.Int, error) {
	y, err := c.Commitment.Respond(ctx, e)
	if err == nil {
		c.rec.transcript = append(c.rec.transcript, big.NewInt(int64(e)).String(), y.String())
	}
	return y, err
}

func TestChallengeUniformity(t *testing.T) {
	const rounds = 2000
	v, _ := setupVerifier(t, rounds, SecureRandom())
	rec := &challengeRecorder{Committer: NewKeyDeriver(nil).NewProver("pw1", testN, SecureRandom())}
	ok, err := v.Verify(context.Background(), "alice", rec)
	require.NoError(t, err)
	require.True(t, ok)

	require.Len(t, rec.transcript, 3*rounds)
	ones := 0
	for i := 1; i < len(rec.transcript); i += 3 {
		if rec.transcript[i] == "1" {
			ones++
		}
	}
	// the standard deviation is about 22
	require.InDelta(t, rounds/2, ones, 150)
}

func TestSessionReplay(t *testing.T) {
	run := func() []string {
		v, _ := setupVerifier(t, DefaultRounds, seeded(t, 7))
		rec := &challengeRecorder{Committer: NewKeyDeriver(nil).NewProver("pw1", testN, seeded(t, 8))}
		ok, err := v.Verify(context.Background(), "alice", rec)
		require.NoError(t, err)
		require.True(t, ok)
		return rec.transcript
	}
	require.Equal(t, run(), run())
}

func TestNonceReused(t *testing.T) {
	ctx := context.Background()
	prover := NewKeyDeriver(nil).NewProver("pw1", testN, SecureRandom())
	c, err := prover.Commit(ctx)
	require.NoError(t, err)
	_, err = c.Respond(ctx, 1)
	require.NoError(t, err)
	_, err = c.Respond(ctx, 0)
	require.True(t, errors.Is(err, ErrNonceReused))

	c, err = prover.Commit(ctx)
	require.NoError(t, err)
	_, err = c.Respond(ctx, 2)
	require.True(t, errors.Is(err, ErrMalformedMessage))
}

func TestNonceRange(t *testing.T) {
	ctx := context.Background()
	n := big.NewInt(35)
	prover := NewProver(n, big.NewInt(2), seeded(t, 3))
	for i := 0; i < 500; i++ {
		c, err := prover.Commit(ctx)
		require.NoError(t, err)
		r := c.(*commitment).r
		require.True(t, r.Sign() > 0 && r.Cmp(big.NewInt(34)) < 0, "nonce %v outside [1, N-1)", r)
	}
}

func TestMain(m *testing.M) {
	Logger.SetLevel(logrus.FatalLevel)
	var err error
	testAuth, err = NewAuthorityFromModulus(testN)
	if err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func TestVerifierNeedsRounds(t *testing.T) {
	for _, rounds := range []int{0, -1} {
		v, err := NewVerifier(testAuth, directory.NewMemoryDirectory(), rounds, SecureRandom())
		require.Nil(t, v)
		require.True(t, errors.Is(err, ErrInvalidParameters), "rounds %d", rounds)
	}

	// a single round already stops a prover without s
	v, _ := setupVerifier(t, 1, SecureRandom())
	ok, err := v.Verify(context.Background(), "alice", &zeroResponder{x: big.NewInt(4)})
	require.False(t, ok)
	require.True(t, errors.Is(err, ErrDegenerateResponse))
}

func TestLookupThenVerifyUser(t *testing.T) {
	ctx := context.Background()
	v, _ := setupVerifier(t, DefaultRounds, SecureRandom())

	_, err := v.Lookup(ctx, "nobody")
	require.True(t, errors.Is(err, ErrUnknownUser))

	user, err := v.Lookup(ctx, "alice")
	require.NoError(t, err)
	h, err := HashFunctionByCode(user.HashCode)
	require.NoError(t, err)
	ok, err := v.VerifyUser(ctx, user, NewKeyDeriver(h).NewProver("pw1", testN, SecureRandom()))
	require.NoError(t, err)
	require.True(t, ok)
}
