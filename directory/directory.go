// Package directory stores the public keys of registered users.
//
// A Directory is consulted once at the start of every verification session and written once per
// registration. Implementations are safe for concurrent use: a registration can never interleave
// with a lookup or another registration of the same username.
//
// Usernames are unique. Registering a name twice fails with ErrUserExists; the first key stays in
// place.
package directory

import (
	"context"
	"time"

	"github.com/go-errors/errors"
	"github.com/sirupsen/logrus"

	"github.com/privacybydesign/fiatshamir/big"
)

var Logger = logrus.StandardLogger()

var (
	ErrNotFound    = errors.New("user not found")
	ErrUserExists  = errors.New("username already registered")
	ErrInvalidUser = errors.New("invalid user record")
)

// User is a registered username with its public key v = s^2 mod N.
type User struct {
	Username  string
	PublicKey *big.Int
	// HashCode is the multihash code of the hash function the key was derived with.
	HashCode uint64
	// Modulus is the fingerprint of the modulus the key was derived under.
	Modulus    string
	Registered time.Time
}

// Directory maps usernames to public keys.
type Directory interface {
	// Lookup returns the user registered under username, or ErrNotFound.
	Lookup(ctx context.Context, username string) (*User, error)
	// Register adds a user. It fails with ErrUserExists if the username is taken.
	Register(ctx context.Context, user *User) error
	// List returns all users in registration order.
	List(ctx context.Context) ([]*User, error)
}

func (u *User) validate() error {
	if u == nil {
		return errors.WrapPrefix(ErrInvalidUser, "nil user", 0)
	}
	if u.Username == "" {
		return errors.WrapPrefix(ErrInvalidUser, "empty username", 0)
	}
	if u.PublicKey == nil || u.PublicKey.Sign() <= 0 {
		return errors.WrapPrefix(ErrInvalidUser, "public key must be positive", 0)
	}
	return nil
}

func (u *User) clone() *User {
	c := *u
	c.PublicKey = new(big.Int).Set(u.PublicKey)
	return &c
}
