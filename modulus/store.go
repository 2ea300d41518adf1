// Package modulus persists the shared modulus N. Only N is ever stored: the factors are never
// handed to a Store.
//
// N is stored as raw unsigned little-endian bytes (the nfile.dat layout), so existing modulus
// files load unchanged.
package modulus

import (
	"io"
	"os"
	"sync"

	"github.com/go-errors/errors"

	"github.com/privacybydesign/fiatshamir/big"
	"github.com/privacybydesign/fiatshamir/internal/common"
)

var (
	// ErrNotFound is returned by Load when no modulus has been stored yet.
	ErrNotFound = errors.New("no modulus stored")
	// ErrExists is returned by Save when a modulus has already been stored. Replacing N would
	// invalidate every public key registered under it.
	ErrExists = errors.New("a modulus is already stored")
	// ErrInvalid is returned for values that cannot be a modulus.
	ErrInvalid = errors.New("invalid modulus")
)

// Store persists a single modulus.
type Store interface {
	// Load returns the stored modulus, or ErrNotFound.
	Load() (*big.Int, error)
	// Save stores n. It fails with ErrExists if a modulus is already present.
	Save(n *big.Int) error
}

// Encode returns the on-disk representation of n.
func Encode(n *big.Int) ([]byte, error) {
	if n == nil || n.Sign() <= 0 {
		return nil, ErrInvalid
	}
	return n.LittleEndianBytes(), nil
}

// Decode parses the on-disk representation of a modulus. Trailing zero bytes, as written by
// encoders that append a sign byte, are accepted.
func Decode(b []byte) (*big.Int, error) {
	n := big.FromLittleEndian(b)
	if n.Sign() == 0 {
		return nil, ErrInvalid
	}
	return n, nil
}

// FileStore keeps the modulus in a single file.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Load() (*big.Int, error) {
	f, err := os.Open(s.Path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer common.Close(f)

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	n, err := Decode(b)
	if err != nil {
		return nil, errors.WrapPrefix(err, s.Path, 0)
	}
	return n, nil
}

// Save writes n to a new file. An existing file is never overwritten.
func (s *FileStore) Save(n *big.Int) error {
	b, err := Encode(n)
	if err != nil {
		return err
	}
	// This returns an error if the file already exists
	f, err := os.OpenFile(s.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if os.IsExist(err) {
		return ErrExists
	}
	if err != nil {
		return err
	}
	if _, err = f.Write(b); err != nil {
		common.Close(f)
		return err
	}
	return f.Close()
}

// MemoryStore keeps the modulus in memory. The zero value is an empty store.
type MemoryStore struct {
	mu sync.Mutex
	n  *big.Int
}

func (s *MemoryStore) Load() (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.n == nil {
		return nil, ErrNotFound
	}
	return new(big.Int).Set(s.n), nil
}

func (s *MemoryStore) Save(n *big.Int) error {
	if _, err := Encode(n); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.n != nil {
		return ErrExists
	}
	s.n = new(big.Int).Set(n)
	return nil
}
