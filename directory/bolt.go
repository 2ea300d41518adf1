package directory

import (
	"context"
	"sort"
	"time"

	"github.com/go-errors/errors"
	"github.com/sirupsen/logrus"
	"github.com/timshannon/bolthold"
	bolt "go.etcd.io/bbolt"

	"github.com/privacybydesign/fiatshamir/big"
	"github.com/privacybydesign/fiatshamir/cbor"
)

// BoltDirectory is a Directory persisted in a bolthold database. Records are CBOR-encoded.
type BoltDirectory struct {
	bolt *bolthold.Store
}

type userRecord struct {
	Username   string   `cbor:"1,keyasint"`
	PublicKey  *big.Int `cbor:"2,keyasint"`
	HashCode   uint64   `cbor:"3,keyasint,omitempty"`
	Modulus    string   `cbor:"4,keyasint,omitempty"`
	Registered int64    `cbor:"5,keyasint"`
	Seq        uint64   `cbor:"6,keyasint"`
}

var sequenceBucket = []byte("directory")

// OpenBolt opens or creates the database at path. Only one process can hold the database open;
// a second one gives up after a second.
func OpenBolt(path string) (*BoltDirectory, error) {
	b, err := bolthold.Open(path, 0600, &bolthold.Options{
		Encoder: cbor.Marshal,
		Decoder: cbor.Unmarshal,
		Options: &bolt.Options{Timeout: 1 * time.Second},
	})
	if err != nil {
		return nil, errors.WrapPrefix(err, "opening user directory", 0)
	}
	return &BoltDirectory{bolt: b}, nil
}

func (d *BoltDirectory) Lookup(ctx context.Context, username string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var r userRecord
	err := d.bolt.Get(username, &r)
	if err == bolthold.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.user(), nil
}

// Register inserts the user in a single bolt transaction, which also serializes concurrent
// registrations.
func (d *BoltDirectory) Register(ctx context.Context, user *User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := user.validate(); err != nil {
		return err
	}
	registered := user.Registered
	if registered.IsZero() {
		registered = time.Now()
	}
	r := &userRecord{
		Username:   user.Username,
		PublicKey:  user.PublicKey,
		HashCode:   user.HashCode,
		Modulus:    user.Modulus,
		Registered: registered.UnixNano(),
	}
	err := d.bolt.Bolt().Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(sequenceBucket)
		if err != nil {
			return err
		}
		if r.Seq, err = b.NextSequence(); err != nil {
			return err
		}
		return d.bolt.TxInsert(tx, user.Username, r)
	})
	if err == bolthold.ErrKeyExists {
		return ErrUserExists
	}
	if err != nil {
		return err
	}
	Logger.WithFields(logrus.Fields{"username": user.Username}).Debug("registered user")
	return nil
}

func (d *BoltDirectory) List(ctx context.Context) ([]*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var records []userRecord
	if err := d.bolt.Find(&records, nil); err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Seq < records[j].Seq
	})
	users := make([]*User, 0, len(records))
	for i := range records {
		users = append(users, records[i].user())
	}
	return users, nil
}

func (d *BoltDirectory) Close() error {
	if d.bolt != nil {
		return d.bolt.Close()
	}
	return nil
}

func (r *userRecord) user() *User {
	return &User{
		Username:   r.Username,
		PublicKey:  r.PublicKey,
		HashCode:   r.HashCode,
		Modulus:    r.Modulus,
		Registered: time.Unix(0, r.Registered),
	}
}
