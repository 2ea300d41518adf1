package directory

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MemoryDirectory is a Directory held in process memory.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]*User
	order []string
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{users: make(map[string]*User)}
}

func (d *MemoryDirectory) Lookup(ctx context.Context, username string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	return u.clone(), nil
}

func (d *MemoryDirectory) Register(ctx context.Context, user *User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := user.validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.users[user.Username]; exists {
		return ErrUserExists
	}
	u := user.clone()
	if u.Registered.IsZero() {
		u.Registered = time.Now()
	}
	d.users[u.Username] = u
	d.order = append(d.order, u.Username)
	Logger.WithFields(logrus.Fields{"username": u.Username, "users": len(d.order)}).Debug("registered user")
	return nil
}

func (d *MemoryDirectory) List(ctx context.Context) ([]*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	users := make([]*User, 0, len(d.order))
	for _, name := range d.order {
		users = append(users, d.users[name].clone())
	}
	return users, nil
}
