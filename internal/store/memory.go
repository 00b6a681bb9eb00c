package store

import (
	"context"
	"sync"
	"time"

	"github.com/jjudge-oj/accounts/types"
)

// MemoryUserRepository keeps users in process memory. Used with DB_DRIVER=memory.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	users  map[int64]types.User
	nextID int64
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[int64]types.User)}
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id int64) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.usernameTaken(user.Username, 0) {
		return types.User{}, ErrConflict
	}

	now := time.Now()
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok {
		return types.User{}, ErrNotFound
	}
	if r.usernameTaken(user.Username, user.ID) {
		return types.User{}, ErrConflict
	}

	user.CreatedAt = existing.CreatedAt
	user.LastLogin = existing.LastLogin
	user.UpdatedAt = time.Now()
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryUserRepository) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.LastLogin = &at
	r.users[id] = user
	return nil
}

func (r *MemoryUserRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), nil
}

// usernameTaken must be called with r.mu held.
func (r *MemoryUserRepository) usernameTaken(username string, exceptID int64) bool {
	for id, user := range r.users {
		if id != exceptID && user.Username == username {
			return true
		}
	}
	return false
}
