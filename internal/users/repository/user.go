package repository

import (
	"context"
	"sync"

	"skedit/pkg/model"
)

const CollectionName = "Users"

// UserRepository is read-only. FindByID returns nil, nil for an unknown id.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*model.User
}

func NewMemoryUserRepository(users ...*model.User) *MemoryUserRepository {
	r := &MemoryUserRepository{users: make(map[string]*model.User)}
	for _, u := range users {
		r.Upsert(u)
	}
	return r
}

func (r *MemoryUserRepository) Upsert(u *model.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
}

func (r *MemoryUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}
