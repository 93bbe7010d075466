package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	lockserrors "skedit/internal/locks/errors"
	"skedit/pkg/model"
)

type txKey struct{}

// memoryLockRepository keeps locks in a map. A transaction holds the mutex
// for its whole duration and restores a snapshot if fn fails, which gives
// the same isolation the Mongo transaction gives.
type memoryLockRepository struct {
	mu    sync.Mutex
	locks map[string]*model.Lock
}

func NewMemoryLockRepository() LockRepository {
	return &memoryLockRepository{locks: make(map[string]*model.Lock)}
}

func (r *memoryLockRepository) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) == r {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *memoryLockRepository) FindByResource(ctx context.Context, resourceID string) (*model.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.lock(ctx)()
	return cloneLock(r.locks[resourceID]), nil
}

func (r *memoryLockRepository) Insert(ctx context.Context, lock *model.Lock) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.lock(ctx)()
	if _, exists := r.locks[lock.ResourceID]; exists {
		return lockserrors.ErrLockExists
	}
	r.locks[lock.ResourceID] = cloneLock(lock)
	return nil
}

func (r *memoryLockRepository) Extend(ctx context.Context, resourceID, holderID string, expiresAt, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	defer r.lock(ctx)()
	l, ok := r.locks[resourceID]
	if !ok || l.HolderID != holderID || l.Expired(now) {
		return false, nil
	}
	l.ExpiresAt = expiresAt
	l.LastActivity = now
	return true, nil
}

func (r *memoryLockRepository) DeleteByResource(ctx context.Context, resourceID string) (*model.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.lock(ctx)()
	l, ok := r.locks[resourceID]
	if !ok {
		return nil, nil
	}
	delete(r.locks, resourceID)
	return l, nil
}

func (r *memoryLockRepository) DeleteOwned(ctx context.Context, resourceID, holderID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	defer r.lock(ctx)()
	l, ok := r.locks[resourceID]
	if !ok || l.HolderID != holderID {
		return false, nil
	}
	delete(r.locks, resourceID)
	return true, nil
}

func (r *memoryLockRepository) UpdatePosition(ctx context.Context, resourceID, holderID string, pos model.Position, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	defer r.lock(ctx)()
	l, ok := r.locks[resourceID]
	if !ok || l.HolderID != holderID || l.Expired(now) {
		return false, nil
	}
	l.HolderInfo.Position = &pos
	return true, nil
}

func (r *memoryLockRepository) FindActiveByHolder(ctx context.Context, holderID string, now time.Time) ([]*model.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.lock(ctx)()
	return r.collect(func(l *model.Lock) bool {
		return l.HolderID == holderID && !l.Expired(now)
	}, false), nil
}

func (r *memoryLockRepository) DeleteActiveByHolder(ctx context.Context, holderID string, now time.Time) ([]*model.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.lock(ctx)()
	return r.collect(func(l *model.Lock) bool {
		return l.HolderID == holderID && !l.Expired(now)
	}, true), nil
}

func (r *memoryLockRepository) DeleteExpired(ctx context.Context, now time.Time) ([]*model.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.lock(ctx)()
	return r.collect(func(l *model.Lock) bool {
		return l.Expired(now)
	}, true), nil
}

// collect must be called with the mutex held.
func (r *memoryLockRepository) collect(match func(*model.Lock) bool, remove bool) []*model.Lock {
	out := make([]*model.Lock, 0)
	for id, l := range r.locks {
		if !match(l) {
			continue
		}
		if remove {
			delete(r.locks, id)
			out = append(out, l)
		} else {
			out = append(out, cloneLock(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *memoryLockRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) == r {
		return fn(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[string]*model.Lock, len(r.locks))
	for id, l := range r.locks {
		snapshot[id] = cloneLock(l)
	}

	if err := fn(context.WithValue(ctx, txKey{}, r)); err != nil {
		r.locks = snapshot
		return err
	}
	return nil
}
