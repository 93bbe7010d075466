package repository

import (
	"context"
	"time"

	"skedit/pkg/model"
)

const CollectionName = "Appointment_locks"

// LockRepository stores at most one row per resource. Reads return rows as
// stored, expired or not; soft expiry is the caller's concern unless a
// method takes now.
type LockRepository interface {
	// FindByResource returns nil, nil when no row exists.
	FindByResource(ctx context.Context, resourceID string) (*model.Lock, error)
	// Insert fails with ErrLockExists when a row for the resource exists.
	Insert(ctx context.Context, lock *model.Lock) error
	// Extend moves expires_at of a live row held by holderID. It reports
	// whether a row matched.
	Extend(ctx context.Context, resourceID, holderID string, expiresAt, now time.Time) (bool, error)
	// DeleteByResource removes the row regardless of holder and returns it.
	DeleteByResource(ctx context.Context, resourceID string) (*model.Lock, error)
	// DeleteOwned removes the row only when held by holderID.
	DeleteOwned(ctx context.Context, resourceID, holderID string) (bool, error)
	UpdatePosition(ctx context.Context, resourceID, holderID string, pos model.Position, now time.Time) (bool, error)
	FindActiveByHolder(ctx context.Context, holderID string, now time.Time) ([]*model.Lock, error)
	// DeleteActiveByHolder removes every live row held by holderID and
	// returns what it removed.
	DeleteActiveByHolder(ctx context.Context, holderID string, now time.Time) ([]*model.Lock, error)
	// DeleteExpired removes rows with expires_at <= now and returns them.
	DeleteExpired(ctx context.Context, now time.Time) ([]*model.Lock, error)
	// WithinTransaction runs fn atomically. Repository calls made with the
	// ctx passed to fn join the transaction.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

func cloneLock(l *model.Lock) *model.Lock {
	if l == nil {
		return nil
	}
	c := *l
	if l.HolderInfo.Position != nil {
		pos := *l.HolderInfo.Position
		c.HolderInfo.Position = &pos
	}
	return &c
}
