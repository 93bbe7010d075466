package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	lockserrors "skedit/internal/locks/errors"
	"skedit/internal/locks/repository"
	"skedit/internal/locks/validator"
	"skedit/pkg/config"
	apperrors "skedit/pkg/errors"
	"skedit/pkg/logger"
	"skedit/pkg/metrics"
	"skedit/pkg/model"
)

// UserDirectory resolves identities. FindByID returns nil, nil for an unknown
// user.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// LockService grants exclusive, leased editing rights over appointments.
// Expected business outcomes (conflict, not owned, unknown user) come back as
// *apperrors.AppError values; ExtendLock and UpdatePointerPosition are best
// effort and never fail.
type LockService interface {
	GetLockInfo(ctx context.Context, resourceID string) (*model.LockView, error)
	AcquireLock(ctx context.Context, resourceID, userID string) (*model.LockView, error)
	ExtendLock(ctx context.Context, resourceID, userID string) bool
	ReleaseLock(ctx context.Context, resourceID, userID string) error
	ForceLock(ctx context.Context, resourceID, adminID string) (*model.Takeover, error)
	UpdatePointerPosition(ctx context.Context, resourceID, userID string, pos model.Position)
	GetResourceLocks(ctx context.Context, resourceID string) ([]*model.Lock, error)
	GetUserActiveLocks(ctx context.Context, userID string) ([]*model.Lock, error)
	ForceReleaseUserLocks(ctx context.Context, userID, adminID string) ([]*model.Lock, error)
	SweepExpired(ctx context.Context) ([]*model.Lock, error)
}

type Option func(*lockService)

// WithClock replaces time.Now. Tests use it to move through a lease.
func WithClock(now func() time.Time) Option {
	return func(s *lockService) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *lockService) { s.metrics = m }
}

// WithExpiredHandler is called with every expired lock an acquisition or
// takeover reclaims, after the transaction commits.
func WithExpiredHandler(fn func(*model.Lock)) Option {
	return func(s *lockService) { s.onExpired = fn }
}

type lockService struct {
	repo      repository.LockRepository
	users     UserDirectory
	validator *validator.LockValidator
	lease     time.Duration
	log       *logger.Logger
	metrics   *metrics.Metrics
	onExpired func(*model.Lock)
	now       func() time.Time
}

func NewLockService(
	repo repository.LockRepository,
	users UserDirectory,
	validator *validator.LockValidator,
	cfg *config.Config,
	opts ...Option,
) LockService {
	s := &lockService{
		repo:      repo,
		users:     users,
		validator: validator,
		lease:     cfg.LockLeaseDuration,
		log:       cfg.Log.Component("lock_service"),
		onExpired: func(*model.Lock) {},
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// canonicalID validates resourceID and returns the form every store and room
// is keyed by.
func (s *lockService) canonicalID(resourceID string) (string, error) {
	id, err := s.validator.ValidateResourceID(resourceID)
	if err != nil {
		return "", apperrors.InvalidInput("Invalid appointment ID format")
	}
	return id, nil
}

func (s *lockService) GetLockInfo(ctx context.Context, resourceID string) (*model.LockView, error) {
	resourceID, err := s.canonicalID(resourceID)
	if err != nil {
		return nil, err
	}

	lock, err := s.repo.FindByResource(ctx, resourceID)
	if err != nil {
		s.log.Error("Failed to read lock", "resource_id", resourceID, "error", err)
		return nil, apperrors.Internal("Failed to get lock info", err)
	}

	now := s.now()
	if lock == nil || lock.Expired(now) {
		return nil, nil
	}
	return lock.View(now), nil
}

func (s *lockService) AcquireLock(ctx context.Context, resourceID, userID string) (*model.LockView, error) {
	resourceID, err := s.canonicalID(resourceID)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	now := s.now()
	var acquired, reclaimed *model.Lock
	err = s.repo.WithinTransaction(ctx, func(tx context.Context) error {
		var err error
		acquired, reclaimed, err = s.acquire(tx, resourceID, userID, now)
		return err
	})
	if errors.Is(err, lockserrors.ErrLockExists) {
		err = s.lostRace(ctx, resourceID, now)
	}
	s.metrics.LockOperation("acquire", err)
	if err != nil {
		return nil, s.fail("acquire", resourceID, userID, err)
	}
	if reclaimed != nil {
		s.onExpired(reclaimed)
	}

	s.log.Info("Lock acquired",
		"resource_id", resourceID,
		"user_id", userID,
		"expires_at", acquired.ExpiresAt,
	)
	return acquired.View(now), nil
}

// acquire is the check-then-act protocol. It must run inside a transaction.
// The second result is the expired row it cleared, if any. A concurrent
// insert surfaces as lockserrors.ErrLockExists.
func (s *lockService) acquire(tx context.Context, resourceID, userID string, now time.Time) (*model.Lock, *model.Lock, error) {
	existing, err := s.repo.FindByResource(tx, resourceID)
	if err != nil {
		return nil, nil, apperrors.Internal("Failed to acquire lock", err)
	}

	var reclaimed *model.Lock
	if existing != nil {
		if !existing.Expired(now) {
			if existing.HolderID != userID {
				return nil, nil, heldBy(existing.HolderInfo.Name)
			}
			expiresAt := now.Add(s.lease)
			if _, err := s.repo.Extend(tx, resourceID, userID, expiresAt, now); err != nil {
				return nil, nil, apperrors.Internal("Failed to acquire lock", err)
			}
			existing.ExpiresAt = expiresAt
			existing.LastActivity = now
			return existing, nil, nil
		}

		if _, err := s.repo.DeleteByResource(tx, resourceID); err != nil {
			return nil, nil, apperrors.Internal("Failed to acquire lock", err)
		}
		reclaimed = existing
	}

	user, err := s.users.FindByID(tx, userID)
	if err != nil {
		return nil, nil, apperrors.Internal("Failed to resolve user", err)
	}
	if user == nil {
		return nil, nil, apperrors.NotFoundMessage("User not found")
	}

	lock := &model.Lock{
		ResourceID:   resourceID,
		HolderID:     userID,
		HolderInfo:   user.HolderInfo(),
		ExpiresAt:    now.Add(s.lease),
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := s.repo.Insert(tx, lock); err != nil {
		if errors.Is(err, lockserrors.ErrLockExists) {
			return nil, nil, err
		}
		return nil, nil, apperrors.Internal("Failed to acquire lock", err)
	}
	return lock, reclaimed, nil
}

// lostRace builds the conflict for an insert that lost to a concurrent
// acquisition. The winner is read outside the aborted transaction.
func (s *lockService) lostRace(ctx context.Context, resourceID string, now time.Time) error {
	winner, err := s.repo.FindByResource(ctx, resourceID)
	if err != nil || winner == nil || winner.Expired(now) || winner.HolderInfo.Name == "" {
		return heldBy("another user")
	}
	return heldBy(winner.HolderInfo.Name)
}

func heldBy(name string) *apperrors.AppError {
	return apperrors.Conflict(fmt.Sprintf("Appointment is currently being edited by %s", name))
}

func (s *lockService) ExtendLock(ctx context.Context, resourceID, userID string) bool {
	resourceID, err := s.validator.ValidateResourceID(resourceID)
	if err != nil || userID == "" {
		return false
	}

	now := s.now()
	extended, err := s.repo.Extend(ctx, resourceID, userID, now.Add(s.lease), now)
	s.metrics.LockOperation("extend", err)
	if err != nil {
		s.log.Warn("Failed to extend lock", "resource_id", resourceID, "user_id", userID, "error", err)
		return false
	}
	if !extended {
		s.log.Debug("Heartbeat ignored, lock not held", "resource_id", resourceID, "user_id", userID)
	}
	return extended
}

func (s *lockService) ReleaseLock(ctx context.Context, resourceID, userID string) error {
	resourceID, err := s.canonicalID(resourceID)
	if err != nil {
		return err
	}

	released, err := s.repo.DeleteOwned(ctx, resourceID, userID)
	if err != nil {
		s.metrics.LockOperation("release", err)
		return s.fail("release", resourceID, userID, apperrors.Internal("Failed to release lock", err))
	}
	if !released {
		s.metrics.LockOperation("release", lockserrors.ErrLockNotFound)
		return apperrors.NotFoundMessage("Lock not found or not owned by user")
	}

	s.metrics.LockOperation("release", nil)
	s.log.Info("Lock released", "resource_id", resourceID, "user_id", userID)
	return nil
}

func (s *lockService) requireAdmin(ctx context.Context, adminID string) error {
	admin, err := s.users.FindByID(ctx, adminID)
	if err != nil {
		return apperrors.Internal("Failed to resolve user", err)
	}
	if admin == nil {
		return apperrors.NotFoundMessage("User not found")
	}
	if !admin.IsAdmin() {
		return apperrors.Forbidden("Admin permission required")
	}
	return nil
}

func (s *lockService) ForceLock(ctx context.Context, resourceID, adminID string) (*model.Takeover, error) {
	resourceID, err := s.canonicalID(resourceID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	now := s.now()
	var previous, reclaimed, acquired *model.Lock
	err = s.repo.WithinTransaction(ctx, func(tx context.Context) error {
		previous, reclaimed = nil, nil
		removed, err := s.repo.DeleteByResource(tx, resourceID)
		if err != nil {
			return apperrors.Internal("Failed to force lock", err)
		}
		if removed != nil {
			if removed.Expired(now) {
				reclaimed = removed
			} else {
				previous = removed
			}
		}
		acquired, _, err = s.acquire(tx, resourceID, adminID, now)
		return err
	})
	if errors.Is(err, lockserrors.ErrLockExists) {
		err = s.lostRace(ctx, resourceID, now)
	}
	s.metrics.LockOperation("force", err)
	if err != nil {
		return nil, s.fail("force", resourceID, adminID, err)
	}
	if reclaimed != nil {
		s.onExpired(reclaimed)
	}

	takeover := &model.Takeover{Lock: acquired.View(now)}
	if previous != nil {
		takeover.Previous = previous.View(now)
	}

	s.log.Info("Lock forced",
		"resource_id", resourceID,
		"admin_id", adminID,
		"previous_holder_id", holderID(previous),
	)
	return takeover, nil
}

func holderID(l *model.Lock) string {
	if l == nil {
		return ""
	}
	return l.HolderID
}

func (s *lockService) UpdatePointerPosition(ctx context.Context, resourceID, userID string, pos model.Position) {
	resourceID, err := s.validator.ValidateResourceID(resourceID)
	if err != nil || s.validator.ValidatePosition(pos) != nil {
		return
	}
	if _, err := s.repo.UpdatePosition(ctx, resourceID, userID, pos, s.now()); err != nil {
		s.log.Debug("Failed to record pointer position", "resource_id", resourceID, "user_id", userID, "error", err)
	}
}

func (s *lockService) GetResourceLocks(ctx context.Context, resourceID string) ([]*model.Lock, error) {
	resourceID, err := s.canonicalID(resourceID)
	if err != nil {
		return nil, err
	}

	lock, err := s.repo.FindByResource(ctx, resourceID)
	if err != nil {
		return nil, s.fail("resource_locks", resourceID, "", apperrors.Internal("Failed to get appointment locks", err))
	}
	if lock == nil {
		return []*model.Lock{}, nil
	}
	return []*model.Lock{lock}, nil
}

func (s *lockService) GetUserActiveLocks(ctx context.Context, userID string) ([]*model.Lock, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	locks, err := s.repo.FindActiveByHolder(ctx, userID, s.now())
	if err != nil {
		return nil, s.fail("user_locks", "", userID, apperrors.Internal("Failed to get user locks", err))
	}
	return locks, nil
}

func (s *lockService) ForceReleaseUserLocks(ctx context.Context, userID, adminID string) ([]*model.Lock, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	released, err := s.repo.DeleteActiveByHolder(ctx, userID, s.now())
	s.metrics.LockOperation("force_release_user", err)
	if err != nil {
		return nil, s.fail("force_release_user", "", userID, apperrors.Internal("Failed to release user locks", err))
	}

	s.log.Info("User locks force released",
		"user_id", userID,
		"admin_id", adminID,
		"count", len(released),
	)
	return released, nil
}

func (s *lockService) SweepExpired(ctx context.Context) ([]*model.Lock, error) {
	swept, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return swept, fmt.Errorf("failed to sweep expired locks: %w", err)
	}
	return swept, nil
}

// fail logs unexpected failures. Business outcomes pass through quietly.
func (s *lockService) fail(operation, resourceID, userID string, err error) error {
	appErr := apperrors.AsAppError(err)
	if appErr.Code == apperrors.CodeInternal {
		s.log.Error("Lock operation failed",
			"operation", operation,
			"resource_id", resourceID,
			"user_id", userID,
			"error", err,
		)
	}
	return appErr
}
