package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	lockserrors "skedit/internal/locks/errors"
	"skedit/pkg/config"
	mongotx "skedit/pkg/db/mongo"
	"skedit/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoLockRepository(cfg *config.Config) LockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoLockRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout bounds ctx unless it carries a session; wrapping a
// SessionContext would detach the call from its transaction.
func (r *mongoLockRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if mongotx.InSession(ctx) {
		return ctx, func() {}
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoLockRepository) FindByResource(ctx context.Context, resourceID string) (*model.Lock, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var lock model.Lock
	err := r.collection.FindOne(ctx, bson.M{"_id": resourceID}).Decode(&lock)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find lock: %w", err)
	}
	return &lock, nil
}

func (r *mongoLockRepository) Insert(ctx context.Context, lock *model.Lock) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return lockserrors.ErrLockExists
		}
		return fmt.Errorf("failed to insert lock: %w", err)
	}
	return nil
}

func (r *mongoLockRepository) Extend(ctx context.Context, resourceID, holderID string, expiresAt, now time.Time) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"_id":        resourceID,
		"holder_id":  holderID,
		"expires_at": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{
		"expires_at":    expiresAt,
		"last_activity": now,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to extend lock: %w", err)
	}
	return result.MatchedCount > 0, nil
}

func (r *mongoLockRepository) DeleteByResource(ctx context.Context, resourceID string) (*model.Lock, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	var removed model.Lock
	err := r.collection.FindOneAndDelete(ctx, bson.M{"_id": resourceID}).Decode(&removed)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to delete lock: %w", err)
	}
	return &removed, nil
}

func (r *mongoLockRepository) DeleteOwned(ctx context.Context, resourceID, holderID string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": resourceID, "holder_id": holderID})
	if err != nil {
		return false, fmt.Errorf("failed to release lock: %w", err)
	}
	return result.DeletedCount > 0, nil
}

func (r *mongoLockRepository) UpdatePosition(ctx context.Context, resourceID, holderID string, pos model.Position, now time.Time) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"_id":        resourceID,
		"holder_id":  holderID,
		"expires_at": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"holder_info.position": pos}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to update pointer position: %w", err)
	}
	return result.MatchedCount > 0, nil
}

func (r *mongoLockRepository) FindActiveByHolder(ctx context.Context, holderID string, now time.Time) ([]*model.Lock, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"holder_id": holderID, "expires_at": bson.M{"$gt": now}}
	return r.find(ctx, filter)
}

func (r *mongoLockRepository) find(ctx context.Context, filter bson.M) ([]*model.Lock, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find locks: %w", err)
	}
	defer cursor.Close(ctx)

	locks := make([]*model.Lock, 0)
	if err := cursor.All(ctx, &locks); err != nil {
		return nil, fmt.Errorf("failed to decode locks: %w", err)
	}
	return locks, nil
}

func (r *mongoLockRepository) DeleteActiveByHolder(ctx context.Context, holderID string, now time.Time) ([]*model.Lock, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	candidates, err := r.find(ctx, bson.M{"holder_id": holderID, "expires_at": bson.M{"$gt": now}})
	if err != nil {
		return nil, err
	}
	return r.deleteEach(ctx, candidates, func(l *model.Lock) bson.M {
		return bson.M{"_id": l.ResourceID, "holder_id": holderID, "expires_at": bson.M{"$gt": now}}
	})
}

func (r *mongoLockRepository) DeleteExpired(ctx context.Context, now time.Time) ([]*model.Lock, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	candidates, err := r.find(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return nil, err
	}
	return r.deleteEach(ctx, candidates, func(l *model.Lock) bson.M {
		return bson.M{"_id": l.ResourceID, "expires_at": bson.M{"$lte": now}}
	})
}

// deleteEach re-checks the predicate per row so a lock re-acquired between
// the scan and the delete survives.
func (r *mongoLockRepository) deleteEach(ctx context.Context, candidates []*model.Lock, filter func(*model.Lock) bson.M) ([]*model.Lock, error) {
	removed := make([]*model.Lock, 0, len(candidates))
	for _, candidate := range candidates {
		var lock model.Lock
		err := r.collection.FindOneAndDelete(ctx, filter(candidate)).Decode(&lock)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				continue
			}
			return removed, fmt.Errorf("failed to delete lock %s: %w", candidate.ResourceID, err)
		}
		removed = append(removed, &lock)
	}
	return removed, nil
}

func (r *mongoLockRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
