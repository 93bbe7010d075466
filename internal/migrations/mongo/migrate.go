package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appointmentsrepo "skedit/internal/appointments/repository"
	locksrepo "skedit/internal/locks/repository"
	"skedit/internal/migrations/mongo/validators"
	usersrepo "skedit/internal/users/repository"
	"skedit/pkg/logger"
)

var (
	// _id already carries the one-lock-per-appointment constraint.
	LocksIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "holder_id", Value: 1}, {Key: "expires_at", Value: 1}}},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}},
	}

	UsersIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	}

	AppointmentsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "start_time", Value: 1}}},
		{Keys: bson.D{{Key: "doctor_id", Value: 1}, {Key: "start_time", Value: 1}}},
		{Keys: bson.D{{Key: "patient_id", Value: 1}, {Key: "start_time", Value: 1}}},
	}
)

type collection struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func collections() map[string]collection {
	return map[string]collection{
		locksrepo.CollectionName: {
			Indexes:   LocksIndexes,
			Validator: validators.LockValidator,
		},
		usersrepo.CollectionName: {
			Indexes:   UsersIndexes,
			Validator: validators.UserValidator,
		},
		appointmentsrepo.CollectionName: {
			Indexes:   AppointmentsIndexes,
			Validator: validators.AppointmentValidator,
		},
	}
}

func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	for name, def := range collections() {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
