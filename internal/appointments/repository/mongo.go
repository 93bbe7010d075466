package repository

import (
	"context"
	"errors"
	"fmt"

	appointmentserrors "skedit/internal/appointments/errors"
	"skedit/pkg/config"
	"skedit/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type mongoAppointmentRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoAppointmentRepository(cfg *config.Config) AppointmentRepository {
	return &mongoAppointmentRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CollectionName),
	}
}

func (r *mongoAppointmentRepository) FindByID(ctx context.Context, id string) (*model.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var appointment model.Appointment
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&appointment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appointmentserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}
	return &appointment, nil
}

func (r *mongoAppointmentRepository) Update(ctx context.Context, appointment *model.Appointment, expectedVersion int) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": appointment.ID, "version": expectedVersion}
	update := bson.M{
		"$set": bson.M{
			"title":       appointment.Title,
			"description": appointment.Description,
			"start_time":  appointment.StartTime,
			"end_time":    appointment.EndTime,
			"status":      appointment.Status,
			"version":     appointment.Version,
			"updated_at":  appointment.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": appointment.ID})
	if err != nil {
		return fmt.Errorf("failed to check appointment existence: %w", err)
	}
	if count == 0 {
		return appointmentserrors.ErrNotFound
	}
	return appointmentserrors.ErrVersionConflict
}
