package service

import (
	"context"
	"errors"
	"time"

	appointmentserrors "skedit/internal/appointments/errors"
	"skedit/internal/appointments/repository"
	"skedit/internal/appointments/validator"
	"skedit/pkg/config"
	apperrors "skedit/pkg/errors"
	"skedit/pkg/logger"
	"skedit/pkg/model"
	"skedit/pkg/sanitizer"
)

// LockReader is the lock lookup the update guard relies on.
type LockReader interface {
	GetLockInfo(ctx context.Context, resourceID string) (*model.LockView, error)
}

type AppointmentService interface {
	GetByID(ctx context.Context, id string) (*model.AppointmentDetails, error)
	Update(ctx context.Context, id, userID string, updates *model.AppointmentUpdate) (*model.Appointment, error)
}

type appointmentService struct {
	repo      repository.AppointmentRepository
	locks     LockReader
	validator *validator.AppointmentValidator
	log       *logger.Logger
	now       func() time.Time
}

func NewAppointmentService(
	repo repository.AppointmentRepository,
	locks LockReader,
	validator *validator.AppointmentValidator,
	cfg *config.Config,
) AppointmentService {
	return &appointmentService{
		repo:      repo,
		locks:     locks,
		validator: validator,
		log:       cfg.Log.Component("appointment_service"),
		now:       time.Now,
	}
}

func (s *appointmentService) find(ctx context.Context, id string) (*model.Appointment, error) {
	id, err := s.validator.ValidateID(id)
	if err != nil {
		return nil, apperrors.InvalidInput("Invalid appointment ID format")
	}
	appointment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, appointmentserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Appointment", id)
		}
		s.log.Error("Failed to load appointment", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to get appointment", err)
	}
	return appointment, nil
}

func (s *appointmentService) GetByID(ctx context.Context, id string) (*model.AppointmentDetails, error) {
	appointment, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	lock, err := s.locks.GetLockInfo(ctx, appointment.ID)
	if err != nil {
		return nil, err
	}
	return &model.AppointmentDetails{Appointment: appointment, Lock: lock}, nil
}

// Update applies updates for a caller holding a live lock on the
// appointment. The stored version must equal updates.Version.
func (s *appointmentService) Update(ctx context.Context, id, userID string, updates *model.AppointmentUpdate) (*model.Appointment, error) {
	id, err := s.validator.ValidateID(id)
	if err != nil {
		return nil, apperrors.InvalidInput("Invalid appointment ID format")
	}
	sanitize(updates)
	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.log.Warn("Appointment update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	lock, err := s.locks.GetLockInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	if lock == nil || lock.HolderID != userID {
		return nil, apperrors.Forbidden("You must hold the editing lock to update this appointment")
	}

	existing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Version != updates.Version {
		return nil, versionConflict()
	}

	merged := merge(existing, updates)
	if err := s.validator.ValidateTimeRange(merged); err != nil {
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}
	merged.Version = existing.Version + 1
	merged.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, merged, existing.Version); err != nil {
		switch {
		case errors.Is(err, appointmentserrors.ErrVersionConflict):
			return nil, versionConflict()
		case errors.Is(err, appointmentserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("Appointment", id)
		}
		s.log.Error("Failed to update appointment", "id", id, "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to update appointment", err)
	}

	s.log.Info("Appointment updated", "id", id, "user_id", userID, "version", merged.Version)
	return merged, nil
}

func versionConflict() *apperrors.AppError {
	return apperrors.Conflict("Appointment was changed by someone else, reload and try again")
}

func sanitize(updates *model.AppointmentUpdate) {
	if updates == nil {
		return
	}
	if updates.Title != nil {
		title := sanitizer.NormalizeTitle(*updates.Title)
		updates.Title = &title
	}
	if updates.Description != nil {
		description := sanitizer.NormalizeMultiline(*updates.Description)
		updates.Description = &description
	}
}

func merge(existing *model.Appointment, updates *model.AppointmentUpdate) *model.Appointment {
	merged := *existing

	if updates.Title != nil {
		merged.Title = *updates.Title
	}
	if updates.Description != nil {
		merged.Description = *updates.Description
	}
	if updates.StartTime != nil {
		merged.StartTime = *updates.StartTime
	}
	if updates.EndTime != nil {
		merged.EndTime = *updates.EndTime
	}
	if updates.Status != "" {
		merged.Status = updates.Status
	}

	return &merged
}
