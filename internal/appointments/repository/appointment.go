package repository

import (
	"context"
	"sync"

	appointmentserrors "skedit/internal/appointments/errors"
	"skedit/pkg/model"
)

const CollectionName = "Appointments"

type AppointmentRepository interface {
	FindByID(ctx context.Context, id string) (*model.Appointment, error)
	// Update replaces the stored appointment only while its version is still
	// expectedVersion.
	Update(ctx context.Context, appointment *model.Appointment, expectedVersion int) error
}

type MemoryAppointmentRepository struct {
	mu           sync.Mutex
	appointments map[string]*model.Appointment
}

func NewMemoryAppointmentRepository(appointments ...*model.Appointment) *MemoryAppointmentRepository {
	r := &MemoryAppointmentRepository{appointments: make(map[string]*model.Appointment)}
	for _, a := range appointments {
		r.Upsert(a)
	}
	return r
}

func (r *MemoryAppointmentRepository) Upsert(a *model.Appointment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.appointments[a.ID] = &cp
}

func (r *MemoryAppointmentRepository) FindByID(ctx context.Context, id string) (*model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, appointmentserrors.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryAppointmentRepository) Update(ctx context.Context, appointment *model.Appointment, expectedVersion int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.appointments[appointment.ID]
	if !ok {
		return appointmentserrors.ErrNotFound
	}
	if existing.Version != expectedVersion {
		return appointmentserrors.ErrVersionConflict
	}
	cp := *appointment
	r.appointments[appointment.ID] = &cp
	return nil
}
