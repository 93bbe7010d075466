package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"skedit/internal/appointments/repository"
	"skedit/internal/appointments/validator"
	"skedit/pkg/config"
	apperrors "skedit/pkg/errors"
	"skedit/pkg/logger"
	"skedit/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const appointmentID = "0b7e7f4e-4a43-4d8e-9a3f-1f0f5b8a9c01"

type mockLockReader struct {
	lock      *model.LockView
	findError error
	requested []string
}

func (m *mockLockReader) GetLockInfo(ctx context.Context, resourceID string) (*model.LockView, error) {
	m.requested = append(m.requested, resourceID)
	return m.lock, m.findError
}

var start = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T, locks *mockLockReader) (AppointmentService, *repository.MemoryAppointmentRepository) {
	t.Helper()
	log := logger.Discard()
	repo := repository.NewMemoryAppointmentRepository(&model.Appointment{
		ID:        appointmentID,
		Title:     "Checkup",
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
		Status:    config.AppointmentScheduled,
		Version:   1,
	})
	svc := NewAppointmentService(repo, locks, validator.NewAppointmentValidator(log), &config.Config{Log: log})
	return svc, repo
}

func heldBy(userID string) *mockLockReader {
	return &mockLockReader{lock: &model.LockView{ResourceID: appointmentID, HolderID: userID}}
}

func code(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr.Code
}

func ptr[T any](v T) *T { return &v }

func TestGetByID_IncludesLock(t *testing.T) {
	svc, _ := newService(t, heldBy("alice"))

	details, err := svc.GetByID(context.Background(), appointmentID)
	require.NoError(t, err)
	assert.Equal(t, "Checkup", details.Appointment.Title)
	require.NotNil(t, details.Lock)
	assert.Equal(t, "alice", details.Lock.HolderID)
}

func TestGetByID_Errors(t *testing.T) {
	svc, _ := newService(t, &mockLockReader{})

	_, err := svc.GetByID(context.Background(), "bad-id")
	assert.Equal(t, apperrors.CodeInvalidInput, code(t, err))

	_, err = svc.GetByID(context.Background(), "6c1d2e3f-5b6a-4c7d-8e9f-0a1b2c3d4e5f")
	assert.Equal(t, apperrors.CodeNotFound, code(t, err))
}

func TestUpdate_RequiresHeldLock(t *testing.T) {
	svc, _ := newService(t, &mockLockReader{})
	_, err := svc.Update(context.Background(), appointmentID, "alice", &model.AppointmentUpdate{Title: ptr("New"), Version: 1})
	assert.Equal(t, apperrors.CodeForbidden, code(t, err))

	svc, _ = newService(t, heldBy("bob"))
	_, err = svc.Update(context.Background(), appointmentID, "alice", &model.AppointmentUpdate{Title: ptr("New"), Version: 1})
	assert.Equal(t, apperrors.CodeForbidden, code(t, err))
}

func TestUpdate_AppliesAndBumpsVersion(t *testing.T) {
	svc, repo := newService(t, heldBy("alice"))

	updated, err := svc.Update(context.Background(), appointmentID, "alice", &model.AppointmentUpdate{
		Title:   ptr("Follow-up"),
		Status:  config.AppointmentCompleted,
		Version: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "Follow-up", updated.Title)

	stored, err := repo.FindByID(context.Background(), appointmentID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)
	assert.Equal(t, config.AppointmentCompleted, stored.Status)
}

func TestUpdate_UppercaseIDIsCanonicalized(t *testing.T) {
	locks := heldBy("alice")
	svc, repo := newService(t, locks)

	updated, err := svc.Update(context.Background(), strings.ToUpper(appointmentID), "alice", &model.AppointmentUpdate{
		Title:   ptr("Follow-up"),
		Version: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, appointmentID, updated.ID)
	assert.Equal(t, []string{appointmentID}, locks.requested)

	stored, err := repo.FindByID(context.Background(), appointmentID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)

	details, err := svc.GetByID(context.Background(), strings.ToUpper(appointmentID))
	require.NoError(t, err)
	assert.Equal(t, appointmentID, details.Appointment.ID)
}

func TestUpdate_StaleVersionConflicts(t *testing.T) {
	svc, _ := newService(t, heldBy("alice"))

	_, err := svc.Update(context.Background(), appointmentID, "alice", &model.AppointmentUpdate{Title: ptr("One"), Version: 1})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), appointmentID, "alice", &model.AppointmentUpdate{Title: ptr("Two"), Version: 1})
	assert.Equal(t, apperrors.CodeConflict, code(t, err))
}

func TestUpdate_Validation(t *testing.T) {
	svc, _ := newService(t, heldBy("alice"))

	_, err := svc.Update(context.Background(), appointmentID, "alice", &model.AppointmentUpdate{Status: "lost", Version: 1})
	assert.Equal(t, apperrors.CodeValidation, code(t, err))

	_, err = svc.Update(context.Background(), appointmentID, "alice", &model.AppointmentUpdate{
		EndTime: ptr(start.Add(-time.Hour)),
		Version: 1,
	})
	assert.Equal(t, apperrors.CodeValidation, code(t, err))
}

func TestUpdate_NormalizesText(t *testing.T) {
	svc, _ := newService(t, heldBy("alice"))

	updated, err := svc.Update(context.Background(), appointmentID, "alice", &model.AppointmentUpdate{
		Title:       ptr("  Follow-up \t visit "),
		Description: ptr("Bring scans\n\n\n  Fasting  "),
		Version:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Follow-up visit", updated.Title)
	assert.Equal(t, "Bring scans\n\nFasting", updated.Description)

	_, err = svc.Update(context.Background(), appointmentID, "alice", &model.AppointmentUpdate{Title: ptr("   x   "), Version: 2})
	assert.Equal(t, apperrors.CodeValidation, code(t, err), "title shorter than two characters after trimming")
}
