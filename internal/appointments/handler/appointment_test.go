package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"skedit/internal/appointments/repository"
	"skedit/internal/appointments/service"
	"skedit/internal/appointments/validator"
	"skedit/internal/locks/notify"
	"skedit/pkg/auth"
	"skedit/pkg/config"
	"skedit/pkg/logger"
	"skedit/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret    = "appointment-test-secret-01234"
	appointmentID = "0b7e7f4e-4a43-4d8e-9a3f-1f0f5b8a9c01"
)

type mockLockReader struct {
	lock *model.LockView
}

func (m *mockLockReader) GetLockInfo(ctx context.Context, resourceID string) (*model.LockView, error) {
	return m.lock, nil
}

type mockNotifier struct {
	notify.Notifier
	updated []string
}

func (m *mockNotifier) ResourceUpdated(resourceID, userID string, data any) {
	m.updated = append(m.updated, resourceID+"/"+userID)
}

func setup(t *testing.T, holder string) (*httprouter.Router, *auth.Verifier, *mockNotifier) {
	t.Helper()
	log := logger.Discard()
	repo := repository.NewMemoryAppointmentRepository(&model.Appointment{ID: appointmentID, Title: "Checkup", Version: 1})
	locks := &mockLockReader{}
	if holder != "" {
		locks.lock = &model.LockView{ResourceID: appointmentID, HolderID: holder}
	}
	svc := service.NewAppointmentService(repo, locks, validator.NewAppointmentValidator(log), &config.Config{Log: log})
	verifier := auth.NewVerifier(testSecret)
	notifier := &mockNotifier{}

	router := httprouter.New()
	NewAppointmentHandler(svc, notifier, verifier, log).RegisterRoutes(router)
	return router, verifier, notifier
}

func request(t *testing.T, router http.Handler, verifier *auth.Verifier, method, userID, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, "/api/v1/appointments/"+appointmentID, strings.NewReader(body))
	if userID != "" {
		token, err := verifier.Issue(auth.Principal{UserID: userID}, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func TestGetByID(t *testing.T) {
	router, verifier, _ := setup(t, "alice")

	code, body := request(t, router, verifier, http.MethodGet, "bob", "")
	require.Equal(t, http.StatusOK, code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "alice", data["lock"].(map[string]any)["holder_id"])

	code, _ = request(t, router, verifier, http.MethodGet, "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestUpdate_NotifiesRoom(t *testing.T) {
	router, verifier, notifier := setup(t, "alice")

	code, body := request(t, router, verifier, http.MethodPatch, "alice", `{"title":"Follow-up","version":1}`)
	require.Equal(t, http.StatusOK, code, body["message"])
	assert.Equal(t, float64(2), body["data"].(map[string]any)["version"])
	assert.Equal(t, []string{appointmentID + "/alice"}, notifier.updated)
}

func TestUpdate_WithoutLockIsForbidden(t *testing.T) {
	router, verifier, notifier := setup(t, "alice")

	code, _ := request(t, router, verifier, http.MethodPatch, "bob", `{"title":"Mine now","version":1}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Empty(t, notifier.updated)
}

func TestUpdate_RejectsUnknownFields(t *testing.T) {
	router, verifier, _ := setup(t, "alice")

	code, body := request(t, router, verifier, http.MethodPatch, "alice", `{"owner":"alice","version":1}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid request body", body["message"])
}
