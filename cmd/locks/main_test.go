package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"skedit/internal/presence"
	"skedit/pkg/auth"
	"skedit/pkg/client"
	"skedit/pkg/config"
	apperrors "skedit/pkg/errors"
	"skedit/pkg/logger"
	"skedit/pkg/metrics"
	"skedit/pkg/model"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret    = "locks-e2e-test-secret-0123456789"
	appointmentID = "6f1c2b7a-93d4-4e0f-8a51-2c9d7b3e4f10"
)

const seedJSON = `{
  "users": [
    {"id": "alice", "name": "Alice", "email": "alice@example.com", "role": "user"},
    {"id": "bob", "name": "Bob", "email": "bob@example.com", "role": "user"},
    {"id": "root", "name": "Root", "email": "root@example.com", "role": "admin"}
  ],
  "appointments": [
    {
      "id": "6f1c2b7a-93d4-4e0f-8a51-2c9d7b3e4f10",
      "title": "Follow-up",
      "start_time": "2026-11-02T09:00:00Z",
      "end_time": "2026-11-02T09:30:00Z",
      "status": "scheduled",
      "patient_id": "p-1",
      "doctor_id": "d-1"
    }
  ]
}`

type testService struct {
	server   *httptest.Server
	verifier *auth.Verifier
}

func startService(t *testing.T) *testService {
	t.Helper()
	seedFile := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(seedFile, []byte(seedJSON), 0o600))

	cfg := &config.Config{
		Port:               "0",
		JWTSecret:          testSecret,
		RateLimitRequests:  1000,
		RateLimitWindow:    time.Minute,
		RequestTimeout:     5 * time.Second,
		MaxRequestSize:     1 << 20,
		StoreDriver:        config.StoreMemory,
		SeedFile:           seedFile,
		LockLeaseDuration:  5 * time.Minute,
		LockSweepInterval:  time.Second,
		HeartbeatInterval:  30 * time.Second,
		PointerMinInterval: 10 * time.Millisecond,
		PushEnabled:        true,
		ConnSendBuffer:     32,
		FanoutDriver:       config.FanoutLocal,
		Log:                logger.Discard(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	serverApp := build(ctx, cfg, metrics.New())
	srv := httptest.NewServer(serverApp.Handler())
	t.Cleanup(func() {
		srv.Close()
		serverApp.StopWorkers()
		cancel()
	})
	return &testService{server: srv, verifier: auth.NewVerifier(testSecret)}
}

func (s *testService) token(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := s.verifier.Issue(auth.Principal{
		UserID: userID,
		Name:   strings.ToUpper(userID[:1]) + userID[1:],
		Email:  userID + "@example.com",
		Role:   role,
	}, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testService) api(t *testing.T, userID, role string) *client.APIClient {
	return client.NewAPIClient(s.server.URL, s.token(t, userID, role))
}

func (s *testService) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?token=" + s.token(t, userID, config.RoleUser)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// next reads frames until one named event arrives.
func next(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Event == event {
			return f.Data
		}
	}
}

func nextLockEvent(t *testing.T, conn *websocket.Conn) presence.LockEvent {
	t.Helper()
	var ev presence.LockEvent
	require.NoError(t, json.Unmarshal(next(t, conn, presence.EventLockEvent), &ev))
	return ev
}

func requireCode(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	require.Equal(t, code, appErr.Code, appErr.Message)
	return appErr
}

func TestLocksService_EditingSession(t *testing.T) {
	svc := startService(t)
	alice := svc.api(t, "alice", config.RoleUser)
	bob := svc.api(t, "bob", config.RoleUser)
	root := svc.api(t, "root", config.RoleAdmin)
	require.NoError(t, alice.WaitForHealthy(5*time.Second))

	watcher := svc.dial(t, "bob")
	require.NoError(t, watcher.WriteJSON(map[string]any{
		"event": presence.EventJoinRoom,
		"data":  map[string]string{"resource_id": appointmentID},
	}))
	var status presence.LockStatus
	require.NoError(t, json.Unmarshal(next(t, watcher, presence.EventLockStatus), &status))
	assert.Nil(t, status.Lock)
	assert.Equal(t, int64(30000), status.HeartbeatIntervalMs)

	view, err := alice.Acquire(appointmentID)
	require.NoError(t, err)
	assert.Equal(t, "alice", view.HolderID)
	assert.Equal(t, "Alice", view.HolderInfo.Name)

	ev := nextLockEvent(t, watcher)
	assert.Equal(t, presence.LockAcquired, ev.Type)
	require.NotNil(t, ev.UserID)
	assert.Equal(t, "alice", *ev.UserID)

	current, err := bob.LockStatus(appointmentID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "alice", current.HolderID)

	_, err = bob.Acquire(appointmentID)
	appErr := requireCode(t, err, apperrors.CodeConflict)
	assert.Equal(t, http.StatusConflict, appErr.StatusCode())
	assert.Equal(t, "Appointment is currently being edited by Alice", appErr.Message)

	title := "Follow-up (rescheduled)"
	updated, err := alice.UpdateAppointment(appointmentID, &model.AppointmentUpdate{Title: &title, Version: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, title, updated.Title)
	next(t, watcher, presence.EventResourceUpdated)

	_, err = bob.UpdateAppointment(appointmentID, &model.AppointmentUpdate{Title: &title, Version: 2})
	requireCode(t, err, apperrors.CodeForbidden)

	takeover, err := root.ForceAcquire(appointmentID)
	require.NoError(t, err)
	assert.Equal(t, "root", takeover.Lock.HolderID)
	require.NotNil(t, takeover.Previous)
	assert.Equal(t, "alice", takeover.Previous.HolderID)

	ev = nextLockEvent(t, watcher)
	assert.Equal(t, presence.LockForceTaken, ev.Type)

	// Frames on one connection are handled in order, so lock_status arrives
	// only after the heartbeat was handled.
	displaced := svc.dial(t, "alice")
	require.NoError(t, displaced.WriteJSON(map[string]any{
		"event": presence.EventHeartbeat,
		"data":  map[string]string{"resource_id": appointmentID},
	}))
	require.NoError(t, displaced.WriteJSON(map[string]any{
		"event": presence.EventJoinRoom,
		"data":  map[string]string{"resource_id": appointmentID},
	}))
	require.NoError(t, json.Unmarshal(next(t, displaced, presence.EventLockStatus), &status))
	require.NotNil(t, status.Lock)
	assert.Equal(t, "root", status.Lock.HolderID)
	assert.True(t, status.Lock.ExpiresAt.Equal(takeover.Lock.ExpiresAt), "heartbeat from a displaced holder must not extend the lock")

	_, err = alice.UpdateAppointment(appointmentID, &model.AppointmentUpdate{Title: &title, Version: 2})
	requireCode(t, err, apperrors.CodeForbidden)

	held, err := root.UserLocks("root")
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, appointmentID, held[0].ResourceID)

	released, err := root.ReleaseUserLocks("root")
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	current, err = bob.LockStatus(appointmentID)
	require.NoError(t, err)
	assert.Nil(t, current)

	details, err := bob.Appointment(appointmentID)
	require.NoError(t, err)
	assert.Equal(t, 2, details.Appointment.Version)
	assert.Nil(t, details.Lock)
}

func TestLocksService_RejectsAnonymousCalls(t *testing.T) {
	svc := startService(t)
	anon := client.NewAPIClient(svc.server.URL, "")

	_, err := anon.Acquire(appointmentID)
	requireCode(t, err, apperrors.CodeUnauthorized)

	_, err = svc.api(t, "bob", config.RoleUser).UserLocks("alice")
	requireCode(t, err, apperrors.CodeForbidden)
}
