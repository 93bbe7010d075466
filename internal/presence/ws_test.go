package presence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"skedit/pkg/auth"
	"skedit/pkg/logger"
	"skedit/pkg/model"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "presence-test-secret-0123456789"
	testResource = "0b7e7f4e-4a43-4d8e-9a3f-1f0f5b8a9c01"
)

type mockLockTracker struct {
	mu       sync.Mutex
	lock     *model.LockView
	extended []string
	pointers []model.Position
}

func (m *mockLockTracker) GetLockInfo(ctx context.Context, resourceID string) (*model.LockView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lock, nil
}

func (m *mockLockTracker) ExtendLock(ctx context.Context, resourceID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extended = append(m.extended, resourceID+"/"+userID)
	return true
}

func (m *mockLockTracker) UpdatePointerPosition(ctx context.Context, resourceID, userID string, pos model.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pointers = append(m.pointers, pos)
}

func (m *mockLockTracker) extendedCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.extended...)
}

type wsFixture struct {
	server   *httptest.Server
	hub      *Hub
	tracker  *mockLockTracker
	verifier *auth.Verifier
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	log := logger.Discard()
	verifier := auth.NewVerifier(testSecret)
	hub := NewHub(log, nil)
	tracker := &mockLockTracker{lock: &model.LockView{
		ResourceID: testResource,
		HolderID:   "alice",
		HolderInfo: model.HolderInfo{Name: "Alice", Email: "alice@example.com"},
	}}
	ws := NewWSHandler(hub, nil, tracker, verifier, Options{
		HeartbeatInterval: 30 * time.Second,
		SendBuffer:        16,
	}, log)

	router := httprouter.New()
	NewHandler(hub, nil, ws, verifier, log).RegisterRoutes(router)
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Stop()
		server.Close()
	})
	return &wsFixture{server: server, hub: hub, tracker: tracker, verifier: verifier}
}

func (f *wsFixture) wsURL() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
}

func (f *wsFixture) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	token, err := f.verifier.Issue(auth.Principal{UserID: userID, Name: userID, Email: userID + "@example.com"}, time.Hour)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL()+"?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, c *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, c.WriteJSON(map[string]any{"event": event, "data": data}))
}

type received struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func recv(t *testing.T, c *websocket.Conn) received {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame received
	require.NoError(t, c.ReadJSON(&frame))
	return frame
}

func join(t *testing.T, c *websocket.Conn) LockStatus {
	t.Helper()
	send(t, c, EventJoinRoom, map[string]string{"resource_id": testResource})
	frame := recv(t, c)
	require.Equal(t, EventLockStatus, frame.Event)
	var status LockStatus
	require.NoError(t, json.Unmarshal(frame.Data, &status))
	return status
}

func TestWS_RejectsUnauthenticatedUpgrade(t *testing.T) {
	f := newWSFixture(t)

	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL(), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(f.wsURL()+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, f.hub.Stats().TotalConnections)
}

func TestWS_JoinSendsLockStatus(t *testing.T) {
	f := newWSFixture(t)
	c := f.dial(t, "bob")

	status := join(t, c)
	assert.Equal(t, testResource, status.ResourceID)
	assert.Equal(t, int64(30000), status.HeartbeatIntervalMs)
	require.NotNil(t, status.Lock)
	assert.Equal(t, "alice", status.Lock.HolderID)
	assert.Equal(t, []string{"bob"}, f.hub.RoomUsers(testResource))
}

func TestWS_HeartbeatExtendsLock(t *testing.T) {
	f := newWSFixture(t)
	c := f.dial(t, "alice")

	send(t, c, EventHeartbeat, map[string]string{"resource_id": testResource})

	assert.Eventually(t, func() bool {
		calls := f.tracker.extendedCalls()
		return len(calls) == 1 && calls[0] == testResource+"/alice"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWS_UppercaseResourceIDJoinsCanonicalRoom(t *testing.T) {
	f := newWSFixture(t)
	c := f.dial(t, "bob")

	send(t, c, EventJoinRoom, map[string]string{"resource_id": strings.ToUpper(testResource)})
	frame := recv(t, c)
	require.Equal(t, EventLockStatus, frame.Event)
	var status LockStatus
	require.NoError(t, json.Unmarshal(frame.Data, &status))
	assert.Equal(t, testResource, status.ResourceID)
	assert.Equal(t, []string{"bob"}, f.hub.RoomUsers(testResource))

	send(t, c, EventHeartbeat, map[string]string{"resource_id": strings.ToUpper(testResource)})
	assert.Eventually(t, func() bool {
		calls := f.tracker.extendedCalls()
		return len(calls) == 1 && calls[0] == testResource+"/bob"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWS_PointerUpdateExcludesSender(t *testing.T) {
	f := newWSFixture(t)
	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")
	join(t, alice)
	join(t, bob)

	send(t, alice, EventPointerUpdate, map[string]any{"resource_id": testResource, "x": 10.5, "y": 20})

	frame := recv(t, bob)
	require.Equal(t, EventPointerUpdate, frame.Event)
	var update PointerUpdate
	require.NoError(t, json.Unmarshal(frame.Data, &update))
	assert.Equal(t, "alice", update.UserID)
	assert.Equal(t, 10.5, update.X)
	assert.Equal(t, "alice", update.UserInfo.Name)

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := alice.ReadMessage()
	assert.Error(t, err)
}

func TestWS_PointerRequiresJoin(t *testing.T) {
	f := newWSFixture(t)
	c := f.dial(t, "alice")

	send(t, c, EventPointerUpdate, map[string]any{"resource_id": testResource, "x": 1, "y": 1})

	frame := recv(t, c)
	assert.Equal(t, EventError, frame.Event)
}

func TestWS_UnknownEventGetsError(t *testing.T) {
	f := newWSFixture(t)
	c := f.dial(t, "alice")

	send(t, c, "dance", nil)

	frame := recv(t, c)
	require.Equal(t, EventError, frame.Event)
	assert.Contains(t, string(frame.Data), "Unknown event")
}

func TestWS_DisconnectOnAdminRequest(t *testing.T) {
	f := newWSFixture(t)
	c := f.dial(t, "alice")
	join(t, c)

	token, err := f.verifier.Issue(auth.Principal{UserID: "root", Role: auth.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodDelete, f.server.URL+"/api/v1/presence/users/alice", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = c.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool {
		return !f.hub.IsUserConnected("alice")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWS_StatsRequiresAdmin(t *testing.T) {
	f := newWSFixture(t)
	token, err := f.verifier.Issue(auth.Principal{UserID: "bob"}, time.Hour)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/api/v1/presence/stats", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
