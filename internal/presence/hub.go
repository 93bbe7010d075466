package presence

import (
	"encoding/json"
	"sort"
	"sync"

	"skedit/pkg/logger"
	"skedit/pkg/metrics"
)

// Pusher is the set of fire-and-forget push primitives. The Hub delivers
// locally; a backplane publishes to every instance.
type Pusher interface {
	BroadcastToRoom(room string, frame Frame, exceptConnID string)
	BroadcastToUser(userID string, frame Frame)
	DisconnectUser(userID string) int
}

type Stats struct {
	ConnectedUsers   int            `json:"connected_users"`
	TotalConnections int            `json:"total_connections"`
	ActiveRooms      int            `json:"active_rooms"`
	RoomOccupancy    int            `json:"room_occupancy"`
	RoomParticipants map[string]int `json:"room_participants"`
}

// Hub owns the presence indexes for this process: user to connections and
// room to occupants. A user stays in a room while at least one of their
// connections has joined it. Empty entries are removed eagerly.
type Hub struct {
	mu    sync.RWMutex
	users map[string]map[string]*Conn
	rooms map[string]map[string]int

	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewHub(log *logger.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		users:   make(map[string]map[string]*Conn),
		rooms:   make(map[string]map[string]int),
		log:     log.Component("presence_hub"),
		metrics: m,
	}
}

func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	conns, ok := h.users[c.UserID()]
	if !ok {
		conns = make(map[string]*Conn)
		h.users[c.UserID()] = conns
	}
	conns[c.id] = c
	h.mu.Unlock()

	h.log.Info("Client connected", "user_id", c.UserID(), "conn_id", c.id)
	h.reportPresence()
}

// Unregister removes c from every room it joined and from its user's
// connection set. Safe to call more than once.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	if conns, ok := h.users[c.UserID()]; ok {
		delete(conns, c.id)
		if len(conns) == 0 {
			delete(h.users, c.UserID())
		}
	}
	h.mu.Unlock()

	c.Close()
	h.log.Info("Client disconnected", "user_id", c.UserID(), "conn_id", c.id)
	h.reportPresence()
}

// Join adds c to room. It reports false when c was already in it.
func (h *Hub) Join(c *Conn, room string) bool {
	h.mu.Lock()
	if _, ok := c.rooms[room]; ok {
		h.mu.Unlock()
		return false
	}
	c.rooms[room] = struct{}{}
	occupants, ok := h.rooms[room]
	if !ok {
		occupants = make(map[string]int)
		h.rooms[room] = occupants
	}
	occupants[c.UserID()]++
	h.mu.Unlock()

	h.log.Debug("Joined room", "room", room, "user_id", c.UserID(), "conn_id", c.id)
	h.reportPresence()
	return true
}

func (h *Hub) Leave(c *Conn, room string) bool {
	h.mu.Lock()
	left := h.leaveLocked(c, room)
	h.mu.Unlock()

	if left {
		h.log.Debug("Left room", "room", room, "user_id", c.UserID(), "conn_id", c.id)
		h.reportPresence()
	}
	return left
}

func (h *Hub) leaveLocked(c *Conn, room string) bool {
	if _, ok := c.rooms[room]; !ok {
		return false
	}
	delete(c.rooms, room)

	occupants := h.rooms[room]
	if occupants == nil {
		return true
	}
	occupants[c.UserID()]--
	if occupants[c.UserID()] <= 0 {
		delete(occupants, c.UserID())
	}
	if len(occupants) == 0 {
		delete(h.rooms, room)
	}
	return true
}

// InRoom reports whether c has joined room.
func (h *Hub) InRoom(c *Conn, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

func encodeFrame(frame Frame) ([]byte, error) {
	return json.Marshal(frame)
}

func (h *Hub) BroadcastToRoom(room string, frame Frame, exceptConnID string) {
	payload, err := encodeFrame(frame)
	if err != nil {
		h.log.Error("Failed to encode frame", "event", frame.Event, "error", err)
		return
	}
	h.DeliverToRoom(room, frame.Event, payload, exceptConnID)
}

// DeliverToRoom pushes an encoded frame to every local connection in room.
func (h *Hub) DeliverToRoom(room, event string, payload []byte, exceptConnID string) {
	h.mu.RLock()
	occupants := h.rooms[room]
	targets := make([]*Conn, 0, len(occupants))
	for userID := range occupants {
		for _, c := range h.users[userID] {
			if c.id == exceptConnID {
				continue
			}
			if _, joined := c.rooms[room]; joined {
				targets = append(targets, c)
			}
		}
	}
	h.mu.RUnlock()

	h.deliver(targets, event, payload)
}

// Send pushes a frame to a single connection.
func (h *Hub) Send(c *Conn, frame Frame) {
	payload, err := encodeFrame(frame)
	if err != nil {
		h.log.Error("Failed to encode frame", "event", frame.Event, "error", err)
		return
	}
	h.deliver([]*Conn{c}, frame.Event, payload)
}

func (h *Hub) BroadcastToUser(userID string, frame Frame) {
	payload, err := encodeFrame(frame)
	if err != nil {
		h.log.Error("Failed to encode frame", "event", frame.Event, "error", err)
		return
	}
	h.DeliverToUser(userID, frame.Event, payload)
}

// DeliverToUser pushes an encoded frame to every local connection of userID
// and reports whether any existed.
func (h *Hub) DeliverToUser(userID, event string, payload []byte) bool {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.users[userID]))
	for _, c := range h.users[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	h.deliver(targets, event, payload)
	return len(targets) > 0
}

func (h *Hub) deliver(targets []*Conn, event string, payload []byte) {
	for _, c := range targets {
		switch c.enqueue(event, payload) {
		case enqueued:
			h.metrics.EventSent(event)
		case droppedFull:
			h.metrics.EventDropped("queue_full")
		case droppedClosed:
			h.metrics.EventDropped("closed")
		case overflowClosed:
			h.metrics.EventDropped("overflow")
			h.log.Warn("Closing slow connection", "user_id", c.UserID(), "conn_id", c.id, "event", event)
		}
	}
}

// DisconnectUser closes every local connection of userID and returns how
// many there were. The transport loops unregister them as they exit.
func (h *Hub) DisconnectUser(userID string) int {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.users[userID]))
	for _, c := range h.users[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.Close()
	}
	if len(targets) > 0 {
		h.log.Info("User disconnected by admin", "user_id", userID, "connections", len(targets))
	}
	return len(targets)
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Stats{
		ConnectedUsers:   len(h.users),
		ActiveRooms:      len(h.rooms),
		RoomParticipants: make(map[string]int, len(h.rooms)),
	}
	for _, conns := range h.users {
		s.TotalConnections += len(conns)
	}
	for room, occupants := range h.rooms {
		s.RoomParticipants[room] = len(occupants)
		s.RoomOccupancy += len(occupants)
	}
	return s
}

func (h *Hub) ConnectedUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := make([]string, 0, len(h.users))
	for id := range h.users {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

func (h *Hub) RoomUsers(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := make([]string, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

func (h *Hub) UserConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

func (h *Hub) IsUserConnected(userID string) bool {
	return h.UserConnectionCount(userID) > 0
}

// Stop closes every connection. Used on shutdown.
func (h *Hub) Stop() {
	h.mu.RLock()
	all := make([]*Conn, 0)
	for _, conns := range h.users {
		for _, c := range conns {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		c.Close()
	}
}

func (h *Hub) reportPresence() {
	if h.metrics == nil {
		return
	}
	h.mu.RLock()
	conns := 0
	for _, cs := range h.users {
		conns += len(cs)
	}
	rooms := len(h.rooms)
	h.mu.RUnlock()
	h.metrics.SetPresence(conns, rooms)
}
