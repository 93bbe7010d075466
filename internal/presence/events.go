package presence

import (
	"encoding/json"
	"time"

	"skedit/pkg/model"
)

// Inbound frame names.
const (
	EventJoinRoom      = "join_room"
	EventLeaveRoom     = "leave_room"
	EventPointerUpdate = "pointer_update"
	EventHeartbeat     = "heartbeat"
)

// Outbound frame names. pointer_update is shared with inbound.
const (
	EventLockEvent       = "lock_event"
	EventLockStatus      = "lock_status"
	EventResourceUpdated = "resource_updated"
	EventError           = "error"
)

// Lock event kinds carried in LockEvent.Type.
const (
	LockAcquired   = "lock_acquired"
	LockReleased   = "lock_released"
	LockExpired    = "lock_expired"
	LockForceTaken = "lock_force_taken"
)

// Frame is the wire shape of every realtime message in both directions.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// LockEvent describes a lock state change. UserID is nil for changes the
// system made on its own, such as expiry.
type LockEvent struct {
	Type       string    `json:"type"`
	ResourceID string    `json:"resource_id"`
	UserID     *string   `json:"user_id"`
	Data       any       `json:"data,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type LockStatus struct {
	ResourceID          string          `json:"resource_id"`
	Lock                *model.LockView `json:"lock"`
	HeartbeatIntervalMs int64           `json:"heartbeat_interval_ms"`
}

type UserInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type PointerUpdate struct {
	ResourceID string   `json:"resource_id"`
	UserID     string   `json:"user_id"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	UserInfo   UserInfo `json:"user_info"`
}

type ResourceUpdated struct {
	ResourceID string `json:"resource_id"`
	UpdatedBy  string `json:"updated_by"`
	Data       any    `json:"data,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type roomRequest struct {
	ResourceID string `json:"resource_id"`
}

type pointerRequest struct {
	ResourceID string  `json:"resource_id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

// NewLockEvent builds a lock_event frame.
func NewLockEvent(kind, resourceID, userID string, data any) Frame {
	ev := LockEvent{
		Type:       kind,
		ResourceID: resourceID,
		Data:       data,
		Timestamp:  time.Now().UTC(),
	}
	if userID != "" {
		ev.UserID = &userID
	}
	return Frame{Event: EventLockEvent, Data: ev}
}

func NewResourceUpdated(resourceID, updatedBy string, data any) Frame {
	return Frame{Event: EventResourceUpdated, Data: ResourceUpdated{
		ResourceID: resourceID,
		UpdatedBy:  updatedBy,
		Data:       data,
	}}
}

// droppable frames may be discarded when a connection's queue is full.
func droppable(event string) bool {
	return event == EventPointerUpdate
}
