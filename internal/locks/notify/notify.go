package notify

import (
	"skedit/internal/presence"
	"skedit/pkg/logger"
	"skedit/pkg/model"
)

// Notifier announces lock state changes after they are committed. Delivery
// is best effort; polling the lock status stays authoritative.
type Notifier interface {
	LockAcquired(view *model.LockView)
	LockReleased(resourceID, userID string)
	LockExpired(lock *model.Lock)
	LockForceTaken(takeover *model.Takeover, adminID string)
	ResourceUpdated(resourceID, userID string, data any)
}

type pushNotifier struct {
	pusher presence.Pusher
	log    *logger.Logger
}

func NewPushNotifier(pusher presence.Pusher, log *logger.Logger) Notifier {
	return &pushNotifier{
		pusher: pusher,
		log:    log.Component("lock_notifier"),
	}
}

func (n *pushNotifier) LockAcquired(view *model.LockView) {
	if view == nil {
		return
	}
	n.pusher.BroadcastToRoom(view.ResourceID, presence.NewLockEvent(presence.LockAcquired, view.ResourceID, view.HolderID, view), "")
}

func (n *pushNotifier) LockReleased(resourceID, userID string) {
	n.pusher.BroadcastToRoom(resourceID, presence.NewLockEvent(presence.LockReleased, resourceID, userID, nil), "")
}

func (n *pushNotifier) LockExpired(lock *model.Lock) {
	if lock == nil {
		return
	}
	n.pusher.BroadcastToRoom(lock.ResourceID, presence.NewLockEvent(presence.LockExpired, lock.ResourceID, "", map[string]string{
		"previous_holder_id": lock.HolderID,
	}), "")
}

type forceTakenData struct {
	Lock           *model.LockView `json:"lock"`
	PreviousHolder *model.LockView `json:"previous_holder"`
}

// LockForceTaken announces a takeover to the room and directly to the
// displaced holder, who may not be watching the room. Without a live
// previous lock it is a plain acquisition.
func (n *pushNotifier) LockForceTaken(takeover *model.Takeover, adminID string) {
	if takeover == nil || takeover.Lock == nil {
		return
	}
	previous, ok := takeover.TookOverFrom()
	if !ok {
		n.LockAcquired(takeover.Lock)
		return
	}

	resourceID := takeover.Lock.ResourceID
	frame := presence.NewLockEvent(presence.LockForceTaken, resourceID, adminID, forceTakenData{
		Lock:           takeover.Lock,
		PreviousHolder: takeover.Previous,
	})
	n.pusher.BroadcastToRoom(resourceID, frame, "")
	n.pusher.BroadcastToUser(previous, frame)
	n.log.Info("Lock force taken", "resource_id", resourceID, "admin_id", adminID, "previous_holder_id", previous)
}

func (n *pushNotifier) ResourceUpdated(resourceID, userID string, data any) {
	n.pusher.BroadcastToRoom(resourceID, presence.NewResourceUpdated(resourceID, userID, data), "")
}

type noop struct{}

// Noop is used when push is disabled; clients poll instead.
func Noop() Notifier {
	return noop{}
}

func (noop) LockAcquired(*model.LockView)           {}
func (noop) LockReleased(string, string)            {}
func (noop) LockExpired(*model.Lock)                {}
func (noop) LockForceTaken(*model.Takeover, string) {}
func (noop) ResourceUpdated(string, string, any)    {}
