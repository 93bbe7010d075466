package model

import "time"

// Position is a pointer coordinate inside the appointment editor.
type Position struct {
	X float64 `json:"x" bson:"x" validate:"gte=-100000,lte=100000"`
	Y float64 `json:"y" bson:"y" validate:"gte=-100000,lte=100000"`
}

// HolderInfo is a snapshot of the holder's identity taken when the lock was
// created. It is intentionally not refreshed from the users collection on read,
// so a rename while a lock is held shows the old name until the next acquisition.
type HolderInfo struct {
	Name     string    `json:"name" bson:"name"`
	Email    string    `json:"email" bson:"email"`
	Position *Position `json:"position,omitempty" bson:"position,omitempty"`
}

// Lock is the stored editing lock for one appointment. ResourceID is the
// document _id, so the store rejects a second row for the same appointment.
type Lock struct {
	ResourceID   string     `json:"resource_id" bson:"_id"`
	HolderID     string     `json:"holder_id" bson:"holder_id"`
	HolderInfo   HolderInfo `json:"holder_info" bson:"holder_info"`
	ExpiresAt    time.Time  `json:"expires_at" bson:"expires_at"`
	CreatedAt    time.Time  `json:"created_at" bson:"created_at"`
	LastActivity time.Time  `json:"last_activity" bson:"last_activity"`
}

// Expired reports whether the lock is invalid at now. A lock is invalid at or
// after its expiry instant.
func (l *Lock) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// View builds the client-facing projection of the lock at now.
func (l *Lock) View(now time.Time) *LockView {
	remaining := l.ExpiresAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return &LockView{
		ResourceID:      l.ResourceID,
		HolderID:        l.HolderID,
		HolderInfo:      l.HolderInfo,
		ExpiresAt:       l.ExpiresAt,
		TimeRemainingMs: remaining.Milliseconds(),
	}
}

type LockView struct {
	ResourceID      string     `json:"resource_id"`
	HolderID        string     `json:"holder_id"`
	HolderInfo      HolderInfo `json:"holder_info"`
	ExpiresAt       time.Time  `json:"expires_at"`
	TimeRemainingMs int64      `json:"time_remaining_ms"`
}

// Takeover is the outcome of a forced acquisition. Previous is nil when the
// resource had no live lock before the takeover.
type Takeover struct {
	Lock     *LockView `json:"lock"`
	Previous *LockView `json:"previous,omitempty"`
}

// TookOverFrom reports whether the takeover displaced a different holder.
func (t *Takeover) TookOverFrom() (string, bool) {
	if t == nil || t.Previous == nil || t.Lock == nil {
		return "", false
	}
	if t.Previous.HolderID == t.Lock.HolderID {
		return "", false
	}
	return t.Previous.HolderID, true
}
