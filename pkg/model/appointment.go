package model

import "time"

type Appointment struct {
	ID          string    `json:"id" bson:"_id"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	StartTime   time.Time `json:"start_time" bson:"start_time"`
	EndTime     time.Time `json:"end_time" bson:"end_time"`
	Status      string    `json:"status" bson:"status"`
	PatientID   string    `json:"patient_id" bson:"patient_id"`
	DoctorID    string    `json:"doctor_id" bson:"doctor_id"`
	Version     int       `json:"version" bson:"version"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// AppointmentUpdate is a partial update guarded by the editing lock. Version
// must match the stored version.
type AppointmentUpdate struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,min=2,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Status      string     `json:"status,omitempty" validate:"omitempty,oneof=scheduled completed cancelled"`
	Version     int        `json:"version" validate:"required,min=1"`
}

// AppointmentDetails is an appointment together with its current editing lock.
type AppointmentDetails struct {
	Appointment *Appointment `json:"appointment"`
	Lock        *LockView    `json:"lock"`
}
