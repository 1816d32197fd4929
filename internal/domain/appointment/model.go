// Package appointment implements appointment booking: conflict-free
// scheduling of patients against doctors and the appointment lifecycle.
package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	// StatusScheduled is the initial state of every appointment.
	StatusScheduled Status = "SCHEDULED"
	// StatusCompleted and StatusCancelled are terminal.
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Appointment is a booking of a doctor for a patient over the half-open
// interval [StartTime, EndTime). Two appointments for the same doctor
// conflict when their intervals overlap, unless one of them is cancelled.
type Appointment struct {
	ID        uuid.UUID `json:"id" db:"id"`
	PatientID uuid.UUID `json:"patient_id" db:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id" db:"doctor_id"`
	StartTime time.Time `json:"start_time" db:"start_time"`
	EndTime   time.Time `json:"end_time" db:"end_time"`
	Status    Status    `json:"status" db:"status"`
	Notes     *string   `json:"notes,omitempty" db:"notes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreateRequest is the payload for booking an appointment. Times are
// RFC 3339; status is not accepted, every new appointment starts SCHEDULED.
type CreateRequest struct {
	PatientID uuid.UUID `json:"patient_id" validate:"required"`
	DoctorID  uuid.UUID `json:"doctor_id" validate:"required"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
	Notes     *string   `json:"notes" validate:"omitempty,max=2000"`
}

// UpdateRequest reschedules an appointment. Only SCHEDULED appointments
// may be updated.
type UpdateRequest struct {
	PatientID uuid.UUID `json:"patient_id" validate:"required"`
	DoctorID  uuid.UUID `json:"doctor_id" validate:"required"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
	Notes     *string   `json:"notes" validate:"omitempty,max=2000"`
}

// Filter narrows appointment listings. Nil fields are ignored. From and
// To bound the appointment start time as [From, To).
type Filter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	From      *time.Time
	To        *time.Time
}
