package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for appointments. Unlike
// patients and doctors, appointments are hard-deleted.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error)
	// FindOverlapping returns non-cancelled appointments for the doctor
	// whose [start, end) interval overlaps the given one. excludeID, when
	// non-nil, leaves that appointment out of the check so an appointment
	// never conflicts with itself during reschedule.
	FindOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*Appointment, error)
}

// PatientDirectory and DoctorDirectory are the slices of the patient and
// doctor repositories the booking logic needs. Declaring them here keeps
// the packages decoupled; the concrete repositories satisfy them as-is.
type PatientDirectory interface {
	ExistsActive(ctx context.Context, id uuid.UUID) (bool, error)
}

type DoctorDirectory interface {
	ExistsActive(ctx context.Context, id uuid.UUID) (bool, error)
}
