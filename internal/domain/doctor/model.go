// Package doctor manages practitioner records.
package doctor

import (
	"time"

	"github.com/google/uuid"
)

// Doctor is a practitioner who can be booked for appointments. Like
// patients, doctors are soft-deleted.
type Doctor struct {
	ID             uuid.UUID `json:"id" db:"id"`
	FirstName      string    `json:"first_name" db:"first_name"`
	LastName       string    `json:"last_name" db:"last_name"`
	Email          string    `json:"email" db:"email"`
	Phone          *string   `json:"phone,omitempty" db:"phone"`
	Specialization string    `json:"specialization" db:"specialization"`
	Deleted        bool      `json:"-" db:"deleted"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// CreateRequest is the payload for registering a new doctor.
type CreateRequest struct {
	FirstName      string  `json:"first_name" validate:"required,max=100"`
	LastName       string  `json:"last_name" validate:"required,max=100"`
	Email          string  `json:"email" validate:"required,email,max=254"`
	Phone          *string `json:"phone" validate:"omitempty,max=32"`
	Specialization string  `json:"specialization" validate:"required,max=100"`
}

// UpdateRequest replaces every mutable field of a doctor.
type UpdateRequest struct {
	FirstName      string  `json:"first_name" validate:"required,max=100"`
	LastName       string  `json:"last_name" validate:"required,max=100"`
	Email          string  `json:"email" validate:"required,email,max=254"`
	Phone          *string `json:"phone" validate:"omitempty,max=32"`
	Specialization string  `json:"specialization" validate:"required,max=100"`
}
