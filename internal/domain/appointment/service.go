package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careops/clinic-api/internal/platform/db"
	"github.com/careops/clinic-api/pkg/problem"
)

// Service implements booking rules: interval validity, reference checks,
// double-booking rejection, and the status state machine.
type Service struct {
	repo     Repository
	patients PatientDirectory
	doctors  DoctorDirectory
	tx       db.TxRunner
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewService(repo Repository, patients PatientDirectory, doctors DoctorDirectory, tx db.TxRunner, validate *validator.Validate, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		doctors:  doctors,
		tx:       tx,
		validate: validate,
		logger:   logger.With().Str("component", "appointment-service").Logger(),
	}
}

// Create books a new appointment. The overlap check and the insert run in
// one transaction so two concurrent bookings cannot both slip past the
// check; the database exclusion constraint backstops the race regardless.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Appointment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, problem.FromValidationError(err)
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, problem.Validation("end_time must be after start_time")
	}

	a := &Appointment{
		ID:        uuid.New(),
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		StartTime: req.StartTime.UTC(),
		EndTime:   req.EndTime.UTC(),
		Status:    StatusScheduled,
		Notes:     req.Notes,
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.checkReferences(ctx, a.PatientID, a.DoctorID); err != nil {
			return err
		}
		if err := s.checkNoOverlap(ctx, a.DoctorID, a.StartTime, a.EndTime, nil); err != nil {
			return err
		}
		return s.repo.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("doctor_id", a.DoctorID.String()).
		Time("start", a.StartTime).
		Msg("appointment booked")
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// Update reschedules an appointment. Only SCHEDULED appointments may be
// updated; completed and cancelled ones are immutable.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdateRequest) (*Appointment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, problem.FromValidationError(err)
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, problem.Validation("end_time must be after start_time")
	}

	var a *Appointment
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if a.Status != StatusScheduled {
			return problem.InvalidState(fmt.Sprintf("a %s appointment cannot be updated", a.Status))
		}
		if err := s.checkReferences(ctx, req.PatientID, req.DoctorID); err != nil {
			return err
		}
		if err := s.checkNoOverlap(ctx, req.DoctorID, req.StartTime.UTC(), req.EndTime.UTC(), &id); err != nil {
			return err
		}

		a.PatientID = req.PatientID
		a.DoctorID = req.DoctorID
		a.StartTime = req.StartTime.UTC()
		a.EndTime = req.EndTime.UTC()
		a.Notes = req.Notes
		return s.repo.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Cancel moves a SCHEDULED appointment to CANCELLED, freeing its slot.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCancelled)
}

// Complete moves a SCHEDULED appointment to COMPLETED. The slot stays
// occupied: a completed visit still happened.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted)
}

// transition applies a terminal status. The guard and the write share one
// transaction; two racing transitions must not both observe SCHEDULED.
func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	var a *Appointment
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if a.Status != StatusScheduled {
			return problem.InvalidState(fmt.Sprintf("cannot move a %s appointment to %s", a.Status, to))
		}
		a.Status = to
		return s.repo.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("status", string(to)).
		Msg("appointment status changed")
	return a, nil
}

// Delete removes the appointment record entirely.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) checkReferences(ctx context.Context, patientID, doctorID uuid.UUID) error {
	ok, err := s.patients.ExistsActive(ctx, patientID)
	if err != nil {
		return err
	}
	if !ok {
		return problem.NotFound("patient")
	}
	ok, err = s.doctors.ExistsActive(ctx, doctorID)
	if err != nil {
		return err
	}
	if !ok {
		return problem.NotFound("doctor")
	}
	return nil
}

func (s *Service) checkNoOverlap(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) error {
	overlapping, err := s.repo.FindOverlapping(ctx, doctorID, start, end, excludeID)
	if err != nil {
		return err
	}
	if len(overlapping) > 0 {
		return problem.Conflict("the doctor is already booked for this time")
	}
	return nil
}
