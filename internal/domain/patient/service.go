package patient

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careops/clinic-api/pkg/problem"
)

// Service implements patient business rules on top of a Repository.
type Service struct {
	repo     Repository
	validate *validator.Validate
	// emailReuse controls whether the email of a soft-deleted patient may
	// be registered again.
	emailReuse bool
	logger     zerolog.Logger
}

func NewService(repo Repository, validate *validator.Validate, emailReuse bool, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		validate:   validate,
		emailReuse: emailReuse,
		logger:     logger.With().Str("component", "patient-service").Logger(),
	}
}

func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Patient, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, problem.FromValidationError(err)
	}
	dob, err := parseDate(req.DateOfBirth)
	if err != nil {
		return nil, problem.Validation("date_of_birth must be formatted as YYYY-MM-DD")
	}
	if err := s.checkEmailFree(ctx, req.Email, uuid.Nil); err != nil {
		return nil, err
	}

	p := &Patient{
		ID:          uuid.New(),
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Phone:       req.Phone,
		DateOfBirth: dob,
		Gender:      req.Gender,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().Str("patient_id", p.ID.String()).Msg("patient created")
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, q string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, q, limit, offset)
}

// Update replaces every mutable field of the patient.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdateRequest) (*Patient, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, problem.FromValidationError(err)
	}
	dob, err := parseDate(req.DateOfBirth)
	if err != nil {
		return nil, problem.Validation("date_of_birth must be formatted as YYYY-MM-DD")
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkEmailFree(ctx, req.Email, id); err != nil {
		return nil, err
	}

	p.FirstName = req.FirstName
	p.LastName = req.LastName
	p.Email = req.Email
	p.Phone = req.Phone
	p.DateOfBirth = dob
	p.Gender = req.Gender
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Patch applies the non-nil fields of req to the patient.
func (s *Service) Patch(ctx context.Context, id uuid.UUID, req *PatchRequest) (*Patient, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, problem.FromValidationError(err)
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.FirstName != nil {
		p.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		p.LastName = *req.LastName
	}
	if req.Email != nil && *req.Email != p.Email {
		if err := s.checkEmailFree(ctx, *req.Email, id); err != nil {
			return nil, err
		}
		p.Email = *req.Email
	}
	if req.Phone != nil {
		p.Phone = req.Phone
	}
	if req.DateOfBirth != nil {
		dob, err := parseDate(req.DateOfBirth)
		if err != nil {
			return nil, problem.Validation("date_of_birth must be formatted as YYYY-MM-DD")
		}
		p.DateOfBirth = dob
	}
	if req.Gender != nil {
		p.Gender = req.Gender
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete soft-deletes the patient. Existing appointments keep their
// patient reference; only new lookups stop resolving.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("patient_id", id.String()).Msg("patient deleted")
	return nil
}

func (s *Service) checkEmailFree(ctx context.Context, email string, excludeID uuid.UUID) error {
	taken, err := s.repo.ExistsByEmail(ctx, email, excludeID, !s.emailReuse)
	if err != nil {
		return err
	}
	if taken {
		return problem.Conflict("email is already in use")
	}
	return nil
}
