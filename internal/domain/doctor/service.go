package doctor

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careops/clinic-api/pkg/problem"
)

// Service implements doctor business rules on top of a Repository.
type Service struct {
	repo       Repository
	validate   *validator.Validate
	emailReuse bool
	logger     zerolog.Logger
}

func NewService(repo Repository, validate *validator.Validate, emailReuse bool, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		validate:   validate,
		emailReuse: emailReuse,
		logger:     logger.With().Str("component", "doctor-service").Logger(),
	}
}

func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Doctor, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, problem.FromValidationError(err)
	}
	if err := s.checkEmailFree(ctx, req.Email, uuid.Nil); err != nil {
		return nil, err
	}

	d := &Doctor{
		ID:             uuid.New(),
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Phone:          req.Phone,
		Specialization: req.Specialization,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info().Str("doctor_id", d.ID.String()).Msg("doctor created")
	return d, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, q string, limit, offset int) ([]*Doctor, int, error) {
	return s.repo.List(ctx, q, limit, offset)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdateRequest) (*Doctor, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, problem.FromValidationError(err)
	}

	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkEmailFree(ctx, req.Email, id); err != nil {
		return nil, err
	}

	d.FirstName = req.FirstName
	d.LastName = req.LastName
	d.Email = req.Email
	d.Phone = req.Phone
	d.Specialization = req.Specialization
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("doctor_id", id.String()).Msg("doctor deleted")
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
