package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence contract for patients. Reads never
// return soft-deleted rows.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	// List returns a page of patients matching q (name or email,
	// case-insensitive substring) along with the total match count.
	List(ctx context.Context, q string, limit, offset int) ([]*Patient, int, error)
	// ExistsByEmail reports whether a patient other than excludeID holds
	// the email. Pass uuid.Nil to exclude nobody. When includeDeleted is
	// true, soft-deleted rows count as well.
	ExistsByEmail(ctx context.Context, email string, excludeID uuid.UUID, includeDeleted bool) (bool, error)
	// ExistsActive reports whether a non-deleted patient with the id exists.
	ExistsActive(ctx context.Context, id uuid.UUID) (bool, error)
}
