package doctor

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence contract for doctors. Reads never return
// soft-deleted rows.
type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	// List returns a page of doctors matching q (name, email, or
	// specialization, case-insensitive substring) plus the total count.
	List(ctx context.Context, q string, limit, offset int) ([]*Doctor, int, error)
	ExistsByEmail(ctx context.Context, email string, excludeID uuid.UUID, includeDeleted bool) (bool, error)
	ExistsActive(ctx context.Context, id uuid.UUID) (bool, error)
}
