package doctor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careops/clinic-api/internal/platform/db"
	"github.com/careops/clinic-api/pkg/problem"
)

// PgRepo is the Postgres-backed doctor repository.
type PgRepo struct {
	pool *pgxpool.Pool
}

func NewPgRepo(pool *pgxpool.Pool) *PgRepo {
	return &PgRepo{pool: pool}
}

func (r *PgRepo) q(ctx context.Context) db.Querier {
	if tx := db.QuerierFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const doctorColumns = `id, first_name, last_name, email, phone, specialization, deleted, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.FirstName, &d.LastName, &d.Email, &d.Phone,
		&d.Specialization, &d.Deleted, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *PgRepo) Create(ctx context.Context, d *Doctor) error {
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err := r.q(ctx).Exec(ctx, `
		INSERT INTO doctors (id, first_name, last_name, email, phone, specialization, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7, $8)`,
		d.ID, d.FirstName, d.LastName, d.Email, d.Phone, d.Specialization, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return translateErr(err)
	}
	return nil
}

func (r *PgRepo) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.q(ctx).QueryRow(ctx, `
		SELECT `+doctorColumns+` FROM doctors WHERE id = $1 AND NOT deleted`, id)
	d, err := scanDoctor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, problem.NotFound("doctor")
		}
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return d, nil
}

func (r *PgRepo) Update(ctx context.Context, d *Doctor) error {
	d.UpdatedAt = time.Now().UTC()

	tag, err := r.q(ctx).Exec(ctx, `
		UPDATE doctors
		SET first_name = $2, last_name = $3, email = $4, phone = $5,
		    specialization = $6, updated_at = $7
		WHERE id = $1 AND NOT deleted`,
		d.ID, d.FirstName, d.LastName, d.Email, d.Phone, d.Specialization, d.UpdatedAt)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return problem.NotFound("doctor")
	}
	return nil
}

func (r *PgRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q(ctx).Exec(ctx, `
		UPDATE doctors SET deleted = true, updated_at = $2
		WHERE id = $1 AND NOT deleted`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return problem.NotFound("doctor")
	}
	return nil
}

func (r *PgRepo) List(ctx context.Context, q string, limit, offset int) ([]*Doctor, int, error) {
	where := `NOT deleted`
	args := []interface{}{}
	if q != "" {
		where += ` AND (first_name ILIKE $1 OR last_name ILIKE $1 OR email ILIKE $1 OR specialization ILIKE $1)`
		args = append(args, "%"+escapeLike(q)+"%")
	}

	var total int
	if err := r.q(ctx).QueryRow(ctx, `SELECT count(*) FROM doctors WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := r.q(ctx).Query(ctx, fmt.Sprintf(`
		SELECT %s FROM doctors WHERE %s
		ORDER BY last_name, first_name, id
		LIMIT $%d OFFSET $%d`, doctorColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	doctors := make([]*Doctor, 0)
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan doctor: %w", err)
		}
		doctors = append(doctors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, total, nil
}

func (r *PgRepo) ExistsByEmail(ctx context.Context, email string, excludeID uuid.UUID, includeDeleted bool) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM doctors WHERE lower(email) = lower($1) AND id <> $2`
	if !includeDeleted {
		query += ` AND NOT deleted`
	}
	query += `)`

	var exists bool
	if err := r.q(ctx).QueryRow(ctx, query, email, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check doctor email: %w", err)
	}
	return exists, nil
}

func (r *PgRepo) ExistsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.q(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM doctors WHERE id = $1 AND NOT deleted)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check doctor: %w", err)
	}
	return exists, nil
}

// likeEscaper neutralizes LIKE metacharacters so a search term is always a
// literal substring match.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func translateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return problem.Conflict("email is already in use")
	}
	return fmt.Errorf("doctor store: %w", err)
}
