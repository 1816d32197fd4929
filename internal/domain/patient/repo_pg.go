package patient

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

// PgRepo is the Postgres-backed patient repository.
type PgRepo struct {
	pool *pgxpool.Pool
}

func NewPgRepo(pool *pgxpool.Pool) *PgRepo {
	return &PgRepo{pool: pool}
}

// q returns the ambient transaction when one is bound to ctx, the pool
// otherwise.
func (r *PgRepo) q(ctx context.Context) db.Querier {
	if tx := db.QuerierFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientColumns = `id, first_name, last_name, email, phone, date_of_birth, gender, deleted, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone,
		&p.DateOfBirth, &p.Gender, &p.Deleted, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PgRepo) Create(ctx context.Context, p *Patient) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.q(ctx).Exec(ctx, `
		INSERT INTO patients (id, first_name, last_name, email, phone, date_of_birth, gender, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8, $9)`,
		p.ID, p.FirstName, p.LastName, p.Email, p.Phone, p.DateOfBirth, p.Gender, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return translateErr(err)
	}
	return nil
}

func (r *PgRepo) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.q(ctx).QueryRow(ctx, `
		SELECT `+patientColumns+` FROM patients WHERE id = $1 AND NOT deleted`, id)
	p, err := scanPatient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, problem.NotFound("patient")
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

func (r *PgRepo) Update(ctx context.Context, p *Patient) error {
	p.UpdatedAt = time.Now().UTC()

	tag, err := r.q(ctx).Exec(ctx, `
		UPDATE patients
		SET first_name = $2, last_name = $3, email = $4, phone = $5,
		    date_of_birth = $6, gender = $7, updated_at = $8
		WHERE id = $1 AND NOT deleted`,
		p.ID, p.FirstName, p.LastName, p.Email, p.Phone, p.DateOfBirth, p.Gender, p.UpdatedAt)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return problem.NotFound("patient")
	}
	return nil
}

func (r *PgRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q(ctx).Exec(ctx, `
		UPDATE patients SET deleted = true, updated_at = $2
		WHERE id = $1 AND NOT deleted`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return problem.NotFound("patient")
	}
	return nil
}

func (r *PgRepo) List(ctx context.Context, q string, limit, offset int) ([]*Patient, int, error) {
	where := `NOT deleted`
	args := []interface{}{}
	if q != "" {
		where += ` AND (first_name ILIKE $1 OR last_name ILIKE $1 OR email ILIKE $1)`
		args = append(args, "%"+escapeLike(q)+"%")
	}

	var total int
	if err := r.q(ctx).QueryRow(ctx, `SELECT count(*) FROM patients WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := r.q(ctx).Query(ctx, fmt.Sprintf(`
		SELECT %s FROM patients WHERE %s
		ORDER BY last_name, first_name, id
		LIMIT $%d OFFSET $%d`, patientColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	patients := make([]*Patient, 0)
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan patient: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	return patients, total, nil
}

func (r *PgRepo) ExistsByEmail(ctx context.Context, email string, excludeID uuid.UUID, includeDeleted bool) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM patients WHERE lower(email) = lower($1) AND id <> $2`
	if !includeDeleted {
		query += ` AND NOT deleted`
	}
	query += `)`

	var exists bool
	if err := r.q(ctx).QueryRow(ctx, query, email, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check patient email: %w", err)
	}
	return exists, nil
}

func (r *PgRepo) ExistsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.q(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1 AND NOT deleted)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check patient: %w", err)
	}
	return exists, nil
}

// likeEscaper neutralizes LIKE metacharacters so a search term is always a
// literal substring match.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// translateErr maps constraint violations onto the API error taxonomy so
// callers never see raw SQLSTATE text.
func translateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return problem.Conflict("email is already in use")
	}
	return fmt.Errorf("patient store: %w", err)
}
