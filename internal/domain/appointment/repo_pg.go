package appointment

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

// PgRepo is the Postgres-backed appointment repository.
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

const apptColumns = `id, patient_id, doctor_id, start_time, end_time, status, notes, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.StartTime, &a.EndTime,
		&a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PgRepo) Create(ctx context.Context, a *Appointment) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := r.q(ctx).Exec(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, start_time, end_time, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.PatientID, a.DoctorID, a.StartTime, a.EndTime, a.Status, a.Notes, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return translateErr(err)
	}
	return nil
}

func (r *PgRepo) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.q(ctx).QueryRow(ctx, `
		SELECT `+apptColumns+` FROM appointments WHERE id = $1`, id)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, problem.NotFound("appointment")
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (r *PgRepo) Update(ctx context.Context, a *Appointment) error {
	a.UpdatedAt = time.Now().UTC()

	tag, err := r.q(ctx).Exec(ctx, `
		UPDATE appointments
		SET patient_id = $2, doctor_id = $3, start_time = $4, end_time = $5,
		    status = $6, notes = $7, updated_at = $8
		WHERE id = $1`,
		a.ID, a.PatientID, a.DoctorID, a.StartTime, a.EndTime, a.Status, a.Notes, a.UpdatedAt)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return problem.NotFound("appointment")
	}
	return nil
}

func (r *PgRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return problem.NotFound("appointment")
	}
	return nil
}

func (r *PgRepo) List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	where := []string{"true"}
	args := []interface{}{}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		where = append(where, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if f.DoctorID != nil {
		args = append(args, *f.DoctorID)
		where = append(where, fmt.Sprintf("doctor_id = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where = append(where, fmt.Sprintf("start_time >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where = append(where, fmt.Sprintf("start_time < $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.q(ctx).QueryRow(ctx, `SELECT count(*) FROM appointments WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := r.q(ctx).Query(ctx, fmt.Sprintf(`
		SELECT %s FROM appointments WHERE %s
		ORDER BY start_time, id
		LIMIT $%d OFFSET $%d`, apptColumns, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	appts := make([]*Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan appointment: %w", err)
		}
		appts = append(appts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	return appts, total, nil
}

func (r *PgRepo) FindOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*Appointment, error) {
	// Half-open interval overlap: A and B overlap iff A.start < B.end
	// and A.end > B.start. Back-to-back slots do not overlap.
	rows, err := r.q(ctx).Query(ctx, `
		SELECT `+apptColumns+` FROM appointments
		WHERE doctor_id = $1
		  AND status <> $2
		  AND start_time < $4
		  AND end_time > $3
		  AND ($5::uuid IS NULL OR id <> $5)
		ORDER BY start_time`,
		doctorID, StatusCancelled, start, end, excludeID)
	if err != nil {
		return nil, fmt.Errorf("find overlapping appointments: %w", err)
	}
	defer rows.Close()

	appts := make([]*Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appts = append(appts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find overlapping appointments: %w", err)
	}
	return appts, nil
}

// translateErr maps constraint violations onto the API error taxonomy.
// 23P01 is the exclusion constraint that backstops the overlap check
// under concurrency; 23503 fires when a referenced row disappears
// between the existence check and the insert.
func translateErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("appointment store: %w", err)
	}
	switch pgErr.Code {
	case "23P01", "23505":
		return problem.Conflict("the doctor is already booked for this time")
	case "23503":
		if strings.Contains(pgErr.ConstraintName, "patient") {
			return problem.NotFound("patient")
		}
		return problem.NotFound("doctor")
	}
	return fmt.Errorf("appointment store: %w", err)
}
