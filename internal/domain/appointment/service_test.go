package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careops/clinic-api/pkg/problem"
)

type mockRepo struct {
	appts map[uuid.UUID]*Appointment
}

func newMockRepo() *mockRepo {
	return &mockRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, problem.NotFound("appointment")
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := m.appts[a.ID]; !ok {
		return problem.NotFound("appointment")
	}
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.appts[id]; !ok {
		return problem.NotFound("appointment")
	}
	delete(m.appts, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	matched := make([]*Appointment, 0)
	for _, a := range m.appts {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.From != nil && a.StartTime.Before(*f.From) {
			continue
		}
		if f.To != nil && !a.StartTime.Before(*f.To) {
			continue
		}
		matched = append(matched, a)
	}
	total := len(matched)
	if offset >= len(matched) {
		return []*Appointment{}, total, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (m *mockRepo) FindOverlapping(_ context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range m.appts {
		if a.DoctorID != doctorID || a.Status == StatusCancelled {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.StartTime.Before(end) && a.EndTime.After(start) {
			out = append(out, a)
		}
	}
	return out, nil
}

// mockDirectory answers existence checks from a fixed id set.
type mockDirectory map[uuid.UUID]bool

func (m mockDirectory) ExistsActive(_ context.Context, id uuid.UUID) (bool, error) {
	return m[id], nil
}

// nopTx runs the function without a transaction; the mock repository has
// no concurrency to protect against.
type nopTx struct{}

func (nopTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// lockingTx serializes transactions with a mutex, standing in for the
// isolation the real runner gets from the database.
type lockingTx struct {
	mu sync.Mutex
}

func (l *lockingTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

// trackingTx records whether a transaction is currently executing.
type trackingTx struct {
	inTx bool
}

func (l *trackingTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	l.inTx = true
	defer func() { l.inTx = false }()
	return fn(ctx)
}

type directoryFunc func(ctx context.Context, id uuid.UUID) (bool, error)

func (f directoryFunc) ExistsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	return f(ctx, id)
}

type fixture struct {
	svc       *Service
	repo      *mockRepo
	patientID uuid.UUID
	doctorID  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMockRepo()
	patientID := uuid.New()
	doctorID := uuid.New()
	svc := NewService(repo,
		mockDirectory{patientID: true},
		mockDirectory{doctorID: true},
		nopTx{}, validator.New(), zerolog.Nop())
	return &fixture{svc: svc, repo: repo, patientID: patientID, doctorID: doctorID}
}

func at(hour, min int) time.Time {
	return time.Date(2026, time.September, 14, hour, min, 0, 0, time.UTC)
}

func (f *fixture) book(t *testing.T, start, end time.Time) *Appointment {
	t.Helper()
	a, err := f.svc.Create(context.Background(), &CreateRequest{
		PatientID: f.patientID,
		DoctorID:  f.doctorID,
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		t.Fatalf("book %v-%v: %v", start, end, err)
	}
	return a
}

func TestBookAppointment(t *testing.T) {
	f := newFixture(t)

	a := f.book(t, at(10, 0), at(10, 30))
	if a.Status != StatusScheduled {
		t.Errorf("status = %q, want SCHEDULED", a.Status)
	}
	if a.ID == uuid.Nil {
		t.Error("expected an assigned id")
	}
}

func TestBookAppointmentInvalidInterval(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct {
		name       string
		start, end time.Time
	}{
		{"end before start", at(10, 30), at(10, 0)},
		{"zero-length", at(10, 0), at(10, 0)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), &CreateRequest{
				PatientID: f.patientID, DoctorID: f.doctorID,
				StartTime: tc.start, EndTime: tc.end,
			})
			pb := problem.From(err)
			if pb == nil || pb.Status != 400 {
				t.Fatalf("expected validation problem, got %v", err)
			}
		})
	}
}

func TestBookAppointmentUnknownReferences(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), &CreateRequest{
		PatientID: uuid.New(), DoctorID: f.doctorID,
		StartTime: at(10, 0), EndTime: at(10, 30),
	})
	if !problem.IsNotFound(err) {
		t.Fatalf("unknown patient: expected not found, got %v", err)
	}

	_, err = f.svc.Create(context.Background(), &CreateRequest{
		PatientID: f.patientID, DoctorID: uuid.New(),
		StartTime: at(10, 0), EndTime: at(10, 30),
	})
	if !problem.IsNotFound(err) {
		t.Fatalf("unknown doctor: expected not found, got %v", err)
	}
}

func TestBookAppointmentOverlapRejected(t *testing.T) {
	f := newFixture(t)
	f.book(t, at(10, 0), at(10, 30))

	_, err := f.svc.Create(context.Background(), &CreateRequest{
		PatientID: f.patientID, DoctorID: f.doctorID,
		StartTime: at(10, 15), EndTime: at(10, 45),
	})
	if !problem.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestBookBackToBackAppointments(t *testing.T) {
	f := newFixture(t)
	f.book(t, at(10, 0), at(10, 30))

	// [10:00,10:30) and [10:30,11:00) share no instant
	f.book(t, at(10, 30), at(11, 0))
}

func TestOverlapScopedToDoctor(t *testing.T) {
	f := newFixture(t)
	f.book(t, at(10, 0), at(10, 30))

	otherDoctor := uuid.New()
	f.svc.doctors = mockDirectory{f.doctorID: true, otherDoctor: true}

	if _, err := f.svc.Create(context.Background(), &CreateRequest{
		PatientID: f.patientID, DoctorID: otherDoctor,
		StartTime: at(10, 0), EndTime: at(10, 30),
	}); err != nil {
		t.Fatalf("same slot with another doctor should book: %v", err)
	}
}

func TestCancelFreesSlot(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, at(10, 0), at(10, 30))

	cancelled, err := f.svc.Cancel(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("status = %q", cancelled.Status)
	}

	// the slot is free again
	f.book(t, at(10, 0), at(10, 30))
}

func TestCompleteKeepsSlotOccupied(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, at(10, 0), at(10, 30))

	if _, err := f.svc.Complete(context.Background(), a.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	_, err := f.svc.Create(context.Background(), &CreateRequest{
		PatientID: f.patientID, DoctorID: f.doctorID,
		StartTime: at(10, 0), EndTime: at(10, 30),
	})
	if !problem.IsConflict(err) {
		t.Fatalf("expected conflict on completed slot, got %v", err)
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	ctx := context.Background()

	t.Run("complete after cancel", func(t *testing.T) {
		f := newFixture(t)
		a := f.book(t, at(10, 0), at(10, 30))
		if _, err := f.svc.Cancel(ctx, a.ID); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		_, err := f.svc.Complete(ctx, a.ID)
		if pb := problem.From(err); pb == nil || pb.Type != problem.TypeInvalidState {
			t.Fatalf("expected invalid-state problem, got %v", err)
		}
	})

	t.Run("cancel twice", func(t *testing.T) {
		f := newFixture(t)
		a := f.book(t, at(10, 0), at(10, 30))
		if _, err := f.svc.Cancel(ctx, a.ID); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		_, err := f.svc.Cancel(ctx, a.ID)
		if pb := problem.From(err); pb == nil || pb.Type != problem.TypeInvalidState {
			t.Fatalf("expected invalid-state problem, got %v", err)
		}
	})
}

func TestConcurrentTerminalTransitions(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	patientID, doctorID := uuid.New(), uuid.New()
	svc := NewService(repo,
		mockDirectory{patientID: true},
		mockDirectory{doctorID: true},
		&lockingTx{}, validator.New(), zerolog.Nop())

	a, err := svc.Create(ctx, &CreateRequest{
		PatientID: patientID, DoctorID: doctorID,
		StartTime: at(10, 0), EndTime: at(10, 30),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	var cancelErr, completeErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, cancelErr = svc.Cancel(ctx, a.ID)
	}()
	go func() {
		defer wg.Done()
		_, completeErr = svc.Complete(ctx, a.ID)
	}()
	wg.Wait()

	wins := 0
	for _, err := range []error{cancelErr, completeErr} {
		if err == nil {
			wins++
			continue
		}
		if pb := problem.From(err); pb == nil || pb.Type != problem.TypeInvalidState {
			t.Fatalf("loser should fail with invalid-state, got %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("want exactly one transition to win, got %d (cancel=%v complete=%v)", wins, cancelErr, completeErr)
	}

	final, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cancelErr == nil && final.Status != StatusCancelled {
		t.Fatalf("cancel won but status = %q", final.Status)
	}
	if completeErr == nil && final.Status != StatusCompleted {
		t.Fatalf("complete won but status = %q", final.Status)
	}
}

func TestCreateChecksReferencesInTransaction(t *testing.T) {
	ctx := context.Background()
	tx := &trackingTx{}
	patientID, doctorID := uuid.New(), uuid.New()

	var patientCheckedInTx, doctorCheckedInTx bool
	patients := directoryFunc(func(_ context.Context, id uuid.UUID) (bool, error) {
		patientCheckedInTx = tx.inTx
		return id == patientID, nil
	})
	doctors := directoryFunc(func(_ context.Context, id uuid.UUID) (bool, error) {
		doctorCheckedInTx = tx.inTx
		return id == doctorID, nil
	})

	svc := NewService(newMockRepo(), patients, doctors, tx, validator.New(), zerolog.Nop())
	_, err := svc.Create(ctx, &CreateRequest{
		PatientID: patientID, DoctorID: doctorID,
		StartTime: at(10, 0), EndTime: at(10, 30),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !patientCheckedInTx || !doctorCheckedInTx {
		t.Fatalf("reference checks ran outside the booking transaction (patient=%v doctor=%v)",
			patientCheckedInTx, doctorCheckedInTx)
	}
}

func TestRescheduleAppointment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.book(t, at(10, 0), at(10, 30))

	// shifting within your own slot must not conflict with yourself
	updated, err := f.svc.Update(ctx, a.ID, &UpdateRequest{
		PatientID: f.patientID, DoctorID: f.doctorID,
		StartTime: at(10, 15), EndTime: at(10, 45),
	})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if !updated.StartTime.Equal(at(10, 15)) {
		t.Errorf("start = %v", updated.StartTime)
	}

	// moving onto another appointment is a conflict
	f.book(t, at(11, 0), at(11, 30))
	_, err = f.svc.Update(ctx, a.ID, &UpdateRequest{
		PatientID: f.patientID, DoctorID: f.doctorID,
		StartTime: at(11, 15), EndTime: at(11, 45),
	})
	if !problem.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRescheduleTerminalAppointment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.book(t, at(10, 0), at(10, 30))
	if _, err := f.svc.Complete(ctx, a.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	_, err := f.svc.Update(ctx, a.ID, &UpdateRequest{
		PatientID: f.patientID, DoctorID: f.doctorID,
		StartTime: at(12, 0), EndTime: at(12, 30),
	})
	if pb := problem.From(err); pb == nil || pb.Type != problem.TypeInvalidState {
		t.Fatalf("expected invalid-state problem, got %v", err)
	}
}

func TestDeleteAppointment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.book(t, at(10, 0), at(10, 30))

	if err := f.svc.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, a.ID); !problem.IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := f.svc.Delete(ctx, a.ID); !problem.IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestListAppointmentsFilter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.book(t, at(9, 0), at(9, 30))
	f.book(t, at(10, 0), at(10, 30))
	f.book(t, at(11, 0), at(11, 30))

	from, to := at(9, 30), at(11, 0)
	appts, total, err := f.svc.List(ctx, Filter{DoctorID: &f.doctorID, From: &from, To: &to}, 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(appts) != 1 || !appts[0].StartTime.Equal(at(10, 0)) {
		t.Fatalf("filtered results = %d/%d", len(appts), total)
	}
}
