package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for appointments, history and reschedules.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("appointments: pgx pool required")
	}
	return &Repository{db: db}
}

const appointmentColumns = `a.id, a.full_name, a.gender, a.service, a.phone,
	a.booking_date, a.booking_time, a.status, a.created_at, a.updated_at,
	r.id, r.rescheduled_date, r.rescheduled_time, r.reason, r.created_at`

const appointmentFrom = ` FROM appointments a
	LEFT JOIN reschedule_appointments r ON r.appointment_id = a.id`

// Book inserts a new pending appointment after re-checking, inside one
// transaction, that the phone has no pending appointment and none created
// since sinceMidnight (local midnight of the booking day).
func (r *Repository) Book(ctx context.Context, draft Draft, sinceMidnight time.Time) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin book: %w", err)
	}
	defer tx.Rollback(ctx)

	var existing pgtype.UUID
	err = tx.QueryRow(ctx,
		`SELECT id FROM appointments WHERE phone = $1 AND status = 'pending' LIMIT 1`,
		draft.Phone,
	).Scan(&existing)
	if err == nil {
		return nil, ErrPendingExists
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("appointments: check pending: %w", err)
	}

	err = tx.QueryRow(ctx,
		`SELECT id FROM appointments WHERE phone = $1 AND created_at >= $2 LIMIT 1`,
		draft.Phone, sinceMidnight,
	).Scan(&existing)
	if err == nil {
		return nil, ErrDailyLimit
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("appointments: check daily limit: %w", err)
	}

	appt := &Appointment{
		ID:          uuid.New(),
		FullName:    draft.FullName,
		Service:     draft.Service,
		Phone:       draft.Phone,
		BookingDate: draft.BookingDate,
		BookingTime: draft.BookingTime,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	appt.UpdatedAt = appt.CreatedAt

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (id, full_name, service, phone, booking_date, booking_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		toPGUUID(appt.ID), appt.FullName, string(appt.Service), appt.Phone,
		appt.BookingDate, appt.BookingTime, string(appt.Status), appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("appointments: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointments: commit book: %w", err)
	}
	return appt, nil
}

// Get loads a single appointment with its reschedule, if any.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+appointmentColumns+appointmentFrom+` WHERE a.id = $1`, toPGUUID(id))
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: load: %w", err)
	}
	return appt, nil
}

// ListUpcoming returns the phone's non-cancelled appointments whose effective
// date (rescheduled date when present, else booking date) is on or after today,
// sorted by effective date ascending.
func (r *Repository) ListUpcoming(ctx context.Context, phone string, today time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+appointmentColumns+appointmentFrom+`
		WHERE a.phone = $1 AND a.status <> 'cancelled'
		  AND COALESCE(r.rescheduled_date, a.booking_date) >= $2
		ORDER BY COALESCE(r.rescheduled_date, a.booking_date) ASC`,
		phone, today,
	)
	if err != nil {
		return nil, fmt.Errorf("appointments: list upcoming: %w", err)
	}
	return collectAppointments(rows)
}

// ListPast returns appointments whose booking date is before today or that
// were cancelled, most recent first.
func (r *Repository) ListPast(ctx context.Context, phone string, today time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+appointmentColumns+appointmentFrom+`
		WHERE a.phone = $1 AND (a.booking_date < $2 OR a.status = 'cancelled')
		ORDER BY a.booking_date DESC`,
		phone, today,
	)
	if err != nil {
		return nil, fmt.Errorf("appointments: list past: %w", err)
	}
	return collectAppointments(rows)
}

// Cancel sets the appointment status to cancelled and appends one history row
// with reason "cancellation", in a single transaction. Prior status is not
// checked; re-cancelling is permitted.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("appointments: begin cancel: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE appointments SET status = 'cancelled', updated_at = $2 WHERE id = $1`,
		toPGUUID(id), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("appointments: cancel update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := appendHistory(ctx, tx, id, StatusCancelled, "cancellation"); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("appointments: commit cancel: %w", err)
	}
	return nil
}

// Reschedule records the replacement slot, flips the appointment status to
// rescheduled, and appends a history row carrying the user-supplied reason,
// all in one transaction. An appointment can be rescheduled at most once.
func (r *Repository) Reschedule(ctx context.Context, id uuid.UUID, newDate time.Time, newTime, reason string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("appointments: begin reschedule: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM appointments WHERE id = $1 FOR UPDATE`,
		toPGUUID(id),
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("appointments: lock for reschedule: %w", err)
	}
	if Status(status) == StatusRescheduled {
		return ErrAlreadyRescheduled
	}

	var existing pgtype.UUID
	err = tx.QueryRow(ctx,
		`SELECT id FROM reschedule_appointments WHERE appointment_id = $1 LIMIT 1`,
		toPGUUID(id),
	).Scan(&existing)
	if err == nil {
		return ErrAlreadyRescheduled
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("appointments: check reschedule: %w", err)
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		INSERT INTO reschedule_appointments (id, appointment_id, rescheduled_date, rescheduled_time, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		toPGUUID(uuid.New()), toPGUUID(id), newDate, newTime, reason, now,
	)
	if err != nil {
		return fmt.Errorf("appointments: insert reschedule: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE appointments SET status = 'rescheduled', updated_at = $2 WHERE id = $1`,
		toPGUUID(id), now,
	)
	if err != nil {
		return fmt.Errorf("appointments: reschedule update: %w", err)
	}

	if err := appendHistory(ctx, tx, id, StatusRescheduled, reason); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("appointments: commit reschedule: %w", err)
	}
	return nil
}

// StaffUpdate is a partial field update applied by the staff endpoint.
// Nil pointers leave the column untouched.
type StaffUpdate struct {
	FullName    *string
	Gender      *string
	Service     *Service
	Phone       *string
	BookingDate *time.Time
	BookingTime *string
	Status      *Status
}

// ApplyStaffUpdate applies a partial update, appends a history row tagged with
// the resulting status, and returns the updated appointment so the caller can
// send the status-specific notification.
func (r *Repository) ApplyStaffUpdate(ctx context.Context, id uuid.UUID, update StaffUpdate) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	var currentStatus string
	err = tx.QueryRow(ctx,
		`SELECT status FROM appointments WHERE id = $1 FOR UPDATE`,
		toPGUUID(id),
	).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: lock for update: %w", err)
	}

	set := []string{"updated_at = $2"}
	args := []any{toPGUUID(id), time.Now().UTC()}
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.FullName != nil {
		add("full_name", *update.FullName)
	}
	if update.Gender != nil {
		add("gender", *update.Gender)
	}
	if update.Service != nil {
		add("service", string(*update.Service))
	}
	if update.Phone != nil {
		add("phone", *update.Phone)
	}
	if update.BookingDate != nil {
		add("booking_date", *update.BookingDate)
	}
	if update.BookingTime != nil {
		add("booking_time", *update.BookingTime)
	}
	if update.Status != nil {
		add("status", string(*update.Status))
	}

	query := fmt.Sprintf("UPDATE appointments SET %s WHERE id = $1", strings.Join(set, ", "))
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("appointments: staff update: %w", err)
	}

	resulting := Status(currentStatus)
	if update.Status != nil {
		resulting = *update.Status
	}
	if err := appendHistory(ctx, tx, id, resulting, string(resulting)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointments: commit update: %w", err)
	}
	return r.Get(ctx, id)
}

func appendHistory(ctx context.Context, tx pgx.Tx, appointmentID uuid.UUID, status Status, reason string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO appointment_history (id, appointment_id, status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		toPGUUID(uuid.New()), toPGUUID(appointmentID), string(status), reason, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("appointments: append history: %w", err)
	}
	return nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()
	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, *appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: iterate: %w", err)
	}
	return out, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		appt     Appointment
		id       pgtype.UUID
		gender   *string
		service  string
		status   string
		resID    pgtype.UUID
		resDate  *time.Time
		resTime  *string
		resWhy   *string
		resAt    *time.Time
	)
	err := row.Scan(
		&id, &appt.FullName, &gender, &service, &appt.Phone,
		&appt.BookingDate, &appt.BookingTime, &status, &appt.CreatedAt, &appt.UpdatedAt,
		&resID, &resDate, &resTime, &resWhy, &resAt,
	)
	if err != nil {
		return nil, err
	}
	appt.ID = fromPGUUID(id)
	appt.Gender = gender
	appt.Service = Service(service)
	appt.Status = Status(status)
	if resID.Valid {
		res := &Reschedule{
			ID:            fromPGUUID(resID),
			AppointmentID: appt.ID,
		}
		if resDate != nil {
			res.Date = *resDate
		}
		if resTime != nil {
			res.Time = *resTime
		}
		if resWhy != nil {
			res.Reason = *resWhy
		}
		if resAt != nil {
			res.CreatedAt = *resAt
		}
		appt.Reschedule = res
	}
	return &appt, nil
}

func toPGUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{
		Bytes: [16]byte(id),
		Valid: true,
	}
}

func fromPGUUID(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return uuid.UUID(id.Bytes)
}
