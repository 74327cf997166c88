package appointments

import (
	"context"
	"database/sql"
	"time"
)

// ReportRow is an appointment as the staff dashboard sees it, with the
// reschedule columns flattened in.
type ReportRow struct {
	ID               string     `json:"id"`
	FullName         string     `json:"fullName"`
	Gender           *string    `json:"gender"`
	Service          string     `json:"service"`
	Phone            string     `json:"phone"`
	BookingDate      time.Time  `json:"bookingDate"`
	BookingTime      string     `json:"bookingTime"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"createdAt"`
	RescheduledDate  *time.Time `json:"rescheduledDate,omitempty"`
	RescheduledTime  *string    `json:"rescheduledTime,omitempty"`
	RescheduleReason *string    `json:"rescheduleReason,omitempty"`
}

// DayCount is one calendar day and how many appointments land on it.
type DayCount struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// WeekCount groups appointment volume by ISO week start.
type WeekCount struct {
	WeekStart time.Time `json:"weekStart"`
	Count     int       `json:"count"`
}

// ServiceCount groups appointment volume by service.
type ServiceCount struct {
	Service string `json:"service"`
	Count   int    `json:"count"`
}

// Reports is the read-only query surface behind the staff endpoints.
type Reports struct {
	db *sql.DB
}

func NewReports(db *sql.DB) *Reports {
	return &Reports{db: db}
}

func (r *Reports) ListAll(ctx context.Context) ([]ReportRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.full_name, a.gender, a.service, a.phone,
		       a.booking_date, a.booking_time, a.status, a.created_at,
		       r.rescheduled_date, r.rescheduled_time, r.reason
		FROM appointments a
		LEFT JOIN reschedule_appointments r ON r.appointment_id = a.id
		ORDER BY a.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReportRow
	for rows.Next() {
		var row ReportRow
		if err := rows.Scan(&row.ID, &row.FullName, &row.Gender, &row.Service, &row.Phone,
			&row.BookingDate, &row.BookingTime, &row.Status, &row.CreatedAt,
			&row.RescheduledDate, &row.RescheduledTime, &row.RescheduleReason); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if out == nil {
		out = []ReportRow{}
	}
	return out, rows.Err()
}

func (r *Reports) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM appointments`).Scan(&count)
	return count, err
}

func (r *Reports) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM appointments WHERE status = 'pending'`).Scan(&count)
	return count, err
}

// CountToday counts appointments whose effective date is today. today must be
// local midnight.
func (r *Reports) CountToday(ctx context.Context, today time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM appointments a
		LEFT JOIN reschedule_appointments r ON r.appointment_id = a.id
		WHERE a.status <> 'cancelled'
		  AND COALESCE(r.rescheduled_date, a.booking_date) = $1`, today).Scan(&count)
	return count, err
}

// BookedSlots returns the times already taken on a date so the dashboard can
// grey them out.
func (r *Reports) BookedSlots(ctx context.Context, date time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(r.rescheduled_time, a.booking_time) AS slot
		FROM appointments a
		LEFT JOIN reschedule_appointments r ON r.appointment_id = a.id
		WHERE a.status <> 'cancelled'
		  AND COALESCE(r.rescheduled_date, a.booking_date) = $1
		ORDER BY slot ASC`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		out = append(out, slot)
	}
	if out == nil {
		out = []string{}
	}
	return out, rows.Err()
}

// WeekCalendar returns per-day counts for the half-open range
// [weekStart, weekEnd).
func (r *Reports) WeekCalendar(ctx context.Context, weekStart, weekEnd time.Time) ([]DayCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(r.rescheduled_date, a.booking_date) AS day, COUNT(*)
		FROM appointments a
		LEFT JOIN reschedule_appointments r ON r.appointment_id = a.id
		WHERE a.status <> 'cancelled'
		  AND COALESCE(r.rescheduled_date, a.booking_date) >= $1
		  AND COALESCE(r.rescheduled_date, a.booking_date) < $2
		GROUP BY day ORDER BY day ASC`, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DayCount
	for rows.Next() {
		var dc DayCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	if out == nil {
		out = []DayCount{}
	}
	return out, rows.Err()
}

func (r *Reports) WeeklyCounts(ctx context.Context) ([]WeekCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date_trunc('week', booking_date)::date AS week_start, COUNT(*)
		FROM appointments
		GROUP BY week_start ORDER BY week_start DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WeekCount
	for rows.Next() {
		var wc WeekCount
		if err := rows.Scan(&wc.WeekStart, &wc.Count); err != nil {
			return nil, err
		}
		out = append(out, wc)
	}
	if out == nil {
		out = []WeekCount{}
	}
	return out, rows.Err()
}

func (r *Reports) CountsByService(ctx context.Context) ([]ServiceCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT service, COUNT(*) FROM appointments
		GROUP BY service ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ServiceCount
	for rows.Next() {
		var sc ServiceCount
		if err := rows.Scan(&sc.Service, &sc.Count); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	if out == nil {
		out = []ServiceCount{}
	}
	return out, rows.Err()
}
