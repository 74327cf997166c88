package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockReports(t *testing.T) (*Reports, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewReports(db), mock
}

func TestListAllFlattensReschedule(t *testing.T) {
	reports, mock := newMockReports(t)
	booked := time.Date(2099, 2, 1, 0, 0, 0, 0, time.UTC)
	moved := time.Date(2099, 2, 8, 0, 0, 0, 0, time.UTC)
	created := time.Now().UTC()

	mock.ExpectQuery(`LEFT JOIN reschedule_appointments`).WillReturnRows(
		sqlmock.NewRows([]string{
			"id", "full_name", "gender", "service", "phone",
			"booking_date", "booking_time", "status", "created_at",
			"rescheduled_date", "rescheduled_time", "reason",
		}).AddRow(
			"4f6b0a4e-0000-0000-0000-000000000001", "Jane Doe", nil, "treatment", "263770000000",
			booked, "10:00", "rescheduled", created,
			moved, "09:00", "travel",
		).AddRow(
			"4f6b0a4e-0000-0000-0000-000000000002", "John Moyo", "male", "consultation", "263770000001",
			booked, "11:00", "pending", created,
			nil, nil, nil,
		))

	rows, err := reports.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].RescheduledDate)
	assert.Equal(t, moved, *rows[0].RescheduledDate)
	assert.Nil(t, rows[1].RescheduledDate)
	assert.Equal(t, "male", *rows[1].Gender)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountsByStatus(t *testing.T) {
	reports, mock := newMockReports(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM appointments$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(`WHERE status = 'pending'`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	all, err := reports.CountAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, all)

	pending, err := reports.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, pending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountTodayUsesEffectiveDate(t *testing.T) {
	reports, mock := newMockReports(t)
	today := time.Date(2099, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`COALESCE\(r\.rescheduled_date, a\.booking_date\) = \$1`).
		WithArgs(today).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	count, err := reports.CountToday(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookedSlotsSkipsCancelled(t *testing.T) {
	reports, mock := newMockReports(t)
	date := time.Date(2099, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`a\.status <> 'cancelled'`).
		WithArgs(date).
		WillReturnRows(sqlmock.NewRows([]string{"slot"}).AddRow("08:00").AddRow("10:00"))

	slots, err := reports.BookedSlots(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "10:00"}, slots)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWeekCalendarRange(t *testing.T) {
	reports, mock := newMockReports(t)
	start := time.Date(2099, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	mock.ExpectQuery(`GROUP BY day ORDER BY day ASC`).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"day", "count"}).
			AddRow(start, 2).
			AddRow(start.AddDate(0, 0, 2), 1))

	days, err := reports.WeekCalendar(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, 2, days[0].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountsByServiceOrder(t *testing.T) {
	reports, mock := newMockReports(t)

	mock.ExpectQuery(`GROUP BY service`).
		WillReturnRows(sqlmock.NewRows([]string{"service", "count"}).
			AddRow("consultation", 7).
			AddRow("treatment", 2))

	counts, err := reports.CountsByService(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "consultation", counts[0].Service)
	assert.Equal(t, 7, counts[0].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAllEmptyReturnsEmptySlice(t *testing.T) {
	reports, mock := newMockReports(t)

	mock.ExpectQuery(`LEFT JOIN reschedule_appointments`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "full_name", "gender", "service", "phone",
			"booking_date", "booking_time", "status", "created_at",
			"rescheduled_date", "rescheduled_time", "reason",
		}))

	rows, err := reports.ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
