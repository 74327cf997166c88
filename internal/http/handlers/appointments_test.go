package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carezw/appointment-bot/internal/appointments"
	"github.com/carezw/appointment-bot/internal/whatsapp"
	"github.com/carezw/appointment-bot/pkg/logging"
)

type fakeNotifier struct {
	sent []string
	to   []string
}

func (n *fakeNotifier) SendText(_ context.Context, to, body string) (*whatsapp.SendResult, error) {
	n.to = append(n.to, to)
	n.sent = append(n.sent, body)
	return &whatsapp.SendResult{}, nil
}

func newUpdateHandler(t *testing.T) (*AppointmentsHandler, pgxmock.PgxPoolIface, *fakeNotifier) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	notifier := &fakeNotifier{}
	h := NewAppointmentsHandler(appointments.NewRepository(mock), nil, notifier, time.UTC, logging.Default())
	return h, mock, notifier
}

func newReportHandler(t *testing.T) (*AppointmentsHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	h := NewAppointmentsHandler(nil, appointments.NewReports(db), nil, time.UTC, logging.Default())
	return h, mock
}

func TestApproveSendsExactlyOneNotification(t *testing.T) {
	h, mock, notifier := newUpdateHandler(t)
	id := uuid.New()
	now := time.Now().UTC()
	booked := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM appointments WHERE id = \$1 FOR UPDATE`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("pending"))
	mock.ExpectExec(`UPDATE appointments SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "approved").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO appointment_history`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "approved", "approved", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`FROM appointments a`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "full_name", "gender", "service", "phone",
			"booking_date", "booking_time", "status", "created_at", "updated_at",
			"r_id", "rescheduled_date", "rescheduled_time", "reason", "r_created_at",
		}).AddRow(
			pgtype.UUID{Bytes: [16]byte(id), Valid: true}, "Jane Doe", (*string)(nil),
			"consultation", "263770000000", booked, "10:00", "approved", now, now,
			pgtype.UUID{}, (*time.Time)(nil), (*string)(nil), (*string)(nil), (*time.Time)(nil),
		))
	mock.ExpectRollback()

	req := httptest.NewRequest("PATCH", "/appointments/update/"+id.String(),
		strings.NewReader(`{"status": "approved"}`))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	require.Equal(t, 200, rec.Code, rec.Body.String())
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "263770000000", notifier.to[0])
	assert.Contains(t, notifier.sent[0], "approved")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWithoutStatusSendsNoNotification(t *testing.T) {
	h, mock, notifier := newUpdateHandler(t)
	id := uuid.New()
	now := time.Now().UTC()
	booked := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM appointments WHERE id = \$1 FOR UPDATE`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("pending"))
	mock.ExpectExec(`UPDATE appointments SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "New Name").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO appointment_history`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "pending", "pending", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`FROM appointments a`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "full_name", "gender", "service", "phone",
			"booking_date", "booking_time", "status", "created_at", "updated_at",
			"r_id", "rescheduled_date", "rescheduled_time", "reason", "r_created_at",
		}).AddRow(
			pgtype.UUID{Bytes: [16]byte(id), Valid: true}, "New Name", (*string)(nil),
			"consultation", "263770000000", booked, "10:00", "pending", now, now,
			pgtype.UUID{}, (*time.Time)(nil), (*string)(nil), (*string)(nil), (*time.Time)(nil),
		))
	mock.ExpectRollback()

	req := httptest.NewRequest("PATCH", "/appointments/update/"+id.String(),
		strings.NewReader(`{"fullName": "New Name"}`))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	require.Equal(t, 200, rec.Code, rec.Body.String())
	assert.Empty(t, notifier.sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRejectsBadStatus(t *testing.T) {
	h, _, _ := newUpdateHandler(t)
	id := uuid.New()

	req := httptest.NewRequest("PATCH", "/appointments/update/"+id.String(),
		strings.NewReader(`{"status": "postponed"}`))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	assert.Equal(t, 400, rec.Code)
}

func TestUpdateRejectsBadID(t *testing.T) {
	h, _, _ := newUpdateHandler(t)

	req := httptest.NewRequest("PATCH", "/appointments/update/not-a-uuid",
		strings.NewReader(`{"status": "approved"}`))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "not-a-uuid")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	assert.Equal(t, 400, rec.Code)
}

func TestCountPendingEndpoint(t *testing.T) {
	h, mock := newReportHandler(t)

	mock.ExpectQuery(`WHERE status = 'pending'`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	req := httptest.NewRequest("GET", "/appointments/count/pending", nil)
	rec := httptest.NewRecorder()
	h.CountPending(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.JSONEq(t, `{"count": 7}`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookedSlotsRequiresDate(t *testing.T) {
	h, _ := newReportHandler(t)

	req := httptest.NewRequest("GET", "/appointments/slots", nil)
	rec := httptest.NewRecorder()
	h.BookedSlots(rec, req)

	assert.Equal(t, 400, rec.Code)
}

func TestBookedSlotsEndpoint(t *testing.T) {
	h, mock := newReportHandler(t)

	mock.ExpectQuery(`a\.status <> 'cancelled'`).
		WithArgs(time.Date(2099, 2, 2, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(sqlmock.NewRows([]string{"slot"}).AddRow("09:00"))

	req := httptest.NewRequest("GET", "/appointments/slots?date=2099-02-02", nil)
	rec := httptest.NewRecorder()
	h.BookedSlots(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "09:00")
	assert.NoError(t, mock.ExpectationsWereMet())
}
