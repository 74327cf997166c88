package staff

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/carezw/appointment-bot/pkg/logging"
)

func newMockHandler(t *testing.T) (*Handler, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewHandler(NewRepository(mock), "test-secret", time.Hour, logging.Default()), mock
}

func memberRow(id uuid.UUID, email, hash string, role Role) *pgxmock.Rows {
	now := time.Now().UTC()
	return pgxmock.NewRows([]string{
		"id", "full_name", "email", "phone", "role", "password_hash", "created_at", "updated_at",
	}).AddRow(toPGUUID(id), "Tari Ncube", email, "+263771112222", string(role), hash, now, now)
}

func TestSigninIssuesTokenAndRecordsLogin(t *testing.T) {
	h, mock := newMockHandler(t)
	id := uuid.New()
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein-please"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+ FROM staff_details WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("tari@carezw.org").
		WillReturnRows(memberRow(id, "tari@carezw.org", string(hash), RoleStaff))
	mock.ExpectExec(`INSERT INTO login_stats`).
		WithArgs(pgxmock.AnyArg(), toPGUUID(id), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	req := httptest.NewRequest("POST", "/staff/signin",
		strings.NewReader(`{"email": "tari@carezw.org", "password": "letmein-please"}`))
	rec := httptest.NewRecorder()
	h.Signin(rec, req)

	require.Equal(t, 200, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"token"`)
	assert.NotContains(t, rec.Body.String(), string(hash))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSigninRejectsWrongPassword(t *testing.T) {
	h, mock := newMockHandler(t)
	id := uuid.New()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+ FROM staff_details WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("tari@carezw.org").
		WillReturnRows(memberRow(id, "tari@carezw.org", string(hash), RoleStaff))

	req := httptest.NewRequest("POST", "/staff/signin",
		strings.NewReader(`{"email": "tari@carezw.org", "password": "wrong"}`))
	rec := httptest.NewRecorder()
	h.Signin(rec, req)

	assert.Equal(t, 401, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSigninUnknownEmail(t *testing.T) {
	h, mock := newMockHandler(t)

	mock.ExpectQuery(`SELECT .+ FROM staff_details WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("nobody@carezw.org").
		WillReturnError(pgx.ErrNoRows)

	req := httptest.NewRequest("POST", "/staff/signin",
		strings.NewReader(`{"email": "nobody@carezw.org", "password": "whatever"}`))
	rec := httptest.NewRecorder()
	h.Signin(rec, req)

	assert.Equal(t, 401, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignupCreatesStaffMember(t *testing.T) {
	h, mock := newMockHandler(t)

	mock.ExpectQuery(`SELECT id FROM staff_details WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("new@carezw.org").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO staff_details`).
		WithArgs(pgxmock.AnyArg(), "New Person", "new@carezw.org", "+263775556666", "staff",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	req := httptest.NewRequest("POST", "/staff/signup",
		strings.NewReader(`{"fullName": "New Person", "email": "new@carezw.org", "phone": "+263775556666", "password": "longenough"}`))
	rec := httptest.NewRecorder()
	h.Signup(rec, req)

	require.Equal(t, 201, rec.Code, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	h, mock := newMockHandler(t)

	mock.ExpectQuery(`SELECT id FROM staff_details WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("taken@carezw.org").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(toPGUUID(uuid.New())))

	req := httptest.NewRequest("POST", "/staff/signup",
		strings.NewReader(`{"fullName": "New Person", "email": "taken@carezw.org", "phone": "+263775556666", "password": "longenough"}`))
	rec := httptest.NewRecorder()
	h.Signup(rec, req)

	assert.Equal(t, 409, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignupEnforcesPasswordPolicy(t *testing.T) {
	h, _ := newMockHandler(t)

	for name, body := range map[string]string{
		"too short":     `{"fullName": "New Person", "email": "new@carezw.org", "phone": "+263775556666", "password": "short"}`,
		"too long":      `{"fullName": "New Person", "email": "new@carezw.org", "phone": "+263775556666", "password": "seventeen-chars!!"}`,
		"mismatch":      `{"fullName": "New Person", "email": "new@carezw.org", "phone": "+263775556666", "password": "longenough", "confirmPassword": "different1"}`,
		"missing phone": `{"fullName": "New Person", "email": "new@carezw.org", "password": "longenough"}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/staff/signup", strings.NewReader(body))
			rec := httptest.NewRecorder()
			h.Signup(rec, req)

			assert.Equal(t, 400, rec.Code)
		})
	}
}

func TestCount(t *testing.T) {
	h, mock := newMockHandler(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM staff_details`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	req := httptest.NewRequest("GET", "/staff/count", nil)
	rec := httptest.NewRecorder()
	h.Count(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.JSONEq(t, `{"count": 4}`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}
