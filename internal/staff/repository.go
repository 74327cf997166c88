package staff

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

var (
	ErrNotFound    = errors.New("staff member not found")
	ErrEmailExists = errors.New("email already registered")
)

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	if db == nil {
		panic("staff: pgx pool required")
	}
	return &Repository{db: db}
}

const memberColumns = `id, full_name, email, phone, role, password_hash, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, m *Member) error {
	var existing pgtype.UUID
	err := r.db.QueryRow(ctx,
		`SELECT id FROM staff_details WHERE lower(email) = lower($1) LIMIT 1`,
		m.Email,
	).Scan(&existing)
	if err == nil {
		return ErrEmailExists
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("staff: check email: %w", err)
	}

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now().UTC()
	m.UpdatedAt = m.CreatedAt
	_, err = r.db.Exec(ctx, `
		INSERT INTO staff_details (id, full_name, email, phone, role, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		toPGUUID(m.ID), m.FullName, strings.ToLower(m.Email), m.Phone, string(m.Role),
		m.PasswordHash, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("staff: insert: %w", err)
	}
	return nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*Member, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM staff_details WHERE lower(email) = lower($1)`, email)
	m, err := scanMember(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("staff: load by email: %w", err)
	}
	return m, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Member, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM staff_details WHERE id = $1`, toPGUUID(id))
	m, err := scanMember(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("staff: load: %w", err)
	}
	return m, nil
}

func (r *Repository) List(ctx context.Context) ([]Member, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+memberColumns+` FROM staff_details ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("staff: list: %w", err)
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("staff: scan: %w", err)
		}
		out = append(out, *m)
	}
	if out == nil {
		out = []Member{}
	}
	return out, rows.Err()
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM staff_details`).Scan(&count)
	return count, err
}

// Update applies a partial field update. Nil pointers leave the column
// untouched.
type Update struct {
	FullName     *string
	Email        *string
	Phone        *string
	Role         *Role
	PasswordHash *string
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, update Update) (*Member, error) {
	set := []string{"updated_at = $2"}
	args := []any{toPGUUID(id), time.Now().UTC()}
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.FullName != nil {
		add("full_name", *update.FullName)
	}
	if update.Email != nil {
		add("email", strings.ToLower(*update.Email))
	}
	if update.Phone != nil {
		add("phone", *update.Phone)
	}
	if update.Role != nil {
		add("role", string(*update.Role))
	}
	if update.PasswordHash != nil {
		add("password_hash", *update.PasswordHash)
	}

	query := fmt.Sprintf("UPDATE staff_details SET %s WHERE id = $1", strings.Join(set, ", "))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("staff: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

// RecordLogin appends one login stat row with the client address.
func (r *Repository) RecordLogin(ctx context.Context, staffID uuid.UUID, ip string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO login_stats (id, staff_id, ip_address, logged_at)
		VALUES ($1, $2, $3, $4)`,
		toPGUUID(uuid.New()), toPGUUID(staffID), ip, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("staff: record login: %w", err)
	}
	return nil
}

// LoginStats returns the most recent logins, newest first.
func (r *Repository) LoginStats(ctx context.Context, limit int) ([]LoginStat, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, staff_id, ip_address, logged_at FROM login_stats
		ORDER BY logged_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("staff: login stats: %w", err)
	}
	defer rows.Close()

	var out []LoginStat
	for rows.Next() {
		var (
			stat    LoginStat
			id      pgtype.UUID
			staffID pgtype.UUID
		)
		if err := rows.Scan(&id, &staffID, &stat.IPAddress, &stat.LoggedAt); err != nil {
			return nil, fmt.Errorf("staff: scan login stat: %w", err)
		}
		stat.ID = fromPGUUID(id)
		stat.StaffID = fromPGUUID(staffID)
		out = append(out, stat)
	}
	if out == nil {
		out = []LoginStat{}
	}
	return out, rows.Err()
}

func scanMember(row pgx.Row) (*Member, error) {
	var (
		m    Member
		id   pgtype.UUID
		role string
	)
	err := row.Scan(&id, &m.FullName, &m.Email, &m.Phone, &role, &m.PasswordHash, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.ID = fromPGUUID(id)
	m.Role = Role(role)
	return &m, nil
}

func toPGUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: [16]byte(id), Valid: true}
}

func fromPGUUID(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return uuid.UUID(id.Bytes)
}
