package staff

import (
	"time"

	"github.com/google/uuid"
)

// Role gates the admin-only endpoints. Signup is admin-only; the first
// admin is seeded by migration.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// Member is one staff account.
type Member struct {
	ID           uuid.UUID `json:"id"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// LoginStat is one successful signin, kept for the activity report.
type LoginStat struct {
	ID        uuid.UUID `json:"id"`
	StaffID   uuid.UUID `json:"staffId"`
	IPAddress string    `json:"ipAddress"`
	LoggedAt  time.Time `json:"loggedAt"`
}
