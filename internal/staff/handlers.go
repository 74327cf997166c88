package staff

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/go-chi/chi/v5"

	"github.com/carezw/appointment-bot/pkg/logging"
)

// Handler serves the staff account endpoints: signin, admin-only
// signup, listing, count, and partial update.
type Handler struct {
	repo      *Repository
	jwtSecret string
	tokenTTL  time.Duration
	logger    *logging.Logger
}

func NewHandler(repo *Repository, jwtSecret string, tokenTTL time.Duration, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &Handler{repo: repo, jwtSecret: jwtSecret, tokenTTL: tokenTTL, logger: logger}
}

// Passwords follow the original policy: 8 to 16 characters, bcrypt cost 12.
const (
	passwordMinLen = 8
	passwordMaxLen = 16
	bcryptCost     = 12
)

type signupRequest struct {
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Role            Role   `json:"role"`
}

func validPassword(p string) bool {
	return len(p) >= passwordMinLen && len(p) <= passwordMaxLen
}

// Signup creates a staff account. The route is wrapped in the admin
// middleware; only admins reach it.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.FullName == "" || req.Email == "" || req.Phone == "" {
		http.Error(w, "fullName, email and phone are required", http.StatusBadRequest)
		return
	}
	if !validPassword(req.Password) {
		http.Error(w, "password must be between 8 and 16 characters", http.StatusBadRequest)
		return
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		http.Error(w, "passwords do not match", http.StatusBadRequest)
		return
	}
	if req.Role == "" {
		req.Role = RoleStaff
	}
	if req.Role != RoleAdmin && req.Role != RoleStaff {
		http.Error(w, "role must be admin or staff", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		h.logger.Error("password hash failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	member := &Member{
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		Role:         req.Role,
		PasswordHash: string(hash),
	}
	if err := h.repo.Create(r.Context(), member); err != nil {
		if errors.Is(err, ErrEmailExists) {
			http.Error(w, "email already registered", http.StatusConflict)
			return
		}
		h.logger.Error("staff create failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(member)
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signinResponse struct {
	Token string  `json:"token"`
	Staff *Member `json:"staff"`
}

// Signin checks the password, records a login stat and returns a JWT.
func (h *Handler) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	member, err := h.repo.GetByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.Error("staff lookup failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(req.Password)) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := IssueToken(h.jwtSecret, member, h.tokenTTL)
	if err != nil {
		h.logger.Error("token issue failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if err := h.repo.RecordLogin(r.Context(), member.ID, r.RemoteAddr); err != nil {
		// The stat is best-effort; signin still succeeds.
		h.logger.Warn("login stat not recorded", "staff_id", member.ID.String(), "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(signinResponse{Token: token, Staff: member})
}

// List returns all staff members.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("staff list failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"staff": members})
}

// Count returns the staff headcount.
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	count, err := h.repo.Count(r.Context())
	if err != nil {
		h.logger.Error("staff count failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"count": count})
}

type updateRequest struct {
	FullName *string `json:"fullName"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Role     *Role   `json:"role"`
	Password *string `json:"password"`
}

// Update applies a partial update to a staff member by id.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid staff id", http.StatusBadRequest)
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	update := Update{FullName: req.FullName, Email: req.Email, Phone: req.Phone, Role: req.Role}
	if req.Password != nil {
		if !validPassword(*req.Password) {
			http.Error(w, "password must be between 8 and 16 characters", http.StatusBadRequest)
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcryptCost)
		if err != nil {
			h.logger.Error("password hash failed", "error", err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		hashed := string(hash)
		update.PasswordHash = &hashed
	}

	member, err := h.repo.Update(r.Context(), id, update)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "staff member not found", http.StatusNotFound)
			return
		}
		h.logger.Error("staff update failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(member)
}

// Logins returns the recent login activity.
func (h *Handler) Logins(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.LoginStats(r.Context(), 100)
	if err != nil {
		h.logger.Error("login stats failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"logins": stats})
}
