package dialog

import (
	"context"
	"sync"
	"time"

	"github.com/carezw/appointment-bot/internal/appointments"
)

// Flow is the top-level conversation purpose a sender is engaged in.
type Flow string

const (
	FlowNone    Flow = ""
	FlowBooking Flow = "booking"
	FlowManage  Flow = "manage"
	FlowLearn   Flow = "learn"
)

// Step is a position inside a flow's state machine. A Step is only
// meaningful together with its Flow; the engine treats any other
// combination as a stale context and clears it.
type Step string

const (
	StepSelectService Step = "selectService"
	StepDateInput     Step = "dateInput"
	StepTimeSelection Step = "timeSelection"
	StepNameInput     Step = "nameInput"
	StepPreview       Step = "preview"

	StepManageAppointments      Step = "manageAppointments"
	StepCancelOrReschedule      Step = "cancelOrReschedule"
	StepDateSelectForReschedule Step = "dateSelectForReschedule"
	StepTimeSelectForReschedule Step = "timeSelectForReschedule"
	StepReschedulingReason      Step = "reschedulingReason"
	StepRescheduleConfirm       Step = "rescheduleConfirm"

	StepLearnMenu Step = "learnMenu"
)

// SessionContext is the per-sender dialogue state. At most one exists
// per sender; absence means no active flow.
type SessionContext struct {
	Sender string `json:"sender"`
	Flow   Flow   `json:"flow"`
	Step   Step   `json:"step"`

	Service  appointments.Service `json:"service,omitempty"`
	FullName string               `json:"full_name,omitempty"`
	Date     string               `json:"date,omitempty"` // YYYY-MM-DD
	Time     string               `json:"time,omitempty"` // HH:MM

	AppointmentID   string `json:"appointment_id,omitempty"`
	RescheduledDate string `json:"rescheduled_date,omitempty"`
	RescheduledTime string `json:"rescheduled_time,omitempty"`
	Reason          string `json:"reason,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// SessionStore maps senders to dialogue contexts. Get returns nil when
// the sender has no active context. TryLock/Unlock implement the
// per-sender turn lock taken around every mutating confirm.
type SessionStore interface {
	Get(ctx context.Context, sender string) (*SessionContext, error)
	Put(ctx context.Context, sc *SessionContext) error
	Delete(ctx context.Context, sender string) error
	TryLock(ctx context.Context, sender string) (bool, error)
	Unlock(ctx context.Context, sender string) error
}

// MemorySessionStore is the default process-local SessionStore.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]SessionContext
	locks    map[string]struct{}
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]SessionContext),
		locks:    make(map[string]struct{}),
	}
}

func (s *MemorySessionStore) Get(_ context.Context, sender string) (*SessionContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.sessions[sender]
	if !ok {
		return nil, nil
	}
	copied := sc
	return &copied, nil
}

func (s *MemorySessionStore) Put(_ context.Context, sc *SessionContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc.UpdatedAt = time.Now().UTC()
	s.sessions[sc.Sender] = *sc
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, sender string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sender)
	return nil
}

func (s *MemorySessionStore) TryLock(_ context.Context, sender string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.locks[sender]; held {
		return false, nil
	}
	s.locks[sender] = struct{}{}
	return true, nil
}

func (s *MemorySessionStore) Unlock(_ context.Context, sender string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, sender)
	return nil
}
