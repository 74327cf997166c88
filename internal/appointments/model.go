package appointments

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks an appointment through its lifecycle. Appointments are created
// pending; staff approval is the only path to approved.
type Status string

const (
	StatusPending     Status = "pending"
	StatusApproved    Status = "approved"
	StatusCancelled   Status = "cancelled"
	StatusRescheduled Status = "rescheduled"
)

// Service is one of the bookable service categories.
type Service string

const (
	ServiceConsultation Service = "consultation"
	ServiceScreening    Service = "screening and diagnostic tests"
	ServiceTreatment    Service = "treatment"
	ServiceSupport      Service = "supportive care services"
)

// Services lists every bookable category in menu order.
var Services = []Service{
	ServiceConsultation,
	ServiceScreening,
	ServiceTreatment,
	ServiceSupport,
}

// Appointment is a persisted booking request.
type Appointment struct {
	ID          uuid.UUID
	FullName    string
	Gender      *string
	Service     Service
	Phone       string
	BookingDate time.Time // date component only
	BookingTime string    // "HH:MM"
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Reschedule is the proposed replacement slot, if one exists.
	Reschedule *Reschedule
}

// EffectiveDate is the date the appointment will actually happen on:
// the rescheduled date when a reschedule exists, else the booking date.
func (a *Appointment) EffectiveDate() time.Time {
	if a.Reschedule != nil {
		return a.Reschedule.Date
	}
	return a.BookingDate
}

// EffectiveTime mirrors EffectiveDate for the time-of-day string.
func (a *Appointment) EffectiveTime() string {
	if a.Reschedule != nil {
		return a.Reschedule.Time
	}
	return a.BookingTime
}

// Reschedule is the at-most-one replacement slot proposed for an appointment.
type Reschedule struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Date          time.Time
	Time          string
	Reason        string
	CreatedAt     time.Time
}

// HistoryEntry records one status transition. Rows are append-only.
type HistoryEntry struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Status        Status
	Reason        string
	CreatedAt     time.Time
}

// Draft holds the fields collected by the booking flow before persistence.
type Draft struct {
	FullName    string
	Service     Service
	Phone       string
	BookingDate time.Time
	BookingTime string
}
