package appointments

import "errors"

var (
	// ErrPendingExists means the phone already has an appointment awaiting approval.
	ErrPendingExists = errors.New("appointments: a pending appointment already exists for this phone")

	// ErrDailyLimit means the phone already created an appointment today.
	ErrDailyLimit = errors.New("appointments: daily booking limit reached for this phone")

	// ErrNotFound means no appointment exists for the given id.
	ErrNotFound = errors.New("appointments: appointment not found")

	// ErrAlreadyRescheduled means a reschedule row already exists, or the
	// appointment status is already rescheduled. One reschedule per appointment.
	ErrAlreadyRescheduled = errors.New("appointments: appointment has already been rescheduled")
)
