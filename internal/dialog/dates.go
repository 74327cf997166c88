package dialog

import (
	"errors"
	"time"
)

// Date validation failures, checked in order: format, past-or-today,
// non-operating weekday.
var (
	ErrDateFormat    = errors.New("date must be in YYYY-MM-DD format")
	ErrDateNotFuture = errors.New("date must be after today")
	ErrDateSunday    = errors.New("appointments cannot fall on a Sunday")
)

const dateLayout = "2006-01-02"

// ValidateAppointmentDate parses input as a calendar date in the given
// location and enforces the booking policy: strictly future and not a
// Sunday. Returns the parsed date at local midnight.
func ValidateAppointmentDate(input string, now time.Time, loc *time.Location) (time.Time, error) {
	parsed, err := time.ParseInLocation(dateLayout, input, loc)
	if err != nil {
		return time.Time{}, ErrDateFormat
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	if !parsed.After(today) {
		return time.Time{}, ErrDateNotFuture
	}
	if parsed.Weekday() == time.Sunday {
		return time.Time{}, ErrDateSunday
	}
	return parsed, nil
}

// dateReply maps a validation failure to the message sent back to the
// user.
func dateReply(err error) string {
	switch {
	case errors.Is(err, ErrDateFormat):
		return "Please enter the date in YYYY-MM-DD format, for example 2025-03-14."
	case errors.Is(err, ErrDateNotFuture):
		return "That date has already passed or is today. Please choose a date after today."
	case errors.Is(err, ErrDateSunday):
		return "We are closed on Sundays. Please choose another day."
	default:
		return "That date does not look right. Please enter a date in YYYY-MM-DD format."
	}
}
