package dialog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carezw/appointment-bot/internal/appointments"
	"github.com/carezw/appointment-bot/internal/whatsapp"
)

// Messenger is the outbound WhatsApp surface the engine sends through.
// Failures are logged and swallowed; a turn never aborts because a
// message did not go out.
type Messenger interface {
	SendText(ctx context.Context, to, body string) (*whatsapp.SendResult, error)
	SendImage(ctx context.Context, to, link, caption string) (*whatsapp.SendResult, error)
	SendInteractiveButtons(ctx context.Context, to, bodyText string, buttons []whatsapp.Button) (*whatsapp.SendResult, error)
	SendInteractiveList(ctx context.Context, to, bodyText, buttonLabel string, sections []whatsapp.Section) (*whatsapp.SendResult, error)
}

// Oracle answers free text the structured flows cannot. An answer
// containing the configured sentinel substring means no match.
type Oracle interface {
	Query(ctx context.Context, sessionID, text string) (string, error)
}

// AppointmentStore is the persistence surface the engine books and
// mutates through. Implementations return the appointments package
// sentinel errors for business-rule conflicts.
type AppointmentStore interface {
	Book(ctx context.Context, draft appointments.Draft, sinceMidnight time.Time) (*appointments.Appointment, error)
	ListUpcoming(ctx context.Context, phone string, today time.Time) ([]appointments.Appointment, error)
	ListPast(ctx context.Context, phone string, today time.Time) ([]appointments.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	Reschedule(ctx context.Context, id uuid.UUID, newDate time.Time, newTime, reason string) error
}
