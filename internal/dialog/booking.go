package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/carezw/appointment-bot/internal/appointments"
	"github.com/carezw/appointment-bot/internal/whatsapp"
)

// startBooking opens a fresh booking context and asks for the service.
// Any prior context for the sender is replaced.
func (e *Engine) startBooking(ctx context.Context, sender string) error {
	if err := e.sessions.Put(ctx, &SessionContext{
		Sender: sender,
		Flow:   FlowBooking,
		Step:   StepSelectService,
	}); err != nil {
		return err
	}
	e.sendServiceList(ctx, sender)
	e.metrics.ObserveTurn(string(FlowBooking), "started")
	return nil
}

// selectService records the chosen service and moves to the date step.
// A selection with no active context starts a booking implicitly.
func (e *Engine) selectService(ctx context.Context, sender string, sc *SessionContext, id string) error {
	service, ok := serviceIDs[id]
	if !ok {
		e.metrics.ObserveUnrecognizedSelection()
		e.sendFallbackMenu(ctx, sender)
		return nil
	}
	if sc == nil || sc.Flow != FlowBooking {
		sc = &SessionContext{Sender: sender, Flow: FlowBooking}
	}
	sc.Service = service
	sc.Step = StepDateInput
	if err := e.sessions.Put(ctx, sc); err != nil {
		return err
	}
	e.deliver("text")(e.messenger.SendText(ctx, sender,
		"What date would you like to come in? Please reply in YYYY-MM-DD format. We are open Monday to Saturday."))
	e.metrics.ObserveTurn(string(FlowBooking), "advanced")
	return nil
}

// selectTimeSlot handles a time_* selection for whichever flow is
// waiting on a time.
func (e *Engine) selectTimeSlot(ctx context.Context, sender string, sc *SessionContext, slot string) error {
	if sc == nil || !validTimeSlot(slot) {
		e.metrics.ObserveUnrecognizedSelection()
		e.sendFallbackMenu(ctx, sender)
		return nil
	}
	switch {
	case sc.Flow == FlowBooking && sc.Step == StepTimeSelection:
		return e.acceptBookingTime(ctx, sc, slot)
	case sc.Flow == FlowManage && sc.Step == StepTimeSelectForReschedule:
		return e.acceptRescheduleTime(ctx, sc, slot)
	}
	e.metrics.ObserveUnrecognizedSelection()
	e.sendFallbackMenu(ctx, sender)
	return nil
}

// handleBookingStep advances the booking flow on free text.
func (e *Engine) handleBookingStep(ctx context.Context, ev Event, sc *SessionContext) (bool, error) {
	if sc == nil || sc.Flow != FlowBooking || ev.Text == "" {
		return false, nil
	}
	text := strings.TrimSpace(ev.Text)

	switch sc.Step {
	case StepSelectService:
		// The service list is interactive; typed text re-prompts.
		e.deliver("text")(e.messenger.SendText(ctx, ev.Sender,
			"Please pick a service from the list."))
		e.sendServiceList(ctx, ev.Sender)
		e.metrics.ObserveTurn(string(FlowBooking), "reprompted")
		return true, nil

	case StepDateInput:
		parsed, err := ValidateAppointmentDate(text, e.now(), e.loc)
		if err != nil {
			e.deliver("text")(e.messenger.SendText(ctx, ev.Sender, dateReply(err)))
			e.metrics.ObserveTurn(string(FlowBooking), "reprompted")
			return true, nil
		}
		sc.Date = parsed.Format(dateLayout)
		sc.Step = StepTimeSelection
		if err := e.sessions.Put(ctx, sc); err != nil {
			return true, err
		}
		e.sendTimeList(ctx, ev.Sender)
		e.metrics.ObserveTurn(string(FlowBooking), "advanced")
		return true, nil

	case StepTimeSelection:
		if !validTimeSlot(text) {
			e.deliver("text")(e.messenger.SendText(ctx, ev.Sender,
				"Please choose a time between 08:00 and 16:00, on the hour, for example 10:00."))
			e.metrics.ObserveTurn(string(FlowBooking), "reprompted")
			return true, nil
		}
		return true, e.acceptBookingTime(ctx, sc, text)

	case StepNameInput:
		if text == "" {
			e.deliver("text")(e.messenger.SendText(ctx, ev.Sender, "Please tell us your full name."))
			e.metrics.ObserveTurn(string(FlowBooking), "reprompted")
			return true, nil
		}
		sc.FullName = text
		sc.Step = StepPreview
		if err := e.sessions.Put(ctx, sc); err != nil {
			return true, err
		}
		e.sendBookingPreview(ctx, sc)
		e.metrics.ObserveTurn(string(FlowBooking), "advanced")
		return true, nil

	case StepPreview:
		switch strings.ToLower(text) {
		case "yes", "y":
			return true, e.confirmBooking(ctx, ev.Sender, sc)
		case "no", "n":
			return true, e.declineBooking(ctx, ev.Sender, sc)
		}
		e.deliver("text")(e.messenger.SendText(ctx, ev.Sender,
			`Please reply "yes" to confirm your booking or "no" to cancel.`))
		e.metrics.ObserveTurn(string(FlowBooking), "reprompted")
		return true, nil
	}
	return false, nil
}

func (e *Engine) acceptBookingTime(ctx context.Context, sc *SessionContext, slot string) error {
	sc.Time = slot
	sc.Step = StepNameInput
	if err := e.sessions.Put(ctx, sc); err != nil {
		return err
	}
	e.deliver("text")(e.messenger.SendText(ctx, sc.Sender, "What is your full name?"))
	e.metrics.ObserveTurn(string(FlowBooking), "advanced")
	return nil
}

func (e *Engine) sendBookingPreview(ctx context.Context, sc *SessionContext) {
	body := fmt.Sprintf(`Please confirm your appointment:

Service: %s
Date: %s
Time: %s
Name: %s

Shall we book it?`, sc.Service, sc.Date, sc.Time, sc.FullName)
	e.deliver("interactive_buttons")(e.messenger.SendInteractiveButtons(ctx, sc.Sender, body, []whatsapp.Button{
		{ID: idConfirmBooking, Title: "Yes, book it"},
		{ID: idDeclineBooking, Title: "No, cancel"},
	}))
}

// confirmBooking persists the draft. The turn lock makes a racing
// duplicate confirm a no-op; the store transaction re-checks the
// pending and daily invariants. The context is cleared on every
// outcome, success or failure.
func (e *Engine) confirmBooking(ctx context.Context, sender string, sc *SessionContext) error {
	if sc == nil || sc.Flow != FlowBooking || sc.Step != StepPreview {
		e.sendFallbackMenu(ctx, sender)
		return nil
	}
	locked, err := e.sessions.TryLock(ctx, sender)
	if err != nil {
		return err
	}
	if !locked {
		e.metrics.ObserveTurn(string(FlowBooking), "duplicate_confirm")
		return nil
	}
	defer func() {
		if err := e.sessions.Unlock(ctx, sender); err != nil {
			e.logger.Warn("unlock failed", "sender", sender, "error", err)
		}
	}()

	bookingDate, err := ValidateAppointmentDate(sc.Date, e.now(), e.loc)
	if err != nil {
		// The date was valid when collected; it can only have gone
		// stale if the context sat at preview past the chosen day.
		if delErr := e.sessions.Delete(ctx, sender); delErr != nil {
			return delErr
		}
		e.deliver("text")(e.messenger.SendText(ctx, sender,
			"Your chosen date is no longer available. Please start again from the main menu."))
		return nil
	}

	_, err = e.store.Book(ctx, appointments.Draft{
		FullName:    sc.FullName,
		Service:     sc.Service,
		Phone:       sender,
		BookingDate: bookingDate,
		BookingTime: sc.Time,
	}, e.today())

	if delErr := e.sessions.Delete(ctx, sender); delErr != nil {
		return delErr
	}

	switch {
	case errors.Is(err, appointments.ErrPendingExists):
		e.deliver("text")(e.messenger.SendText(ctx, sender,
			"You already have an appointment awaiting approval. We will be in touch soon."))
		e.metrics.ObserveTurn(string(FlowBooking), "rejected_pending")
		return nil
	case errors.Is(err, appointments.ErrDailyLimit):
		e.deliver("text")(e.messenger.SendText(ctx, sender,
			"You have already made a booking today. Please try again tomorrow."))
		e.metrics.ObserveTurn(string(FlowBooking), "rejected_daily")
		return nil
	case err != nil:
		e.logger.Error("booking persistence failed", "sender", sender, "error", err)
		e.deliver("text")(e.messenger.SendText(ctx, sender,
			"Something went wrong while saving your booking. Please try again later."))
		e.metrics.ObserveTurn(string(FlowBooking), "persistence_error")
		return nil
	}

	e.deliver("text")(e.messenger.SendText(ctx, sender, fmt.Sprintf(
		"Thank you %s! Your %s appointment on %s at %s has been received and is awaiting approval. We will confirm shortly.",
		sc.FullName, sc.Service, sc.Date, sc.Time)))
	e.metrics.ObserveFlowCompleted(string(FlowBooking))
	return nil
}

func (e *Engine) declineBooking(ctx context.Context, sender string, sc *SessionContext) error {
	if sc == nil || sc.Flow != FlowBooking {
		e.sendFallbackMenu(ctx, sender)
		return nil
	}
	if err := e.sessions.Delete(ctx, sender); err != nil {
		return err
	}
	e.deliver("text")(e.messenger.SendText(ctx, sender,
		`No problem, nothing has been booked. Say "hi" whenever you need us.`))
	e.metrics.ObserveTurn(string(FlowBooking), "declined")
	return nil
}
