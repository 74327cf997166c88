package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carezw/appointment-bot/internal/appointments"
	"github.com/carezw/appointment-bot/internal/whatsapp"
)

// startManage opens the manage context and shows its submenu.
func (e *Engine) startManage(ctx context.Context, sender string) error {
	if err := e.sessions.Put(ctx, &SessionContext{
		Sender: sender,
		Flow:   FlowManage,
		Step:   StepManageAppointments,
	}); err != nil {
		return err
	}
	e.sendManageMenu(ctx, sender)
	e.metrics.ObserveTurn(string(FlowManage), "started")
	return nil
}

// listUpcoming renders the sender's future appointments, effective
// dates first. Read-only; the context is cleared afterwards.
func (e *Engine) listUpcoming(ctx context.Context, sender string) error {
	appts, err := e.store.ListUpcoming(ctx, sender, e.today())
	if err != nil {
		e.logger.Error("list upcoming failed", "sender", sender, "error", err)
		e.deliver("text")(e.messenger.SendText(ctx, sender,
			"We could not load your appointments right now. Please try again later."))
		return nil
	}
	if err := e.sessions.Delete(ctx, sender); err != nil {
		return err
	}
	if len(appts) == 0 {
		e.deliver("text")(e.messenger.SendText(ctx, sender,
			"You have no upcoming appointments. You can book one from the main menu."))
		return nil
	}
	var b strings.Builder
	b.WriteString("Your upcoming appointments:\n")
	for _, a := range appts {
		b.WriteString("\n- " + formatAppointmentLine(a))
	}
	e.deliver("text")(e.messenger.SendText(ctx, sender, b.String()))
	e.metrics.ObserveTurn(string(FlowManage), "listed_upcoming")
	return nil
}

func (e *Engine) listPast(ctx context.Context, sender string) error {
	appts, err := e.store.ListPast(ctx, sender, e.today())
	if err != nil {
		e.logger.Error("list past failed", "sender", sender, "error", err)
		e.deliver("text")(e.messenger.SendText(ctx, sender,
			"We could not load your appointments right now. Please try again later."))
		return nil
	}
	if err := e.sessions.Delete(ctx, sender); err != nil {
		return err
	}
	if len(appts) == 0 {
		e.deliver("text")(e.messenger.SendText(ctx, sender, "You have no past appointments."))
		return nil
	}
	var b strings.Builder
	b.WriteString("Your past appointments:\n")
	for _, a := range appts {
		b.WriteString("\n- " + formatAppointmentLine(a))
	}
	e.deliver("text")(e.messenger.SendText(ctx, sender, b.String()))
	e.metrics.ObserveTurn(string(FlowManage), "listed_past")
	return nil
}

// offerChangeList shows the sender's upcoming appointments as a
// selectable list so one can be cancelled or rescheduled.
func (e *Engine) offerChangeList(ctx context.Context, sender string) error {
	appts, err := e.store.ListUpcoming(ctx, sender, e.today())
	if err != nil {
		e.logger.Error("list for change failed", "sender", sender, "error", err)
		e.deliver("text")(e.messenger.SendText(ctx, sender,
			"We could not load your appointments right now. Please try again later."))
		return nil
	}
	if len(appts) == 0 {
		if err := e.sessions.Delete(ctx, sender); err != nil {
			return err
		}
		e.deliver("text")(e.messenger.SendText(ctx, sender,
			"You have no upcoming appointments to change."))
		return nil
	}
	if err := e.sessions.Put(ctx, &SessionContext{
		Sender: sender,
		Flow:   FlowManage,
		Step:   StepManageAppointments,
	}); err != nil {
		return err
	}
	rows := make([]whatsapp.Row, 0, len(appts))
	for _, a := range appts {
		rows = append(rows, whatsapp.Row{
			ID:          idApptPrefix + a.ID.String(),
			Title:       fmt.Sprintf("%s %s", a.EffectiveDate().Format("02 Jan"), a.EffectiveTime()),
			Description: fmt.Sprintf("%s (%s)", a.Service, a.Status),
		})
	}
	e.deliver("interactive_list")(e.messenger.SendInteractiveList(ctx, sender,
		"Which appointment would you like to change?", "Appointments",
		[]whatsapp.Section{{Title: "Your appointments", Rows: rows}}))
	e.metrics.ObserveTurn(string(FlowManage), "advanced")
	return nil
}

// selectAppointment stores the chosen appointment id and offers the
// cancel/reschedule choice.
func (e *Engine) selectAppointment(ctx context.Context, sender string, sc *SessionContext, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		e.metrics.ObserveUnrecognizedSelection()
		e.sendFallbackMenu(ctx, sender)
		return nil
	}
	if sc == nil || sc.Flow != FlowManage {
		sc = &SessionContext{Sender: sender, Flow: FlowManage}
	}
	sc.AppointmentID = id.String()
	sc.Step = StepCancelOrReschedule
	if err := e.sessions.Put(ctx, sc); err != nil {
		return err
	}
	e.deliver("interactive_buttons")(e.messenger.SendInteractiveButtons(ctx, sender,
		"What would you like to do with this appointment?", []whatsapp.Button{
			{ID: idManageCancel, Title: "Cancel it"},
			{ID: idManageReschedule, Title: "Reschedule it"},
		}))
	e.metrics.ObserveTurn(string(FlowManage), "advanced")
	return nil
}

// cancelSelected cancels the appointment held in context. Prior status
// is deliberately not checked; cancelling twice stays a no-op for the
// user. Turn-locked like every mutating confirm.
func (e *Engine) cancelSelected(ctx context.Context, sender string, sc *SessionContext) error {
	if sc == nil || sc.Flow != FlowManage || sc.AppointmentID == "" {
		e.sendFallbackMenu(ctx, sender)
		return nil
	}
	id, err := uuid.Parse(sc.AppointmentID)
	if err != nil {
		if delErr := e.sessions.Delete(ctx, sender); delErr != nil {
			return delErr
		}
		e.sendFallbackMenu(ctx, sender)
		return nil
	}

	locked, err := e.sessions.TryLock(ctx, sender)
	if err != nil {
		return err
	}
	if !locked {
		e.metrics.ObserveTurn(string(FlowManage), "duplicate_confirm")
		return nil
	}
	defer func() {
		if err := e.sessions.Unlock(ctx, sender); err != nil {
			e.logger.Warn("unlock failed", "sender", sender, "error", err)
		}
	}()

	err = e.store.Cancel(ctx, id)
	if delErr := e.sessions.Delete(ctx, sender); delErr != nil {
		return delErr
	}
	switch {
	case errors.Is(err, appointments.ErrNotFound):
		e.deliver("text")(e.messenger.SendText(ctx, sender,
			"We could not find that appointment. It may already have been removed."))
		return nil
	case err != nil:
		e.logger.Error("cancel failed", "sender", sender, "appointment_id", id.String(), "error", err)
		e.deliver("text")(e.messenger.SendText(ctx, sender,
			"Something went wrong while cancelling. Please try again later."))
		return nil
	}
	e.deliver("text")(e.messenger.SendText(ctx, sender,
		"Your appointment has been cancelled. We hope to see you another time."))
	e.metrics.ObserveFlowCompleted(string(FlowManage))
	return nil
}

// startReschedule moves the manage flow into the reschedule date step.
func (e *Engine) startReschedule(ctx context.Context, sender string, sc *SessionContext) error {
	if sc == nil || sc.Flow != FlowManage || sc.AppointmentID == "" {
		e.sendFallbackMenu(ctx, sender)
		return nil
	}
	sc.Step = StepDateSelectForReschedule
	if err := e.sessions.Put(ctx, sc); err != nil {
		return err
	}
	e.deliver("text")(e.messenger.SendText(ctx, sender,
		"What new date would you like? Please reply in YYYY-MM-DD format. We are open Monday to Saturday."))
	e.metrics.ObserveTurn(string(FlowManage), "advanced")
	return nil
}

// handleManageStep advances the reschedule sub-flow on free text.
func (e *Engine) handleManageStep(ctx context.Context, ev Event, sc *SessionContext) (bool, error) {
	if sc == nil || sc.Flow != FlowManage || ev.Text == "" {
		return false, nil
	}
	text := strings.TrimSpace(ev.Text)

	switch sc.Step {
	case StepDateSelectForReschedule:
		parsed, err := ValidateAppointmentDate(text, e.now(), e.loc)
		if err != nil {
			e.deliver("text")(e.messenger.SendText(ctx, ev.Sender, dateReply(err)))
			e.metrics.ObserveTurn(string(FlowManage), "reprompted")
			return true, nil
		}
		sc.RescheduledDate = parsed.Format(dateLayout)
		sc.Step = StepTimeSelectForReschedule
		if err := e.sessions.Put(ctx, sc); err != nil {
			return true, err
		}
		e.sendTimeList(ctx, ev.Sender)
		e.metrics.ObserveTurn(string(FlowManage), "advanced")
		return true, nil

	case StepTimeSelectForReschedule:
		if !validTimeSlot(text) {
			e.deliver("text")(e.messenger.SendText(ctx, ev.Sender,
				"Please choose a time between 08:00 and 16:00, on the hour, for example 10:00."))
			e.metrics.ObserveTurn(string(FlowManage), "reprompted")
			return true, nil
		}
		return true, e.acceptRescheduleTime(ctx, sc, text)

	case StepReschedulingReason:
		if text == "" {
			e.deliver("text")(e.messenger.SendText(ctx, ev.Sender,
				"Please tell us briefly why you need to move this appointment."))
			e.metrics.ObserveTurn(string(FlowManage), "reprompted")
			return true, nil
		}
		sc.Reason = text
		sc.Step = StepRescheduleConfirm
		if err := e.sessions.Put(ctx, sc); err != nil {
			return true, err
		}
		body := fmt.Sprintf(`Move your appointment to %s at %s?

Reason: %s`, sc.RescheduledDate, sc.RescheduledTime, sc.Reason)
		e.deliver("interactive_buttons")(e.messenger.SendInteractiveButtons(ctx, ev.Sender, body, []whatsapp.Button{
			{ID: idConfirmReschedule, Title: "Yes, move it"},
			{ID: idDeclineReschedule, Title: "No, keep it"},
		}))
		e.metrics.ObserveTurn(string(FlowManage), "advanced")
		return true, nil

	case StepRescheduleConfirm:
		switch strings.ToLower(text) {
		case "yes", "y":
			return true, e.confirmReschedule(ctx, ev.Sender, sc)
		case "no", "n":
			return true, e.declineReschedule(ctx, ev.Sender, sc)
		}
		e.deliver("text")(e.messenger.SendText(ctx, ev.Sender,
			`Please reply "yes" to move the appointment or "no" to keep it as is.`))
		e.metrics.ObserveTurn(string(FlowManage), "reprompted")
		return true, nil
	}
	return false, nil
}

func (e *Engine) acceptRescheduleTime(ctx context.Context, sc *SessionContext, slot string) error {
	sc.RescheduledTime = slot
	sc.Step = StepReschedulingReason
	if err := e.sessions.Put(ctx, sc); err != nil {
		return err
	}
	e.deliver("text")(e.messenger.SendText(ctx, sc.Sender,
		"Why do you need to move this appointment? A short reason helps our staff."))
	e.metrics.ObserveTurn(string(FlowManage), "advanced")
	return nil
}

// confirmReschedule applies the reschedule. The store enforces the
// once-only guard; the context is cleared on every outcome.
func (e *Engine) confirmReschedule(ctx context.Context, sender string, sc *SessionContext) error {
	if sc == nil || sc.Flow != FlowManage || sc.Step != StepRescheduleConfirm || sc.AppointmentID == "" {
		e.sendFallbackMenu(ctx, sender)
		return nil
	}
	id, err := uuid.Parse(sc.AppointmentID)
	if err != nil {
		if delErr := e.sessions.Delete(ctx, sender); delErr != nil {
			return delErr
		}
		e.sendFallbackMenu(ctx, sender)
		return nil
	}
	newDate, err := ValidateAppointmentDate(sc.RescheduledDate, e.now(), e.loc)
	if err != nil {
		if delErr := e.sessions.Delete(ctx, sender); delErr != nil {
			return delErr
		}
		e.deliver("text")(e.messenger.SendText(ctx, sender,
			"Your chosen date is no longer available. Please start again from the main menu."))
		return nil
	}

	locked, err := e.sessions.TryLock(ctx, sender)
	if err != nil {
		return err
	}
	if !locked {
		e.metrics.ObserveTurn(string(FlowManage), "duplicate_confirm")
		return nil
	}
	defer func() {
		if err := e.sessions.Unlock(ctx, sender); err != nil {
			e.logger.Warn("unlock failed", "sender", sender, "error", err)
		}
	}()

	err = e.store.Reschedule(ctx, id, newDate, sc.RescheduledTime, sc.Reason)
	if delErr := e.sessions.Delete(ctx, sender); delErr != nil {
		return delErr
	}
	switch {
	case errors.Is(err, appointments.ErrAlreadyRescheduled):
		e.deliver("text")(e.messenger.SendText(ctx, sender,
			"An appointment can only be rescheduled once. Please contact us if you need further changes."))
		e.metrics.ObserveTurn(string(FlowManage), "rejected_rescheduled")
		return nil
	case errors.Is(err, appointments.ErrNotFound):
		e.deliver("text")(e.messenger.SendText(ctx, sender,
			"We could not find that appointment. It may already have been removed."))
		return nil
	case err != nil:
		e.logger.Error("reschedule persistence failed", "sender", sender, "appointment_id", id.String(), "error", err)
		e.deliver("text")(e.messenger.SendText(ctx, sender,
			"Something went wrong while moving your appointment. Please try again later."))
		e.metrics.ObserveTurn(string(FlowManage), "persistence_error")
		return nil
	}
	e.deliver("text")(e.messenger.SendText(ctx, sender, fmt.Sprintf(
		"Done! Your appointment has been moved to %s at %s and is awaiting approval.",
		sc.RescheduledDate, sc.RescheduledTime)))
	e.metrics.ObserveFlowCompleted(string(FlowManage))
	return nil
}

func (e *Engine) declineReschedule(ctx context.Context, sender string, sc *SessionContext) error {
	if sc == nil || sc.Flow != FlowManage {
		e.sendFallbackMenu(ctx, sender)
		return nil
	}
	if err := e.sessions.Delete(ctx, sender); err != nil {
		return err
	}
	e.deliver("text")(e.messenger.SendText(ctx, sender,
		"No changes made. Your appointment stays as it was."))
	e.metrics.ObserveTurn(string(FlowManage), "declined")
	return nil
}
