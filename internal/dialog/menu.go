package dialog

import (
	"context"
	"fmt"
	"strings"

	"github.com/carezw/appointment-bot/internal/appointments"
	"github.com/carezw/appointment-bot/internal/whatsapp"
)

// Structured selection ids. Every interactive message the engine sends
// uses these; the resolution chain dispatches on them.
const (
	idMenuBook   = "menu_book"
	idMenuManage = "menu_manage"
	idMenuLearn  = "menu_learn"

	idServicePrefix = "service_"
	idTimePrefix    = "time_"
	idApptPrefix    = "appt_"

	idManageUpcoming   = "manage_upcoming"
	idManagePast       = "manage_past"
	idManageChange     = "manage_change"
	idManageCancel     = "manage_cancel"
	idManageReschedule = "manage_reschedule"

	idConfirmBooking    = "confirm_booking"
	idDeclineBooking    = "decline_booking"
	idConfirmReschedule = "confirm_reschedule"
	idDeclineReschedule = "decline_reschedule"
)

// serviceIDs maps selection ids to the persisted service labels.
var serviceIDs = map[string]appointments.Service{
	idServicePrefix + "consultation": appointments.ServiceConsultation,
	idServicePrefix + "screening":    appointments.ServiceScreening,
	idServicePrefix + "treatment":    appointments.ServiceTreatment,
	idServicePrefix + "support":      appointments.ServiceSupport,
}

// timeSlots are the bookable hours, on the hour.
var timeSlots = []string{
	"08:00", "09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00",
}

func validTimeSlot(slot string) bool {
	for _, s := range timeSlots {
		if s == slot {
			return true
		}
	}
	return false
}

const mainMenuBody = `Welcome to the Cancer Association of Zimbabwe appointment service.

How can we help you today?`

const fallbackBody = `Sorry, I did not understand that. You can say "hi" at any time to see the main menu, or choose an option below.`

// sendMainMenu sends the logo plus the three top-level options.
func (e *Engine) sendMainMenu(ctx context.Context, to string) {
	if e.menuImageURL != "" {
		e.deliver("image")(e.messenger.SendImage(ctx, to, e.menuImageURL, "Cancer Association of Zimbabwe"))
	}
	e.deliver("interactive_buttons")(e.messenger.SendInteractiveButtons(ctx, to, mainMenuBody, []whatsapp.Button{
		{ID: idMenuBook, Title: "Book appointment"},
		{ID: idMenuManage, Title: "My appointments"},
		{ID: idMenuLearn, Title: "Learn about cancer"},
	}))
}

// sendFallbackMenu is the unknown-input reply: apology plus the menu.
func (e *Engine) sendFallbackMenu(ctx context.Context, to string) {
	e.deliver("interactive_buttons")(e.messenger.SendInteractiveButtons(ctx, to, fallbackBody, []whatsapp.Button{
		{ID: idMenuBook, Title: "Book appointment"},
		{ID: idMenuManage, Title: "My appointments"},
		{ID: idMenuLearn, Title: "Learn about cancer"},
	}))
}

func (e *Engine) sendServiceList(ctx context.Context, to string) {
	e.deliver("interactive_list")(e.messenger.SendInteractiveList(ctx, to,
		"Which service would you like to book?", "Services",
		[]whatsapp.Section{{
			Title: "Available services",
			Rows: []whatsapp.Row{
				{ID: idServicePrefix + "consultation", Title: "Consultation", Description: "Talk to one of our staff"},
				{ID: idServicePrefix + "screening", Title: "Screening & diagnostics", Description: "Cancer screening and diagnostic tests"},
				{ID: idServicePrefix + "treatment", Title: "Treatment", Description: "Treatment sessions and follow-ups"},
				{ID: idServicePrefix + "support", Title: "Supportive care", Description: "Counselling and support services"},
			},
		}}))
}

func (e *Engine) sendTimeList(ctx context.Context, to string) {
	rows := make([]whatsapp.Row, 0, len(timeSlots))
	for _, slot := range timeSlots {
		rows = append(rows, whatsapp.Row{ID: idTimePrefix + slot, Title: slot})
	}
	e.deliver("interactive_list")(e.messenger.SendInteractiveList(ctx, to,
		"What time suits you? We are open 08:00 to 16:00.", "Times",
		[]whatsapp.Section{{Title: "Available times", Rows: rows}}))
}

func (e *Engine) sendManageMenu(ctx context.Context, to string) {
	e.deliver("interactive_buttons")(e.messenger.SendInteractiveButtons(ctx, to,
		"What would you like to do with your appointments?", []whatsapp.Button{
			{ID: idManageUpcoming, Title: "Upcoming"},
			{ID: idManagePast, Title: "Past"},
			{ID: idManageChange, Title: "Cancel / reschedule"},
		}))
}

// learnTopics are the lettered informational submenu options. Picking
// one renders the detail and clears the context.
var learnTopics = []struct {
	Key   string
	Title string
	Body  string
}{
	{"a", "About cancer", "Cancer is a disease in which some of the body's cells grow uncontrollably and spread to other parts of the body. Early detection saves lives. Visit cancerzimbabwe.org to learn more."},
	{"b", "Screening", "We offer screening for breast, cervical and prostate cancer. Screening finds cancer early, when treatment works best. Book a screening appointment from the main menu."},
	{"c", "Treatment", "Treatment options include surgery, chemotherapy and radiotherapy. Our team will guide you through what to expect at every stage."},
	{"d", "Support services", "We provide counselling, a patient support group and home-based care. You are not alone on this journey."},
	{"e", "Contact us", "Cancer Association of Zimbabwe, 60 Livingstone Avenue, Harare. Phone: +263 242 707 673. Email: info@cancerzimbabwe.org"},
}

func (e *Engine) sendLearnMenu(ctx context.Context, to string) {
	var b strings.Builder
	b.WriteString("What would you like to know? Reply with a letter:\n")
	for _, topic := range learnTopics {
		fmt.Fprintf(&b, "\n%s. %s", topic.Key, topic.Title)
	}
	e.deliver("text")(e.messenger.SendText(ctx, to, b.String()))
}

func learnTopicByKey(key string) (string, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, topic := range learnTopics {
		if topic.Key == key {
			return topic.Body, true
		}
	}
	return "", false
}

// formatAppointmentLine renders one appointment for a list message.
func formatAppointmentLine(a appointments.Appointment) string {
	line := fmt.Sprintf("%s at %s - %s (%s)",
		a.EffectiveDate().Format("Mon 02 Jan 2006"), a.EffectiveTime(), a.Service, a.Status)
	if a.Reschedule != nil {
		line += fmt.Sprintf(", moved from %s %s", a.BookingDate.Format("02 Jan"), a.BookingTime)
	}
	return line
}
