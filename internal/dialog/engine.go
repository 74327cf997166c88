package dialog

import (
	"context"
	"strings"
	"time"

	"github.com/carezw/appointment-bot/internal/observability/metrics"
	"github.com/carezw/appointment-bot/internal/whatsapp"
	"github.com/carezw/appointment-bot/pkg/logging"
)

// Event is one normalized inbound webhook turn. Exactly one of Text,
// ButtonID, ListID is set.
type Event struct {
	Sender   string
	Text     string
	ButtonID string
	ListID   string
}

// SelectionID returns the structured id carried by the event, or "".
func (e Event) SelectionID() string {
	if e.ButtonID != "" {
		return e.ButtonID
	}
	return e.ListID
}

// Kind labels the event for metrics.
func (e Event) Kind() string {
	switch {
	case e.ButtonID != "":
		return "button"
	case e.ListID != "":
		return "list"
	default:
		return "text"
	}
}

// Config carries the engine's tunables.
type Config struct {
	GreetingPhrases  []string
	GreetingMinScore float64
	MenuImageURL     string
	OracleSentinel   string
	Location         *time.Location
}

// Engine resolves inbound events against per-sender dialogue state. All
// dependencies are injected; the engine holds no ambient globals.
type Engine struct {
	sessions  SessionStore
	store     AppointmentStore
	messenger Messenger
	oracle    Oracle

	greetings      *GreetingMatcher
	menuImageURL   string
	oracleSentinel string
	loc            *time.Location

	metrics *metrics.BotMetrics
	logger  *logging.Logger
	now     func() time.Time

	chain []handler
}

// handler is one rule in the resolution chain. It reports whether it
// handled the event; the first handler to do so ends the turn.
type handler func(ctx context.Context, ev Event, sc *SessionContext) (bool, error)

func NewEngine(sessions SessionStore, store AppointmentStore, messenger Messenger, oracle Oracle,
	cfg Config, m *metrics.BotMetrics, logger *logging.Logger) *Engine {
	if sessions == nil || store == nil || messenger == nil {
		panic("dialog: sessions, store and messenger are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	sentinel := cfg.OracleSentinel
	if sentinel == "" {
		sentinel = "sorry"
	}
	e := &Engine{
		sessions:       sessions,
		store:          store,
		messenger:      messenger,
		oracle:         oracle,
		greetings:      NewGreetingMatcher(cfg.GreetingPhrases, cfg.GreetingMinScore),
		menuImageURL:   cfg.MenuImageURL,
		oracleSentinel: strings.ToLower(sentinel),
		loc:            loc,
		metrics:        m,
		logger:         logger,
		now:            time.Now,
	}
	// Strict priority order. Earlier rules always pre-empt later ones.
	e.chain = []handler{
		e.handleGreeting,
		e.handleSelection,
		e.handleBookingStep,
		e.handleManageStep,
		e.handleMenuText,
		e.handleOracle,
	}
	return e
}

// HandleEvent runs one inbound turn through the resolution chain.
func (e *Engine) HandleEvent(ctx context.Context, ev Event) error {
	if ev.Sender == "" {
		return nil
	}
	sc, err := e.sessions.Get(ctx, ev.Sender)
	if err != nil {
		return err
	}
	for _, h := range e.chain {
		handled, err := h(ctx, ev, sc)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
	}
	return nil
}

// handleGreeting resets to the main menu on any greeting, even
// mid-flow. This is the user's escape hatch.
func (e *Engine) handleGreeting(ctx context.Context, ev Event, sc *SessionContext) (bool, error) {
	if ev.Text == "" || !e.greetings.Match(ev.Text) {
		return false, nil
	}
	if sc != nil {
		if err := e.sessions.Delete(ctx, ev.Sender); err != nil {
			return true, err
		}
	}
	e.sendMainMenu(ctx, ev.Sender)
	e.metrics.ObserveTurn("none", "greeting_reset")
	return true, nil
}

// handleSelection dispatches structured button/list ids. Each id has
// exactly one branch; ids no branch recognizes get the fallback menu.
func (e *Engine) handleSelection(ctx context.Context, ev Event, sc *SessionContext) (bool, error) {
	id := ev.SelectionID()
	if id == "" {
		return false, nil
	}

	switch {
	case id == idMenuBook:
		return true, e.startBooking(ctx, ev.Sender)
	case id == idMenuManage:
		return true, e.startManage(ctx, ev.Sender)
	case id == idMenuLearn:
		return true, e.startLearn(ctx, ev.Sender)
	case strings.HasPrefix(id, idServicePrefix):
		return true, e.selectService(ctx, ev.Sender, sc, id)
	case strings.HasPrefix(id, idTimePrefix):
		return true, e.selectTimeSlot(ctx, ev.Sender, sc, strings.TrimPrefix(id, idTimePrefix))
	case strings.HasPrefix(id, idApptPrefix):
		return true, e.selectAppointment(ctx, ev.Sender, sc, strings.TrimPrefix(id, idApptPrefix))
	case id == idManageUpcoming:
		return true, e.listUpcoming(ctx, ev.Sender)
	case id == idManagePast:
		return true, e.listPast(ctx, ev.Sender)
	case id == idManageChange:
		return true, e.offerChangeList(ctx, ev.Sender)
	case id == idManageCancel:
		return true, e.cancelSelected(ctx, ev.Sender, sc)
	case id == idManageReschedule:
		return true, e.startReschedule(ctx, ev.Sender, sc)
	case id == idConfirmBooking:
		return true, e.confirmBooking(ctx, ev.Sender, sc)
	case id == idDeclineBooking:
		return true, e.declineBooking(ctx, ev.Sender, sc)
	case id == idConfirmReschedule:
		return true, e.confirmReschedule(ctx, ev.Sender, sc)
	case id == idDeclineReschedule:
		return true, e.declineReschedule(ctx, ev.Sender, sc)
	}

	e.metrics.ObserveUnrecognizedSelection()
	e.logger.Warn("unrecognized selection id", "sender", ev.Sender, "id", id)
	e.sendFallbackMenu(ctx, ev.Sender)
	return true, nil
}

// handleMenuText maps bare menu shortcuts: the numbered main-menu
// options when no flow is active, and the lettered learn submenu.
func (e *Engine) handleMenuText(ctx context.Context, ev Event, sc *SessionContext) (bool, error) {
	if ev.Text == "" {
		return false, nil
	}
	text := strings.ToLower(strings.TrimSpace(ev.Text))

	if sc != nil && sc.Flow == FlowLearn && sc.Step == StepLearnMenu {
		if body, ok := learnTopicByKey(text); ok {
			if err := e.sessions.Delete(ctx, ev.Sender); err != nil {
				return true, err
			}
			e.deliver("text")(e.messenger.SendText(ctx, ev.Sender, body))
			e.metrics.ObserveTurn(string(FlowLearn), "topic_rendered")
			return true, nil
		}
		return false, nil
	}

	if sc == nil {
		switch text {
		case "1", "make appointment", "book appointment":
			return true, e.startBooking(ctx, ev.Sender)
		case "2", "my appointments", "manage appointments":
			return true, e.startManage(ctx, ev.Sender)
		case "3", "learn about cancer":
			return true, e.startLearn(ctx, ev.Sender)
		}
	}
	return false, nil
}

// handleOracle is the last rule: free text nothing else claimed goes to
// the intent oracle.
func (e *Engine) handleOracle(ctx context.Context, ev Event, _ *SessionContext) (bool, error) {
	if ev.Text == "" {
		return false, nil
	}
	if e.oracle == nil {
		e.metrics.ObserveOracleQuery("unavailable")
		e.sendFallbackMenu(ctx, ev.Sender)
		return true, nil
	}
	answer, err := e.oracle.Query(ctx, ev.Sender, ev.Text)
	if err != nil {
		e.logger.Warn("oracle query failed", "sender", ev.Sender, "error", err)
		e.metrics.ObserveOracleQuery("error")
		e.sendFallbackMenu(ctx, ev.Sender)
		return true, nil
	}
	if answer == "" || strings.Contains(strings.ToLower(answer), e.oracleSentinel) {
		e.metrics.ObserveOracleQuery("no_match")
		e.sendFallbackMenu(ctx, ev.Sender)
		return true, nil
	}
	e.metrics.ObserveOracleQuery("answered")
	e.deliver("text")(e.messenger.SendText(ctx, ev.Sender, answer))
	return true, nil
}

func (e *Engine) startLearn(ctx context.Context, sender string) error {
	if err := e.sessions.Put(ctx, &SessionContext{Sender: sender, Flow: FlowLearn, Step: StepLearnMenu}); err != nil {
		return err
	}
	e.sendLearnMenu(ctx, sender)
	return nil
}

// today returns local midnight of the current day.
func (e *Engine) today() time.Time {
	now := e.now().In(e.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.loc)
}

// deliver logs and counts a fire-and-forget outbound send. Failures
// never abort the turn; the conversation state has already moved on.
func (e *Engine) deliver(kind string) func(*whatsapp.SendResult, error) {
	return func(_ *whatsapp.SendResult, err error) {
		if err != nil {
			e.metrics.ObserveOutbound(kind, "failed")
			e.logger.Error("outbound send failed", "kind", kind, "error", err)
			return
		}
		e.metrics.ObserveOutbound(kind, "sent")
	}
}
