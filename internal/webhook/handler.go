package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/carezw/appointment-bot/internal/dialog"
	"github.com/carezw/appointment-bot/internal/observability/metrics"
	"github.com/carezw/appointment-bot/pkg/logging"
)

// envelope is the WhatsApp Cloud API webhook payload. Only the fields
// the bot consumes are mapped.
type envelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []message `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type message struct {
	From        string `json:"from"`
	Type        string `json:"type"`
	Text        *struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID string `json:"id"`
		} `json:"button_reply"`
		ListReply *struct {
			ID string `json:"id"`
		} `json:"list_reply"`
	} `json:"interactive"`
}

// engine is the dialogue surface the handler feeds events into.
type engine interface {
	HandleEvent(ctx context.Context, ev dialog.Event) error
}

// Handler terminates the Meta webhook: GET verification handshake and
// POST event delivery. POST always replies 200 so Meta never retries a
// turn the engine already saw.
type Handler struct {
	engine      engine
	verifyToken string
	logger      *logging.Logger
	metrics     *metrics.BotMetrics
}

func NewHandler(eng engine, verifyToken string, m *metrics.BotMetrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: eng, verifyToken: verifyToken, logger: logger, metrics: m}
}

// Verify answers the hub.challenge handshake Meta sends on subscribe.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(q.Get("hub.challenge")))
		return
	}
	h.logger.Warn("webhook verification rejected", "mode", q.Get("hub.mode"))
	http.Error(w, "verification failed", http.StatusForbidden)
}

// Receive handles event delivery.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.metrics.ObserveInbound("unknown", "bad_body")
		w.WriteHeader(http.StatusOK)
		return
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.logger.Warn("webhook payload unparseable", "error", err)
		h.metrics.ObserveInbound("unknown", "bad_payload")
		w.WriteHeader(http.StatusOK)
		return
	}

	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				ev, ok := toEvent(msg)
				if !ok {
					h.metrics.ObserveInbound(msg.Type, "skipped")
					continue
				}
				if err := h.engine.HandleEvent(r.Context(), ev); err != nil {
					h.logger.Error("turn failed", "sender", ev.Sender, "error", err)
					h.metrics.ObserveInbound(ev.Kind(), "error")
					continue
				}
				h.metrics.ObserveInbound(ev.Kind(), "handled")
				h.metrics.ObserveWebhookLatency(ev.Kind(), time.Since(start).Seconds())
			}
		}
	}
	w.WriteHeader(http.StatusOK)
}

// toEvent normalizes one Cloud API message into an engine event.
// Unsupported message types (media, location, reactions) are skipped.
func toEvent(msg message) (dialog.Event, bool) {
	if msg.From == "" {
		return dialog.Event{}, false
	}
	ev := dialog.Event{Sender: msg.From}
	switch msg.Type {
	case "text":
		if msg.Text == nil || msg.Text.Body == "" {
			return dialog.Event{}, false
		}
		ev.Text = msg.Text.Body
	case "interactive":
		if msg.Interactive == nil {
			return dialog.Event{}, false
		}
		switch {
		case msg.Interactive.ButtonReply != nil:
			ev.ButtonID = msg.Interactive.ButtonReply.ID
		case msg.Interactive.ListReply != nil:
			ev.ListID = msg.Interactive.ListReply.ID
		default:
			return dialog.Event{}, false
		}
	default:
		return dialog.Event{}, false
	}
	return ev, true
}
